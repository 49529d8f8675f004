package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swamplocks/marketdata/internal/datasource"
	"github.com/swamplocks/marketdata/pkg/models"
)

// ═══════════════════════════════════════════════════════════════════
// Fixtures
// ═══════════════════════════════════════════════════════════════════

const (
	day1 = 1577836800 // 2020-01-01 00:00 GMT
	day2 = 1577923200 // 2020-01-02 00:00 GMT
)

func separator(epoch int64) string {
	return fmt.Sprintf(`<tr><td class="theDay" id="theDay%d" colspan="8">Wednesday, January 1, 2020</td></tr>`, epoch)
}

type eventRow struct {
	id, time, country, currency, bull, name, actual, forecast, previous string
}

func (e eventRow) html() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<tr id="eventRowId_%s" class="js-event-item" data-event-datetime="2020/01/01 08:30:00">`, e.id)
	fmt.Fprintf(&b, `<td class="first left time js-time" title="">%s</td>`, e.time)
	fmt.Fprintf(&b, `<td class="left flagCur noWrap"><span title="%s" class="ceFlags United_States">&nbsp;</span> %s</td>`, e.country, e.currency)
	if e.bull == "" {
		b.WriteString(`<td class="left textNum sentiment noWrap" title="Holiday"></td>`)
	} else {
		fmt.Fprintf(&b, `<td class="left textNum sentiment noWrap" data-img_key="bull%s"><i class="grayFullBullishIcon"></i></td>`, e.bull)
	}
	fmt.Fprintf(&b, `<td class="left event" title=""><a href="/economic-calendar/x">%s</a></td>`, e.name)
	fmt.Fprintf(&b, `<td class="bold act blackFont event-%s-actual" id="eventActual_%s">%s</td>`, e.id, e.id, e.actual)
	fmt.Fprintf(&b, `<td class="fore event-%s-forecast" id="eventForecast_%s">%s</td>`, e.id, e.id, e.forecast)
	fmt.Fprintf(&b, `<td class="prev event-%s-previous" id="eventPrevious_%s"><span>%s</span></td>`, e.id, e.id, e.previous)
	b.WriteString(`<td class="alert js-injected-user-alert-container"></td></tr>`)
	return b.String()
}

func ev(id, bull string) eventRow {
	return eventRow{
		id: id, time: "08:30", country: "United States", currency: "USD", bull: bull,
		name: "Nonfarm Payrolls (Dec)", actual: "145K", forecast: "160K", previous: "256K",
	}
}

func page(rows ...string) string {
	body, _ := json.Marshal(map[string]string{"data": strings.Join(rows, "\n")})
	return string(body)
}

// fakeCalendar serves pages[limit_from] and records every request form.
type fakeCalendar struct {
	mu       sync.Mutex
	pages    func(offset int) string
	status   int
	forms    []url.Values
	headers  []http.Header
	requests int
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	f.requests++
	f.forms = append(f.forms, r.PostForm)
	f.headers = append(f.headers, r.Header.Clone())
	f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	offset, _ := strconv.Atoi(r.PostForm.Get("limit_from"))
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(f.pages(offset)))
}

func (f *fakeCalendar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func staticPages(pages ...string) func(int) string {
	return func(offset int) string {
		if offset < len(pages) {
			return pages[offset]
		}
		return page()
	}
}

func newFixture(t *testing.T, f *fakeCalendar, opts Options) *Crawler {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	opts.Endpoint = srv.URL + "/economic-calendar/Service/getCalendarFilteredData"
	if opts.Countries == nil {
		opts.Countries = []int{5}
	}
	return NewCrawler(opts, StaticIdentity{UserAgent: "test-agent/1.0", TimeZone: 42}, nil)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("02/01/2006", s)
	require.NoError(t, err)
	return d
}

func ids(events []models.CalendarEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════
// Crawl
// ═══════════════════════════════════════════════════════════════════

func TestCrawlStopsOnRepeatedPage(t *testing.T) {
	p1 := page(separator(day1), ev("9000", "2").html(), ev("9001", "3").html())
	f := &fakeCalendar{pages: staticPages(p1, p1, p1)}
	c := newFixture(t, f, Options{})

	events, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	require.NoError(t, err)

	assert.Equal(t, 2, f.count(), "exactly two page requests")
	assert.Equal(t, []string{"9000", "9001"}, ids(events), "only the first page's events")
}

func TestCrawlMultiplePages(t *testing.T) {
	f := &fakeCalendar{pages: staticPages(
		page(separator(day1), ev("1", "1").html(), ev("2", "1").html()),
		page(ev("3", "2").html(), separator(day2), ev("4", "3").html()),
		page(separator(day2), ev("4", "3").html()),
	)}
	c := newFixture(t, f, Options{})

	events, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	require.NoError(t, err)

	assert.Equal(t, 3, f.count())
	require.Equal(t, []string{"1", "2", "3", "4"}, ids(events))
	d1 := time.Unix(day1, 0).UTC()
	d2 := time.Unix(day2, 0).UTC()
	assert.Equal(t, d1, events[2].Date, "date carries across pages")
	assert.Equal(t, d2, events[3].Date)
}

func TestCrawlDateInheritance(t *testing.T) {
	f := &fakeCalendar{pages: staticPages(page(
		separator(day1), ev("E1", "1").html(), ev("E2", "2").html(),
		separator(day2), ev("E3", "3").html(),
	))}
	c := newFixture(t, f, Options{})

	events, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	require.NoError(t, err)
	require.Len(t, events, 3)

	d1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, d1, events[0].Date)
	assert.Equal(t, d1, events[1].Date)
	assert.Equal(t, d2, events[2].Date)
}

func TestCrawlSkipsUnmappedRating(t *testing.T) {
	f := &fakeCalendar{pages: staticPages(page(
		separator(day1), ev("10", "1").html(), ev("11", "5").html(), ev("12", "3").html(),
	))}
	c := newFixture(t, f, Options{})

	events, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	require.NoError(t, err)
	require.Equal(t, []string{"10", "12"}, ids(events))
	require.NotNil(t, events[1].Importance)
	assert.Equal(t, models.ImportanceHigh, *events[1].Importance)
}

func TestCrawlSkippedTerminalRowStillTerminates(t *testing.T) {
	// The terminal row carries an unmapped rating: it is dropped from the
	// output but its id still drives the repeated-page check.
	p := page(separator(day1), ev("1", "1").html(), ev("2", "5").html())
	f := &fakeCalendar{pages: staticPages(p, p)}
	c := newFixture(t, f, Options{})

	events, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	require.NoError(t, err)

	assert.Equal(t, 2, f.count(), "exactly two page requests")
	assert.Equal(t, []string{"1"}, ids(events))
}

func TestCrawlEmptyFirstPage(t *testing.T) {
	f := &fakeCalendar{pages: staticPages(page())}
	c := newFixture(t, f, Options{})

	events, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
	assert.Equal(t, 1, f.count())
}

func TestCrawlPageWithoutRowIDsTerminates(t *testing.T) {
	f := &fakeCalendar{pages: staticPages(page(separator(day1)))}
	c := newFixture(t, f, Options{})

	events, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 1, f.count())
}

func TestCrawlPageCeiling(t *testing.T) {
	f := &fakeCalendar{pages: func(offset int) string {
		return page(separator(day1), ev(strconv.Itoa(offset), "1").html())
	}}
	c := newFixture(t, f, Options{MaxPages: 3})

	events, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	assert.Nil(t, events, "no partial results")

	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, 3, inc.Pages)
	assert.Equal(t, 3, inc.Events)
	assert.Equal(t, 3, f.count())
}

func TestCrawlTimeCeiling(t *testing.T) {
	f := &fakeCalendar{pages: func(offset int) string {
		return page(separator(day1), ev(strconv.Itoa(offset), "1").html())
	}}
	c := newFixture(t, f, Options{MaxDuration: time.Minute})

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		now := clock
		clock = clock.Add(25 * time.Second)
		return now
	}

	_, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Contains(t, inc.Reason, "time ceiling")
	assert.Equal(t, 2, f.count())
}

func TestCrawlPageParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>blocked</html>`},
		{"missing data", `{"rows_num": 0}`},
		{"data not a string", `{"data": 12}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			good := page(separator(day1), ev("1", "1").html())
			f := &fakeCalendar{pages: staticPages(good, tt.body)}
			c := newFixture(t, f, Options{})

			events, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
			assert.Nil(t, events, "partial results are discarded")

			var perr *PageParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, 1, perr.Offset)
		})
	}
}

func TestCrawlHTTPErrorIsFatal(t *testing.T) {
	f := &fakeCalendar{status: http.StatusForbidden}
	c := newFixture(t, f, Options{})

	events, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	assert.Nil(t, events)

	var httpErr *datasource.ErrHTTP
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
}

func TestCrawlCancelled(t *testing.T) {
	f := &fakeCalendar{pages: staticPages(page(separator(day1), ev("1", "1").html()))}
	c := newFixture(t, f, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Crawl(ctx, mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.count())
}

func TestCrawlRejectsInvertedRange(t *testing.T) {
	f := &fakeCalendar{pages: staticPages()}
	c := newFixture(t, f, Options{})

	_, err := c.Crawl(context.Background(), mustDate(t, "02/01/2020"), mustDate(t, "01/01/2020"))
	require.Error(t, err)
	assert.Zero(t, f.count())
}

func TestCrawlRequestPayload(t *testing.T) {
	p1 := page(separator(day1), ev("1", "1").html())
	f := &fakeCalendar{pages: staticPages(p1, p1)}
	c := newFixture(t, f, Options{Countries: []int{5, 72}})

	_, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	require.NoError(t, err)
	require.Len(t, f.forms, 2)

	form := f.forms[0]
	assert.Equal(t, "2020-01-01", form.Get("dateFrom"))
	assert.Equal(t, "2020-01-02", form.Get("dateTo"))
	assert.Equal(t, "42", form.Get("timeZone"))
	assert.Equal(t, "timeOnly", form.Get("timeFilter"))
	assert.Equal(t, "custom", form.Get("currentTab"))
	assert.Equal(t, "1", form.Get("submitFilters"))
	assert.Equal(t, "0", form.Get("limit_from"))
	assert.Equal(t, []string{"5", "72"}, form["country[]"])
	assert.Equal(t, "1", f.forms[1].Get("limit_from"), "offset increments per page")

	h := f.headers[0]
	assert.Equal(t, "test-agent/1.0", h.Get("User-Agent"))
	assert.Equal(t, "XMLHttpRequest", h.Get("X-Requested-With"))
	assert.Equal(t, "text/html", h.Get("Accept"))
	assert.Contains(t, h.Get("Content-Type"), "application/x-www-form-urlencoded")
}

func TestCrawlRotatesIdentity(t *testing.T) {
	p1 := page(separator(day1), ev("1", "1").html())
	f := &fakeCalendar{pages: staticPages(p1, p1)}
	srv := httptest.NewServer(f)
	defer srv.Close()

	rotation := &sequenceIdentity{ids: []Identity{{"agent-a", 42}, {"agent-b", 8}}}
	c := NewCrawler(Options{Endpoint: srv.URL}, rotation, nil)

	_, err := c.Crawl(context.Background(), mustDate(t, "01/01/2020"), mustDate(t, "02/01/2020"))
	require.NoError(t, err)
	require.Len(t, f.headers, 2)
	assert.Equal(t, "agent-a", f.headers[0].Get("User-Agent"))
	assert.Equal(t, "agent-b", f.headers[1].Get("User-Agent"))
	assert.Equal(t, "8", f.forms[1].Get("timeZone"))
}

type sequenceIdentity struct {
	ids []Identity
	n   int
}

func (s *sequenceIdentity) Next() Identity {
	id := s.ids[s.n%len(s.ids)]
	s.n++
	return id
}

// ═══════════════════════════════════════════════════════════════════
// Errors
// ═══════════════════════════════════════════════════════════════════

func TestErrorMessages(t *testing.T) {
	inner := errors.New("unexpected end of JSON input")
	perr := &PageParseError{Offset: 4, Err: inner}
	assert.Equal(t, "calendar page 4: parse body: unexpected end of JSON input", perr.Error())
	assert.ErrorIs(t, perr, inner)

	merr := &MappingError{RowID: "77", Rating: "5"}
	assert.Equal(t, `calendar row 77: unknown importance rating "5"`, merr.Error())

	ierr := &IncompleteError{Pages: 500, Events: 12000, Reason: "page ceiling 500 reached"}
	assert.Equal(t, "calendar crawl incomplete after 500 pages (12000 events): page ceiling 500 reached", ierr.Error())
}
