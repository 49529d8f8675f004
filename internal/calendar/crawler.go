// Package calendar crawls the paginated economic calendar endpoint and
// classifies the rows of each returned HTML fragment into events.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/swamplocks/marketdata/internal/datasource"
	"github.com/swamplocks/marketdata/internal/infra"
	"github.com/swamplocks/marketdata/internal/logging"
	"github.com/swamplocks/marketdata/pkg/models"
	"github.com/swamplocks/marketdata/pkg/utils"
)

// Crawl defaults.
const (
	DefaultMaxPages   = 500
	DefaultTimeFilter = "timeOnly"
)

var errMissingData = errors.New(`response has no "data" field`)

// Options configures a Crawler.
type Options struct {
	Endpoint       string
	Countries      []int
	TimeFilter     string
	MaxPages       int           // request ceiling per crawl; 0 means DefaultMaxPages
	MaxDuration    time.Duration // 0 means no time ceiling
	Timeout        time.Duration // per request
	RequestsPerSec float64
}

// Crawler walks the calendar pages for a date range.
type Crawler struct {
	opts       Options
	client     *resty.Client
	identities IdentityProvider
	limiter    *infra.RateLimiter
	logger     *log.Logger
	now        func() time.Time
}

// NewCrawler creates a crawler. A nil identity provider sends the default
// user agent and time zone 0 on every page.
func NewCrawler(opts Options, identities IdentityProvider, logger *log.Logger) *Crawler {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.TimeFilter == "" {
		opts.TimeFilter = DefaultTimeFilter
	}
	if identities == nil {
		identities = StaticIdentity{UserAgent: datasource.DefaultUserAgent}
	}
	return &Crawler{
		opts:       opts,
		client:     datasource.NewClient(datasource.ClientOptions{Timeout: opts.Timeout}),
		identities: identities,
		limiter:    infra.NewRateLimiter(opts.RequestsPerSec, 1),
		logger:     logging.OrDiscard(logger),
		now:        time.Now,
	}
}

// Crawl returns every event published between from and to, in upstream
// order. It either covers the whole range or fails: parse errors, HTTP
// errors and the page/time ceilings all discard the events gathered so far.
//
// The upstream has no "more pages" flag. The crawl ends on an empty page,
// or when a page's terminal row id repeats the previous page's.
func (c *Crawler) Crawl(ctx context.Context, from, to time.Time) ([]models.CalendarEvent, error) {
	if from.After(to) {
		return nil, fmt.Errorf("calendar: from %s is after to %s", utils.FormatCalendarDate(from), utils.FormatCalendarDate(to))
	}

	runID := uuid.NewString()
	start := c.now()
	c.logger.Info().Str("run", runID).
		Str("from", utils.FormatAPIDate(from)).
		Str("to", utils.FormatAPIDate(to)).
		Msg("calendar: crawl started")

	var (
		results        []models.CalendarEvent
		lastTerminalID string
		current        = utils.TruncateDay(from)
		skipped        int
	)

	for offset := 0; ; offset++ {
		if offset >= c.opts.MaxPages {
			return nil, c.incomplete(runID, offset, len(results), fmt.Sprintf("page ceiling %d reached", c.opts.MaxPages))
		}
		if c.opts.MaxDuration > 0 && c.now().Sub(start) >= c.opts.MaxDuration {
			return nil, c.incomplete(runID, offset, len(results), fmt.Sprintf("time ceiling %s reached", c.opts.MaxDuration))
		}

		rows, err := c.fetchPage(ctx, from, to, offset)
		if err != nil {
			c.logger.Error().Str("run", runID).Int("offset", offset).Err(err).Msg("calendar: crawl failed")
			return nil, err
		}
		if rows.Length() == 0 {
			c.logger.Debug().Str("run", runID).Int("offset", offset).Msg("calendar: empty page")
			break
		}

		tid := terminalID(rows)
		if tid == "" || tid == lastTerminalID {
			c.logger.Debug().Str("run", runID).Int("offset", offset).Str("terminal_id", tid).Msg("calendar: repeated page")
			break
		}

		rows.Each(func(_ int, tr *goquery.Selection) {
			var row Row
			row, current, err = ClassifyRow(tr, current)
			if err != nil {
				skipped++
				c.logger.Warn().Str("run", runID).Int("offset", offset).Err(err).Msg("calendar: row skipped")
				return
			}
			if row.Kind == RowEvent {
				results = append(results, row.Event)
			}
		})
		lastTerminalID = tid
	}

	c.logger.Info().Str("run", runID).
		Int("events", len(results)).
		Int("skipped", skipped).
		Dur("elapsed", c.now().Sub(start)).
		Msg("calendar: crawl finished")
	if results == nil {
		results = []models.CalendarEvent{}
	}
	return results, nil
}

func (c *Crawler) incomplete(runID string, pages, events int, reason string) error {
	c.logger.Error().Str("run", runID).Int("pages", pages).Int("events", events).Msg("calendar: " + reason)
	return &IncompleteError{Pages: pages, Events: events, Reason: reason}
}

// fetchPage requests one page and returns its tr rows.
func (c *Crawler) fetchPage(ctx context.Context, from, to time.Time, offset int) (*goquery.Selection, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	id := c.identities.Next()
	req := c.client.R().
		SetContext(ctx).
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetHeader("Accept", "text/html").
		SetFormDataFromValues(c.form(from, to, offset, id.TimeZone))
	if id.UserAgent != "" {
		req.SetHeader("User-Agent", id.UserAgent)
	}

	resp, err := req.Post(c.opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("calendar page %d: %w", offset, err)
	}
	if err := datasource.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("calendar page %d: %w", offset, err)
	}

	var page struct {
		Data *string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, &PageParseError{Offset: offset, Err: err}
	}
	if page.Data == nil {
		return nil, &PageParseError{Offset: offset, Err: errMissingData}
	}

	// Bare tr elements are dropped by the HTML parser outside a table.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table><tbody>" + *page.Data + "</tbody></table>"))
	if err != nil {
		return nil, &PageParseError{Offset: offset, Err: err}
	}
	return doc.Find("tr"), nil
}

func (c *Crawler) form(from, to time.Time, offset, timeZone int) url.Values {
	form := url.Values{}
	form.Set("dateFrom", utils.FormatAPIDate(from))
	form.Set("dateTo", utils.FormatAPIDate(to))
	form.Set("timeZone", strconv.Itoa(timeZone))
	form.Set("timeFilter", c.opts.TimeFilter)
	form.Set("currentTab", "custom")
	form.Set("submitFilters", "1")
	form.Set("limit_from", strconv.Itoa(offset))
	for _, country := range c.opts.Countries {
		form.Add("country[]", strconv.Itoa(country))
	}
	return form
}
