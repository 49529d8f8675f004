package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── SectorRow Tests ──

func TestNewSectorRow(t *testing.T) {
	headers := []string{"Symbol", "Name", "Price"}
	tests := []struct {
		name  string
		cells []string
		ok    bool
	}{
		{"matching width", []string{"AAPL", "Apple Inc.", "189.50"}, true},
		{"short row", []string{"AAPL", "Apple Inc."}, false},
		{"long row", []string{"AAPL", "Apple Inc.", "189.50", "extra"}, false},
		{"no cells", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, ok := NewSectorRow(headers, tt.cells)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, len(headers), row.Width())
			} else {
				assert.Nil(t, row, "rejected row should be nil")
			}
		})
	}

	_, ok := NewSectorRow(nil, nil)
	assert.False(t, ok, "empty header row must be rejected")
}

func TestSectorRowAccessors(t *testing.T) {
	row, _ := NewSectorRow([]string{"Symbol", "Price"}, []string{"MSFT", "415.10"})

	v, ok := row.Get("Price")
	assert.True(t, ok)
	assert.Equal(t, "415.10", v)
	_, ok = row.Get("Volume")
	assert.False(t, ok, "Get(Volume) should miss")
	assert.Equal(t, []string{"Symbol", "Price"}, row.Columns())
	assert.Equal(t, []string{"MSFT", "415.10"}, row.Values())
}

func TestSectorRowJSONKeepsColumnOrder(t *testing.T) {
	row, _ := NewSectorRow(
		[]string{"Symbol", "Name", "Change %", "Market Cap"},
		[]string{"NVDA", "NVIDIA \"Corp\"", "+1.2%", "3.1T"},
	)
	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"Symbol":"NVDA","Name":"NVIDIA \"Corp\"","Change %":"+1.2%","Market Cap":"3.1T"}`, string(data))

	data, err = json.Marshal(SectorRow{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestSectorRowUniqueColumnNames(t *testing.T) {
	row, ok := NewSectorRow([]string{"", ""}, []string{"a", "b"})
	require.True(t, ok)
	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"Column 1":"a","Column 2":"b"}`, string(data))

	assert.Equal(t,
		[]string{"Symbol", "Name", "Name (2)", "Column 4", "Name (3)"},
		UniqueColumnNames([]string{"Symbol", "Name", "Name", " ", "Name"}))
	assert.Equal(t, []string{"A", "B"}, UniqueColumnNames([]string{"A", "B"}), "unique names are kept")
}

// ── PricePoint Tests ──

func TestPricePointJSON(t *testing.T) {
	c := 101.25
	data, err := json.Marshal([]PricePoint{
		{Timestamp: 1577836800, Close: &c},
		{Timestamp: 1577923200},
	})
	require.NoError(t, err)
	want := `[{"timestamp":1577836800,"date":"2020-01-01T00:00:00Z","close":101.25},` +
		`{"timestamp":1577923200,"date":"2020-01-02T00:00:00Z","close":null}]`
	assert.Equal(t, want, string(data))
}

func TestPricePointTime(t *testing.T) {
	got := PricePoint{Timestamp: 1700000000}.Time()
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, int64(1700000000), got.Unix())
}

// ── CalendarEvent Tests ──

func TestImportanceFromRating(t *testing.T) {
	tests := []struct {
		rating  int
		want    Importance
		wantErr bool
	}{
		{1, ImportanceLow, false},
		{2, ImportanceMedium, false},
		{3, ImportanceHigh, false},
		{0, "", true},
		{5, "", true},
	}
	for _, tt := range tests {
		got, err := ImportanceFromRating(tt.rating)
		if tt.wantErr {
			assert.Error(t, err, "rating %d", tt.rating)
		} else {
			assert.NoError(t, err, "rating %d", tt.rating)
		}
		assert.Equal(t, tt.want, got, "rating %d", tt.rating)
	}
}

func TestCalendarEventJSONNulls(t *testing.T) {
	imp := ImportanceHigh
	e := CalendarEvent{
		ID:         "9001",
		Date:       time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC),
		Time:       "08:30",
		Importance: &imp,
		Event:      "Nonfarm Payrolls (Dec)",
	}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	s := string(data)
	for _, frag := range []string{`"actual":null`, `"currency":null`, `"importance":"high"`, `"date":"2020-01-03T00:00:00Z"`} {
		assert.Contains(t, s, frag)
	}
}

func TestDeref(t *testing.T) {
	s := "USD"
	imp := ImportanceLow
	assert.Equal(t, "USD", Deref(&s))
	assert.Equal(t, "", Deref[string](nil))
	assert.Equal(t, Importance("low"), Deref(&imp))
	assert.Equal(t, Importance(""), Deref[Importance](nil))
}

// ── NewsArticle Tests ──

func TestNewsArticleJSON(t *testing.T) {
	a := NewsArticle{
		Title:          "Chipmakers rally",
		URL:            "https://example.com/a",
		TimePublished:  time.Date(2024, 3, 15, 14, 30, 5, 0, time.UTC),
		Source:         "Example Wire",
		Topics:         []NewsTopic{{Topic: "Technology", Relevance: 0.9}, {Topic: "Earnings", Relevance: 0.25}},
		SentimentScore: 0.31,
		SentimentLabel: "Somewhat-Bullish",
	}
	assert.Equal(t, []string{"Technology", "Earnings"}, a.TopicNames())

	data, err := json.Marshal(a)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"time_published":"2024-03-15T14:30:05Z"`)
	assert.Contains(t, s, `"topics":[{"topic":"Technology","relevance_score":0.9}`)
	assert.Contains(t, s, `"overall_sentiment_label":"Somewhat-Bullish"`)
}
