package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/phuslu/log"

	"github.com/swamplocks/marketdata/internal/infra"
	"github.com/swamplocks/marketdata/internal/logging"
	"github.com/swamplocks/marketdata/pkg/models"
	"github.com/swamplocks/marketdata/pkg/utils"
)

// ErrMissingAPIKey is returned when a keyed source has no API key configured.
var ErrMissingAPIKey = errors.New("API key not configured")

// ErrSourceMessage wraps an error message the source reports in a 200 body.
var ErrSourceMessage = errors.New("data source reported an error")

// Default news query parameters.
const (
	DefaultNewsSort  = "EARLIEST"
	DefaultNewsLimit = 1000
)

// NewsOptions configures the Alpha Vantage news sentiment fetcher.
type NewsOptions struct {
	BaseURL        string // e.g. https://www.alphavantage.co
	APIKey         string
	Topics         []string // e.g. sector names
	Sort           string   // EARLIEST, LATEST or RELEVANCE
	Limit          int
	Timeout        time.Duration
	RequestsPerSec float64
}

// AlphaVantage fetches news sentiment feeds from Alpha Vantage.
type AlphaVantage struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	topics  []string
	sort    string
	limit   int
	limiter *infra.RateLimiter
	logger  *log.Logger
}

// NewAlphaVantage creates a news sentiment fetcher.
func NewAlphaVantage(opts NewsOptions, logger *log.Logger) *AlphaVantage {
	sort := opts.Sort
	if sort == "" {
		sort = DefaultNewsSort
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultNewsLimit
	}
	return &AlphaVantage{
		client:  NewClient(ClientOptions{Timeout: opts.Timeout}),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		topics:  opts.Topics,
		sort:    sort,
		limit:   limit,
		limiter: infra.NewRateLimiter(opts.RequestsPerSec, 1),
		logger:  logging.OrDiscard(logger),
	}
}

// Name returns the data source name.
func (a *AlphaVantage) Name() string { return "Alpha Vantage" }

// --- Alpha Vantage API types ---

type avNewsResponse struct {
	Feed         []avArticle `json:"feed"`
	Note         string      `json:"Note"`
	Information  string      `json:"Information"`
	ErrorMessage string      `json:"Error Message"`
}

type avArticle struct {
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	TimePublished  string    `json:"time_published"`
	Summary        string    `json:"summary"`
	Source         string    `json:"source"`
	Topics         []avTopic `json:"topics"`
	SentimentScore avFloat   `json:"overall_sentiment_score"`
	SentimentLabel string    `json:"overall_sentiment_label"`
}

type avTopic struct {
	Topic     string  `json:"topic"`
	Relevance avFloat `json:"relevance_score"`
}

// avFloat accepts both JSON numbers and numeric strings; the feed uses both.
type avFloat float64

func (f *avFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = avFloat(v)
	return nil
}

// --- Public methods ---

// FetchNewsSentiment returns the news sentiment feed for tickers published
// between from and to. A to at UTC midnight covers that whole day.
//
// An empty feed or an undecodable body yields an empty slice and a nil
// error. Rate-limit notices match ErrRateLimited, other in-body messages
// match ErrSourceMessage.
func (a *AlphaVantage) FetchNewsSentiment(ctx context.Context, tickers []string, from, to time.Time) ([]models.NewsArticle, error) {
	if a.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	syms := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if s := utils.NormalizeSymbol(t); s != "" {
			syms = append(syms, s)
		}
	}
	if len(syms) == 0 {
		return nil, fmt.Errorf("alphavantage news: no tickers given")
	}
	if to.Equal(utils.TruncateDay(to)) {
		to = to.Add(24*time.Hour - time.Minute)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{
		"function":  "NEWS_SENTIMENT",
		"tickers":   strings.Join(syms, ","),
		"time_from": utils.FormatNewsQueryTime(from),
		"time_to":   utils.FormatNewsQueryTime(to),
		"sort":      a.sort,
		"limit":     strconv.Itoa(a.limit),
		"apikey":    a.apiKey,
	}
	if len(a.topics) > 0 {
		params["topics"] = strings.Join(a.topics, ",")
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(a.baseURL + "/query")
	if err != nil {
		return nil, fmt.Errorf("alphavantage news %s: %w", params["tickers"], err)
	}
	if err := CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("alphavantage news %s: %w", params["tickers"], err)
	}

	var body avNewsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		a.logger.Warn().Str("tickers", params["tickers"]).Err(err).Msg("alphavantage: malformed news body")
		return []models.NewsArticle{}, nil
	}
	if err := body.err(); err != nil {
		return nil, fmt.Errorf("alphavantage news %s: %w", params["tickers"], err)
	}

	articles := make([]models.NewsArticle, 0, len(body.Feed))
	for _, item := range body.Feed {
		published, err := utils.ParseNewsTime(item.TimePublished)
		if err != nil {
			a.logger.Warn().Str("url", item.URL).Err(err).Msg("alphavantage: skipping article")
			continue
		}
		articles = append(articles, item.toModel(published))
	}

	a.logger.Debug().Str("tickers", params["tickers"]).Int("articles", len(articles)).Msg("alphavantage: news fetched")
	return articles, nil
}

// --- Helpers ---

// err maps the in-body notices Alpha Vantage sends with HTTP 200.
func (r avNewsResponse) err() error {
	switch {
	case r.Note != "":
		return fmt.Errorf("%w: %s", ErrRateLimited, r.Note)
	case r.Information != "" && strings.Contains(strings.ToLower(r.Information), "rate limit"):
		return fmt.Errorf("%w: %s", ErrRateLimited, r.Information)
	case r.Information != "":
		return fmt.Errorf("%w: %s", ErrSourceMessage, r.Information)
	case r.ErrorMessage != "":
		return fmt.Errorf("%w: %s", ErrSourceMessage, r.ErrorMessage)
	}
	return nil
}

func (a avArticle) toModel(published time.Time) models.NewsArticle {
	topics := make([]models.NewsTopic, 0, len(a.Topics))
	for _, t := range a.Topics {
		topics = append(topics, models.NewsTopic{Topic: t.Topic, Relevance: float64(t.Relevance)})
	}
	return models.NewsArticle{
		Title:          a.Title,
		URL:            a.URL,
		TimePublished:  published,
		Summary:        a.Summary,
		Source:         a.Source,
		Topics:         topics,
		SentimentScore: float64(a.SentimentScore),
		SentimentLabel: a.SentimentLabel,
	}
}
