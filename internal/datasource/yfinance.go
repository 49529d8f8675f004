package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/phuslu/log"

	"github.com/swamplocks/marketdata/internal/infra"
	"github.com/swamplocks/marketdata/internal/logging"
	"github.com/swamplocks/marketdata/pkg/models"
	"github.com/swamplocks/marketdata/pkg/utils"
)

// Default chart query parameters.
const (
	DefaultPeriod   = "1y"
	DefaultInterval = "1d"
)

// ChartOptions configures the Yahoo Finance chart fetcher.
type ChartOptions struct {
	BaseURL        string // e.g. https://query1.finance.yahoo.com
	UserAgent      string
	Timeout        time.Duration
	RequestsPerSec float64
}

// YFinance fetches price series from the Yahoo Finance chart API.
type YFinance struct {
	client  *resty.Client
	baseURL string
	limiter *infra.RateLimiter
	logger  *log.Logger
}

// NewYFinance creates a chart fetcher.
func NewYFinance(opts ChartOptions, logger *log.Logger) *YFinance {
	return &YFinance{
		client:  NewClient(ClientOptions{UserAgent: opts.UserAgent, Timeout: opts.Timeout}),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limiter: infra.NewRateLimiter(opts.RequestsPerSec, 1),
		logger:  logging.OrDiscard(logger),
	}
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

type yfIndicators struct {
	Quote []yfQuote `json:"quote"`
}

type yfQuote struct {
	Close []*float64 `json:"close"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// FetchSeries returns the closing-price series of symbol over period
// (e.g. "1y") sampled at interval (e.g. "1d").
//
// "No data" is an expected outcome: an unknown symbol, an upstream chart
// error or a body missing the chart/result/quote keys yields an empty
// series and a nil error. Transport failures and HTTP errors other than
// 404 are returned. There are no retries.
func (y *YFinance) FetchSeries(ctx context.Context, symbol, period, interval string) ([]models.PricePoint, error) {
	if period == "" {
		period = DefaultPeriod
	}
	if interval == "" {
		interval = DefaultInterval
	}
	symbol = utils.NormalizeSymbol(symbol)

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v8/finance/chart/%s", y.baseURL, utils.EscapeSymbol(symbol))
	resp, err := y.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"range":    period,
			"interval": interval,
		}).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("yfinance chart %s: %w", symbol, err)
	}
	// Yahoo reports unknown symbols as 404 with a regular chart error body.
	if resp.StatusCode() != http.StatusNotFound {
		if err := CheckResponse(resp); err != nil {
			return nil, fmt.Errorf("yfinance chart %s: %w", symbol, err)
		}
	}

	points, reason := parseChart(resp.Body())
	if reason != "" {
		y.logger.Warn().Str("symbol", symbol).Str("reason", reason).Msg("yfinance: no data found for ticker")
		return []models.PricePoint{}, nil
	}

	y.logger.Debug().Str("symbol", symbol).Int("points", len(points)).Msg("yfinance: chart fetched")
	return points, nil
}

// --- Helpers ---

// parseChart decodes a chart body. A non-empty reason explains why the
// body carries no usable series.
func parseChart(body []byte) ([]models.PricePoint, string) {
	var resp yfChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "malformed body: " + err.Error()
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Sprintf("chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, "missing chart.result"
	}
	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, "missing indicators.quote"
	}
	return zipCloses(result.Timestamp, result.Indicators.Quote[0].Close), ""
}

// zipCloses pairs timestamps with closes by position. The result is as long
// as the shorter input and keeps upstream order.
func zipCloses(timestamps []int64, closes []*float64) []models.PricePoint {
	n := min(len(timestamps), len(closes))
	points := make([]models.PricePoint, n)
	for i := 0; i < n; i++ {
		points[i] = models.PricePoint{Timestamp: timestamps[i], Close: closes[i]}
	}
	return points
}
