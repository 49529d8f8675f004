// Package api provides the HTTP REST API server for marketdata.
//
// It exposes the sector listings, price series, economic calendar and news
// sentiment feed behind a JSON envelope, with results cached for a configurable TTL.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phuslu/log"

	"github.com/swamplocks/marketdata/internal/calendar"
	"github.com/swamplocks/marketdata/internal/config"
	"github.com/swamplocks/marketdata/internal/datasource"
	"github.com/swamplocks/marketdata/internal/infra"
	"github.com/swamplocks/marketdata/internal/logging"
	"github.com/swamplocks/marketdata/internal/scraper"
	"github.com/swamplocks/marketdata/pkg/models"
	"github.com/swamplocks/marketdata/pkg/utils"
)

// Version is reported by the health endpoint. Set at build time.
var Version = "dev"

// requestTimeout bounds one API request. Calendar crawls over several
// years take minutes.
const requestTimeout = 10 * time.Minute

// --- Upstream capabilities ---

// SectorSource scrapes sector listing tables.
type SectorSource interface {
	Lookup(name string) (models.Sector, error)
	FetchSector(ctx context.Context, name string) ([]models.SectorRow, error)
}

// SeriesSource fetches price series.
type SeriesSource interface {
	FetchSeries(ctx context.Context, symbol, period, interval string) ([]models.PricePoint, error)
}

// CalendarSource crawls the economic calendar.
type CalendarSource interface {
	Crawl(ctx context.Context, from, to time.Time) ([]models.CalendarEvent, error)
}

// NewsSource fetches news sentiment feeds.
type NewsSource interface {
	FetchNewsSentiment(ctx context.Context, tickers []string, from, to time.Time) ([]models.NewsArticle, error)
}

// Deps are the upstream sources served by the API.
type Deps struct {
	Sectors  SectorSource
	Series   SeriesSource
	Calendar CalendarSource
	News     NewsSource
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	deps   Deps
	cache  *infra.Cache
	logger *log.Logger
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, deps Deps, logger *log.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		cache:  infra.NewCache(time.Duration(cfg.API.CacheTTLSec) * time.Second),
		logger: logging.OrDiscard(logger),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: requestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("api: listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("api: shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleGetConfig)

		// Sectors
		r.Get("/sectors", s.handleSectors)
		r.Get("/sectors/{sector}", s.handleSector)
		r.Get("/sectors/{sector}/series", s.handleSectorSeries)

		// Price series
		r.Get("/series/{symbol}", s.handleSeries)

		// Economic calendar
		r.Get("/calendar", s.handleCalendar)

		// News sentiment
		r.Get("/news", s.handleNews)
	})

	return r
}

// accessLog logs one line per request through the structured logger.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Msg("api: request")
	})
}

// ════════════════════════════════════════════════════════════════════
// Response types
// ════════════════════════════════════════════════════════════════════

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SectorResponse is the payload of GET /api/v1/sectors/{sector}.
type SectorResponse struct {
	Sector string             `json:"sector"`
	URL    string             `json:"url"`
	Rows   []models.SectorRow `json:"rows"`
}

// SeriesResponse is the payload of the series endpoints.
type SeriesResponse struct {
	Symbol   string              `json:"symbol"`
	Range    string              `json:"range"`
	Interval string              `json:"interval"`
	Points   []models.PricePoint `json:"points"`
}

// CalendarResponse is the payload of GET /api/v1/calendar.
type CalendarResponse struct {
	From   string                 `json:"from"`
	To     string                 `json:"to"`
	Count  int                    `json:"count"`
	Events []models.CalendarEvent `json:"events"`
}

// NewsResponse is the payload of GET /api/v1/news.
type NewsResponse struct {
	Tickers  []string             `json:"tickers"`
	From     string               `json:"from"`
	To       string               `json:"to"`
	Count    int                  `json:"count"`
	Articles []models.NewsArticle `json:"articles"`
}

// ════════════════════════════════════════════════════════════════════
// Handlers
// ════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":   "ok",
			"version":  Version,
			"time_utc": time.Now().UTC().Format(time.RFC3339),
			"cached":   s.cache.Len(),
		},
	})
}

func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.cfg.Sectors,
	})
}

func (s *Server) handleSector(w http.ResponseWriter, r *http.Request) {
	sec, err := s.deps.Sectors.Lookup(chi.URLParam(r, "sector"))
	if err != nil {
		s.fail(w, err)
		return
	}

	key := "sector:" + strings.ToLower(sec.Name)
	if cached, ok := s.cache.Get(key); ok {
		s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: cached})
		return
	}

	rows, err := s.deps.Sectors.FetchSector(r.Context(), sec.Name)
	if err != nil {
		s.fail(w, err)
		return
	}
	if rows == nil {
		rows = []models.SectorRow{}
	}

	resp := SectorResponse{Sector: sec.Name, URL: sec.URL, Rows: rows}
	s.cache.Set(key, resp)
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleSectorSeries(w http.ResponseWriter, r *http.Request) {
	sec, err := s.deps.Sectors.Lookup(chi.URLParam(r, "sector"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if sec.Ticker == "" {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("sector %q has no index ticker", sec.Name))
		return
	}
	s.serveSeries(w, r, sec.Ticker)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	symbol := utils.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	s.serveSeries(w, r, symbol)
}

func (s *Server) serveSeries(w http.ResponseWriter, r *http.Request, symbol string) {
	period := r.URL.Query().Get("range")
	if period == "" {
		period = s.cfg.Chart.Period
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = s.cfg.Chart.Interval
	}

	key := fmt.Sprintf("series:%s:%s:%s", symbol, period, interval)
	if cached, ok := s.cache.Get(key); ok {
		s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: cached})
		return
	}

	points, err := s.deps.Series.FetchSeries(r.Context(), symbol, period, interval)
	if err != nil {
		s.fail(w, err)
		return
	}

	resp := SeriesResponse{Symbol: symbol, Range: period, Interval: interval, Points: points}
	s.cache.Set(key, resp)
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := utils.ResolveRange(q.Get("from"), q.Get("to"), s.cfg.Calendar.DefaultFrom)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := "calendar:" + utils.FormatAPIDate(from) + ":" + utils.FormatAPIDate(to)
	if cached, ok := s.cache.Get(key); ok {
		s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: cached})
		return
	}

	events, err := s.deps.Calendar.Crawl(r.Context(), from, to)
	if err != nil {
		s.fail(w, err)
		return
	}

	resp := CalendarResponse{
		From:   utils.FormatCalendarDate(from),
		To:     utils.FormatCalendarDate(to),
		Count:  len(events),
		Events: events,
	}
	s.cache.Set(key, resp)
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var tickers []string
	for _, t := range strings.Split(q.Get("tickers"), ",") {
		if sym := utils.NormalizeSymbol(t); sym != "" {
			tickers = append(tickers, sym)
		}
	}
	if len(tickers) == 0 {
		s.writeError(w, http.StatusBadRequest, "tickers is required")
		return
	}
	from, to, err := utils.ResolveRange(q.Get("from"), q.Get("to"), s.cfg.News.DefaultFrom)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := "news:" + strings.Join(tickers, ",") + ":" + utils.FormatAPIDate(from) + ":" + utils.FormatAPIDate(to)
	if cached, ok := s.cache.Get(key); ok {
		s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: cached})
		return
	}

	articles, err := s.deps.News.FetchNewsSentiment(r.Context(), tickers, from, to)
	if err != nil {
		s.fail(w, err)
		return
	}
	if articles == nil {
		articles = []models.NewsArticle{}
	}

	resp := NewsResponse{
		Tickers:  tickers,
		From:     utils.FormatCalendarDate(from),
		To:       utils.FormatCalendarDate(to),
		Count:    len(articles),
		Articles: articles,
	}
	s.cache.Set(key, resp)
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

// fail logs err and writes it with the status matching its kind.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Int("status", status).Msg("api: upstream failure")
	}
	s.writeError(w, status, err.Error())
}

// statusFor maps a source error to an HTTP status.
func statusFor(err error) int {
	var (
		incomplete *calendar.IncompleteError
		parseErr   *calendar.PageParseError
		httpErr    *datasource.ErrHTTP
	)
	switch {
	case errors.Is(err, scraper.ErrUnknownSector):
		return http.StatusNotFound
	case errors.As(err, &incomplete),
		errors.Is(err, scraper.ErrRenderTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &parseErr), errors.As(err, &httpErr):
		return http.StatusBadGateway
	case errors.Is(err, datasource.ErrMissingAPIKey),
		errors.Is(err, datasource.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, datasource.ErrSourceMessage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("api: failed to write JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
