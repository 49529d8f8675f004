package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/swamplocks/marketdata/internal/calendar"
	"github.com/swamplocks/marketdata/internal/datasource"
	"github.com/swamplocks/marketdata/internal/render"
	"github.com/swamplocks/marketdata/internal/scraper"
	"github.com/swamplocks/marketdata/pkg/models"
	"github.com/swamplocks/marketdata/pkg/utils"
)

// seriesConcurrency bounds parallel chart requests in the series command.
const seriesConcurrency = 4

// --- Wiring ---

func newSectors() *scraper.Sectors {
	browser := render.NewChrome(render.ChromeOptions{
		Headless:   cfg.Render.Headless,
		NoSandbox:  cfg.Render.NoSandbox,
		DisableGPU: cfg.Render.DisableGPU,
		ExecPath:   cfg.Render.ExecPath,
		UserAgent:  cfg.Render.UserAgent,
	})
	extractor := scraper.NewExtractor(browser, cfg.Render.Cooldown(), logger)
	return scraper.NewSectors(extractor, scraper.Options{
		Sectors:           cfg.Sectors,
		ContainerSelector: cfg.Render.ContainerSelector,
		Timeout:           cfg.Render.Timeout(),
	}, logger)
}

func newChart() *datasource.YFinance {
	return datasource.NewYFinance(datasource.ChartOptions{
		BaseURL:        cfg.Chart.BaseURL,
		UserAgent:      cfg.Chart.UserAgent,
		Timeout:        time.Duration(cfg.Chart.TimeoutSec) * time.Second,
		RequestsPerSec: cfg.Chart.RequestsPerSec,
	}, logger)
}

func newCrawler() *calendar.Crawler {
	identities := calendar.NewRandomIdentity(cfg.Calendar.UserAgents, cfg.Calendar.TimeZones, 0)
	return calendar.NewCrawler(calendar.Options{
		Endpoint:       cfg.Calendar.Endpoint,
		Countries:      cfg.Calendar.Countries,
		TimeFilter:     cfg.Calendar.TimeFilter,
		MaxPages:       cfg.Calendar.MaxPages,
		MaxDuration:    time.Duration(cfg.Calendar.MaxDurationSec) * time.Second,
		Timeout:        time.Duration(cfg.Calendar.TimeoutSec) * time.Second,
		RequestsPerSec: cfg.Calendar.RequestsPerSec,
	}, identities, logger)
}

func newNews() *datasource.AlphaVantage {
	topics := make([]string, 0, len(cfg.Sectors))
	for _, sec := range cfg.Sectors {
		topics = append(topics, sec.Name)
	}
	return datasource.NewAlphaVantage(datasource.NewsOptions{
		BaseURL:        cfg.News.BaseURL,
		APIKey:         cfg.News.APIKey,
		Topics:         topics,
		Sort:           cfg.News.Sort,
		Limit:          cfg.News.Limit,
		Timeout:        time.Duration(cfg.News.TimeoutSec) * time.Second,
		RequestsPerSec: cfg.News.RequestsPerSec,
	}, logger)
}

// --- Sectors Command ---

var sectorsCmd = &cobra.Command{
	Use:   "sectors [name...]",
	Short: "Scrape the stock listing of each sector",
	Long: `Render each sector page in a fresh headless browser and extract its
stock table. With no names, every configured sector is scraped in order.
A failing sector is reported and the rest still run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		sectors := newSectors()

		var tables []models.SectorTable
		if len(args) == 0 {
			tables = sectors.FetchAll(cmd.Context())
		} else {
			for _, name := range args {
				sec, err := sectors.Lookup(name)
				if err != nil {
					return err
				}
				rows, err := sectors.FetchSector(cmd.Context(), sec.Name)
				if err != nil {
					logger.Error().Err(err).Str("sector", sec.Name).Msg("sector fetch failed")
				}
				tables = append(tables, models.SectorTable{Sector: sec.Name, URL: sec.URL, Rows: rows, Err: err})
			}
		}

		if err := writeSectors(cmd.OutOrStdout(), format, tables); err != nil {
			return err
		}
		failed := 0
		for _, t := range tables {
			if t.Err != nil {
				failed++
			}
		}
		if failed > 0 && failed == len(tables) {
			return errors.New("every sector failed")
		}
		return nil
	},
}

// --- Series Command ---

var seriesCmd = &cobra.Command{
	Use:   "series [symbol...]",
	Short: "Fetch closing-price series from the chart API",
	Example: `  marketdata series AAPL MSFT --range 5y --interval 1wk
  marketdata series --sector technology`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		period, _ := cmd.Flags().GetString("range")
		interval, _ := cmd.Flags().GetString("interval")
		sectorNames, _ := cmd.Flags().GetStringSlice("sector")
		if period == "" {
			period = cfg.Chart.Period
		}
		if interval == "" {
			interval = cfg.Chart.Interval
		}

		symbols := make([]string, 0, len(args)+len(sectorNames))
		for _, a := range args {
			symbols = append(symbols, utils.NormalizeSymbol(a))
		}
		if len(sectorNames) > 0 {
			sectors := newSectors()
			for _, name := range sectorNames {
				ticker, err := sectors.Ticker(name)
				if err != nil {
					return err
				}
				symbols = append(symbols, ticker)
			}
		}
		if len(symbols) == 0 {
			return errors.New("at least one symbol or --sector is required")
		}

		chart := newChart()
		series := make([]symbolSeries, len(symbols))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(seriesConcurrency)
		for i, sym := range symbols {
			g.Go(func() error {
				points, err := chart.FetchSeries(ctx, sym, period, interval)
				if err != nil {
					return fmt.Errorf("%s: %w", sym, err)
				}
				series[i] = symbolSeries{Symbol: sym, Points: points}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		return writeSeries(cmd.OutOrStdout(), format, series)
	},
}

func init() {
	seriesCmd.Flags().String("range", "", "chart range, e.g. 1mo, 1y, 5y, max (default from config)")
	seriesCmd.Flags().String("interval", "", "bar interval, e.g. 1d, 1wk, 1mo (default from config)")
	seriesCmd.Flags().StringSlice("sector", nil, "add the index ticker of a configured sector")
}

// --- Calendar Command ---

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Crawl the macroeconomic event calendar",
	Long: `Crawl every calendar page between --from and --to (dd/mm/yyyy).
The crawl either covers the whole range or fails; no partial output is
written.`,
	Example: `  marketdata calendar --from 01/01/2020 --to 31/01/2020 --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		fromFlag, _ := cmd.Flags().GetString("from")
		toFlag, _ := cmd.Flags().GetString("to")
		from, to, err := utils.ResolveRange(fromFlag, toFlag, cfg.Calendar.DefaultFrom)
		if err != nil {
			return err
		}

		events, err := newCrawler().Crawl(cmd.Context(), from, to)
		if err != nil {
			return err
		}
		return writeCalendar(cmd.OutOrStdout(), format, events)
	},
}

func init() {
	calendarCmd.Flags().String("from", "", "first day, dd/mm/yyyy (default from config)")
	calendarCmd.Flags().String("to", "", "last day, dd/mm/yyyy (default today)")
}

// --- News Command ---

var newsCmd = &cobra.Command{
	Use:   "news TICKER...",
	Short: "Fetch the news sentiment feed for tickers",
	Long: `Query the Alpha Vantage news sentiment feed for articles about the
given tickers published between --from and --to (dd/mm/yyyy), filtered to
the configured sector topics. Requires news.api_key or ALPHAVANTAGE_API_KEY.`,
	Example: `  marketdata news AAPL TSLA --from 01/01/2024 --format json`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		fromFlag, _ := cmd.Flags().GetString("from")
		toFlag, _ := cmd.Flags().GetString("to")
		from, to, err := utils.ResolveRange(fromFlag, toFlag, cfg.News.DefaultFrom)
		if err != nil {
			return err
		}

		articles, err := newNews().FetchNewsSentiment(cmd.Context(), args, from, to)
		if err != nil {
			return err
		}
		return writeNews(cmd.OutOrStdout(), format, articles)
	},
}

func init() {
	newsCmd.Flags().String("from", "", "first day, dd/mm/yyyy (default from config)")
	newsCmd.Flags().String("to", "", "last day, dd/mm/yyyy (default today)")
}
