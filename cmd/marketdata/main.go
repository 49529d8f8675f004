// marketdata scrapes financial market reference data: sector stock
// listings, index price series and the macroeconomic event calendar.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/swamplocks/marketdata/api"
	"github.com/swamplocks/marketdata/internal/config"
	"github.com/swamplocks/marketdata/internal/logging"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, populated before any subcommand runs.
var (
	cfg    *config.Config
	logger *log.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "marketdata",
	Short: "Sector listings, price series and economic calendar scraper",
	Long: `marketdata collects financial market reference data:
  * stock listings of each market sector from rendered Yahoo Finance pages
  * closing-price series from the Yahoo Finance chart API
  * macroeconomic events from the paginated investing.com calendar`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger = logging.New(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("format", "f", "table", "output format (table, csv, json)")

	api.Version = version

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sectorsCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(serveCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "marketdata %s\n", version)
		fmt.Fprintf(out, "  commit:  %s\n", commit)
		fmt.Fprintf(out, "  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintln(out, "  marketdata status")
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintf(out, "  Version:       %s (%s)\n", version, commit)
		fmt.Fprintf(out, "  Config file:   %s\n", orDefault(cfg.File, "(built-in defaults)"))
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  Rendering:")
		fmt.Fprintf(out, "    Headless:      %t\n", cfg.Render.Headless)
		fmt.Fprintf(out, "    Chrome:        %s\n", orDefault(cfg.Render.ExecPath, "(auto-detect)"))
		fmt.Fprintf(out, "    Wait timeout:  %s\n", cfg.Render.Timeout())
		fmt.Fprintf(out, "    Cool-down:     %s\n", cfg.Render.Cooldown())
		fmt.Fprintf(out, "    Sectors:       %d\n", len(cfg.Sectors))
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  Chart API:")
		fmt.Fprintf(out, "    Base URL:      %s\n", cfg.Chart.BaseURL)
		fmt.Fprintf(out, "    Defaults:      range=%s interval=%s\n", cfg.Chart.Period, cfg.Chart.Interval)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  Calendar:")
		fmt.Fprintf(out, "    Endpoint:      %s\n", cfg.Calendar.Endpoint)
		fmt.Fprintf(out, "    Countries:     %v\n", cfg.Calendar.Countries)
		fmt.Fprintf(out, "    Max pages:     %d\n", cfg.Calendar.MaxPages)
		fmt.Fprintf(out, "    Default from:  %s\n", cfg.Calendar.DefaultFrom)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  News:")
		fmt.Fprintf(out, "    Base URL:      %s\n", cfg.News.BaseURL)
		fmt.Fprintf(out, "    Sort/limit:    %s/%d\n", cfg.News.Sort, cfg.News.Limit)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Fprintf(out, "    %-25s %s\n", k.Name+":", status)
		}
		fmt.Fprintln(out)

		fmt.Fprintf(out, "  API Server:      %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Fprintln(out, "═══════════════════════════════════════")
		return nil
	},
}

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config/config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := api.NewServer(cfg, api.Deps{
			Sectors:  newSectors(),
			Series:   newChart(),
			Calendar: newCrawler(),
			News:     newNews(),
		}, logger)
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		return srv.ListenAndServe(cmd.Context(), addr)
	},
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
