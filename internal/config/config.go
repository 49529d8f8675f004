// Package config handles configuration loading for marketdata.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/swamplocks/marketdata/pkg/models"
	"github.com/swamplocks/marketdata/pkg/utils"
)

// Config represents the complete application configuration.
type Config struct {
	Render   RenderConfig    `mapstructure:"render"   yaml:"render"`
	Sectors  []models.Sector `mapstructure:"sectors"  yaml:"sectors"`
	Chart    ChartConfig     `mapstructure:"chart"    yaml:"chart"`
	Calendar CalendarConfig  `mapstructure:"calendar" yaml:"calendar"`
	News     NewsConfig      `mapstructure:"news"     yaml:"news"`
	API      APIConfig       `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig   `mapstructure:"logging"  yaml:"logging"`

	// File is the config file that was read, empty when running on defaults.
	File string `mapstructure:"-" yaml:"-"`
}

// RenderConfig holds headless browser settings for sector page scraping.
type RenderConfig struct {
	Headless          bool   `mapstructure:"headless"           yaml:"headless"`
	NoSandbox         bool   `mapstructure:"no_sandbox"         yaml:"no_sandbox"`
	DisableGPU        bool   `mapstructure:"disable_gpu"        yaml:"disable_gpu"`
	ExecPath          string `mapstructure:"exec_path"          yaml:"exec_path"` // empty = let chromedp find Chrome
	UserAgent         string `mapstructure:"user_agent"         yaml:"user_agent"`
	TimeoutSec        int    `mapstructure:"timeout_sec"        yaml:"timeout_sec"`
	CooldownSec       int    `mapstructure:"cooldown_sec"       yaml:"cooldown_sec"`
	ContainerSelector string `mapstructure:"container_selector" yaml:"container_selector"`
}

// Timeout returns the container wait bound.
func (r RenderConfig) Timeout() time.Duration { return time.Duration(r.TimeoutSec) * time.Second }

// Cooldown returns the pause after each session teardown.
func (r RenderConfig) Cooldown() time.Duration { return time.Duration(r.CooldownSec) * time.Second }

// ChartConfig holds Yahoo chart endpoint settings.
type ChartConfig struct {
	BaseURL        string  `mapstructure:"base_url"         yaml:"base_url"`
	UserAgent      string  `mapstructure:"user_agent"       yaml:"user_agent"`
	Period         string  `mapstructure:"period"           yaml:"period"`   // e.g. "1y"
	Interval       string  `mapstructure:"interval"         yaml:"interval"` // e.g. "1d"
	TimeoutSec     int     `mapstructure:"timeout_sec"      yaml:"timeout_sec"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
}

// CalendarConfig holds economic calendar crawler settings.
type CalendarConfig struct {
	Endpoint       string   `mapstructure:"endpoint"         yaml:"endpoint"`
	Countries      []int    `mapstructure:"countries"        yaml:"countries"`
	TimeZones      []int    `mapstructure:"time_zones"       yaml:"time_zones"`
	TimeFilter     string   `mapstructure:"time_filter"      yaml:"time_filter"`
	UserAgents     []string `mapstructure:"user_agents"      yaml:"user_agents"`
	MaxPages       int      `mapstructure:"max_pages"        yaml:"max_pages"`
	MaxDurationSec int      `mapstructure:"max_duration_sec" yaml:"max_duration_sec"` // 0 = unlimited
	TimeoutSec     int      `mapstructure:"timeout_sec"      yaml:"timeout_sec"`
	RequestsPerSec float64  `mapstructure:"requests_per_sec" yaml:"requests_per_sec"` // 0 = unpaced
	DefaultFrom    string   `mapstructure:"default_from"     yaml:"default_from"`     // dd/mm/yyyy
}

// NewsConfig holds Alpha Vantage news sentiment settings.
type NewsConfig struct {
	BaseURL        string  `mapstructure:"base_url"         yaml:"base_url"`
	APIKey         string  `mapstructure:"api_key"          yaml:"api_key"`
	Sort           string  `mapstructure:"sort"             yaml:"sort"` // EARLIEST, LATEST or RELEVANCE
	Limit          int     `mapstructure:"limit"            yaml:"limit"`
	TimeoutSec     int     `mapstructure:"timeout_sec"      yaml:"timeout_sec"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
	DefaultFrom    string  `mapstructure:"default_from"     yaml:"default_from"` // dd/mm/yyyy
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"          yaml:"host"`
	Port        int      `mapstructure:"port"          yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"  yaml:"cors_origins"`
	CacheTTLSec int      `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// DefaultSectorNames lists the Yahoo Finance sectors in display order.
var DefaultSectorNames = []string{
	"Technology", "Financial Services", "Consumer Cyclical", "Healthcare",
	"Communication Services", "Industrials", "Consumer Defensive", "Energy",
	"Basic Materials", "Real Estate", "Utilities",
}

var defaultSectorTickers = map[string]string{
	"Technology":             "^YH311",
	"Financial Services":     "^YH103",
	"Consumer Cyclical":      "^YH102",
	"Healthcare":             "^YH206",
	"Communication Services": "^YH308",
	"Industrials":            "^YH310",
	"Consumer Defensive":     "^YH205",
	"Energy":                 "^YH309",
	"Basic Materials":        "^YH101",
	"Real Estate":            "^YH104",
	"Utilities":              "^YH207",
}

// DefaultUserAgents is the client identity pool for the calendar crawler.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/62.0.3202.62 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.12; rv:58.0) Gecko/20100101 Firefox/58.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/70.0.3538.77 Safari/537.36",
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.marketdata/config.yaml (home directory)
//  3. /etc/marketdata/config.yaml (system)
//
// A .env file in the working directory is loaded first, if present.
// Environment variables override config file values.
// Format: MARKETDATA_<SECTION>_<KEY>, e.g., MARKETDATA_CALENDAR_MAX_PAGES
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".marketdata"))
	v.AddConfigPath("/etc/marketdata")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return unmarshal(v)
}

// Default returns the built-in configuration without consulting files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// WriteDefault renders the built-in configuration as YAML to path.
// Existing files are not overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MARKETDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Render defaults
	v.SetDefault("render.headless", true)
	v.SetDefault("render.no_sandbox", true)
	v.SetDefault("render.disable_gpu", true)
	v.SetDefault("render.exec_path", "")
	v.SetDefault("render.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	v.SetDefault("render.timeout_sec", 15)
	v.SetDefault("render.cooldown_sec", 2)
	v.SetDefault("render.container_selector", `table[data-testid="table-container"]`)

	// Sector table
	sectors := make([]map[string]any, 0, len(DefaultSectorNames))
	for _, name := range DefaultSectorNames {
		sectors = append(sectors, map[string]any{
			"name":   name,
			"url":    "https://finance.yahoo.com/sectors/" + utils.SectorSlug(name) + "/",
			"ticker": defaultSectorTickers[name],
		})
	}
	v.SetDefault("sectors", sectors)

	// Chart defaults
	v.SetDefault("chart.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("chart.user_agent", "Mozilla/5.0")
	v.SetDefault("chart.period", "1y")
	v.SetDefault("chart.interval", "1d")
	v.SetDefault("chart.timeout_sec", 30)
	v.SetDefault("chart.requests_per_sec", 5.0)

	// Calendar defaults
	v.SetDefault("calendar.endpoint", "https://www.investing.com/economic-calendar/Service/getCalendarFilteredData")
	v.SetDefault("calendar.countries", []int{5})          // united states
	v.SetDefault("calendar.time_zones", []int{42, 8, 43}) // GMT -5:00
	v.SetDefault("calendar.time_filter", "timeOnly")
	v.SetDefault("calendar.user_agents", DefaultUserAgents)
	v.SetDefault("calendar.max_pages", 500)
	v.SetDefault("calendar.max_duration_sec", 0)
	v.SetDefault("calendar.timeout_sec", 30)
	v.SetDefault("calendar.requests_per_sec", 0.0)
	v.SetDefault("calendar.default_from", "01/01/2017")

	// News defaults
	v.SetDefault("news.base_url", "https://www.alphavantage.co")
	v.SetDefault("news.api_key", "")
	v.SetDefault("news.sort", "EARLIEST")
	v.SetDefault("news.limit", 1000)
	v.SetDefault("news.timeout_sec", 30)
	v.SetDefault("news.requests_per_sec", 0.08) // free tier: 5 requests/minute
	v.SetDefault("news.default_from", "01/01/2017")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.cache_ttl_sec", 300) // 5 minutes

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv reads conventional, non-prefixed variables.
func overrideFromEnv(cfg *Config) {
	if cfg.Render.ExecPath == "" {
		if path := os.Getenv("CHROME_BIN"); path != "" {
			cfg.Render.ExecPath = path
		}
	}
	if cfg.News.APIKey == "" {
		cfg.News.APIKey = os.Getenv(AlphaVantageKeyEnv)
	}
}

// loadDotEnv loads ./.env into the process environment when it exists.
// Variables already set take precedence.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env: %w", err)
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
