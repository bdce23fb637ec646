package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/WangYihang/Catalog-Crawler/pkg/config"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/WangYihang/Catalog-Crawler/pkg/export"
	"github.com/jessevdk/go-flags"
)

// ErrHelp is returned by ParseArgs when the help text was printed
var ErrHelp = errors.New("help requested")

// Config holds all application configuration
type Config struct {
	// Server
	Listen    string `long:"listen" description:"Address of the HTTP API" default:"127.0.0.1:8765"`
	DBPath    string `long:"db" description:"SQLite database holding the collected state" default:"catalog.db"`
	OutputDir string `long:"output-dir" description:"Directory for exported files" default:"exports"`

	// Browser
	Watch      bool   `long:"watch" description:"Open a browser and collect from the catalog requests it makes"`
	StartURL   string `long:"start-url" description:"Page opened by --watch" default:"https://2gis.ru/"`
	Headless   bool   `long:"headless" description:"Run the launched browser headless"`
	BrowserURL string `long:"browser-url" description:"DevTools WebSocket URL of a running browser instead of launching one"`
	Paused     bool   `long:"paused" description:"Start with collection disabled"`

	// HTTP
	HTTPTimeout     int     `long:"http-timeout" description:"HTTP request timeout in seconds" default:"15"`
	MaxRetries      int     `long:"max-retries" description:"Retries after the first failed attempt" default:"3"`
	RetryDelay      int     `long:"retry-delay" description:"Base delay between attempts in milliseconds" default:"1000"`
	RateLimit       float64 `long:"rate-limit" description:"Maximum requests per second, 0 for unlimited" default:"0"`
	MaxResponseSize int64   `long:"max-response-size" description:"Maximum HTTP response size in bytes" default:"33554432"`
	UserAgent       string  `long:"user-agent" description:"HTTP User-Agent header"`
	HTTPLogFile     string  `long:"http-log" description:"JSONL log of every HTTP attempt (empty disables it)"`

	// Dedup
	BloomFilterSize uint64  `long:"bloom-size" description:"Expected number of captured URLs" default:"100000"`
	BloomFilterFP   float64 `long:"bloom-fp" description:"Bloom filter false positive rate" default:"0.0001"`

	// Export
	CitiesFile string `long:"cities" description:"YAML file with extra city centres"`
	City       string `long:"city" description:"City used for distance and zone columns" default:"moscow"`
	Export     bool   `long:"export" description:"Export the stored items and exit"`
	Format     string `long:"format" description:"Export format" choice:"xlsx" choice:"csv" choice:"json" default:"xlsx"`
	PackSize   int    `long:"pack-size" description:"Items per exported file" default:"1000"`
	Category   string `long:"category" description:"Category written into export file names" default:"export"`

	// Filters
	MinRating         float64 `long:"min-rating" description:"Keep items rated at least this"`
	OnlyWithPhone     bool    `long:"only-with-phone" description:"Keep items with a phone"`
	OnlyMobilePhones  bool    `long:"only-mobile" description:"Keep items with a mobile phone"`
	OnlyWithEmail     bool    `long:"only-with-email" description:"Keep items with an email"`
	OnlyWithSite      bool    `long:"only-with-site" description:"Keep items with a website"`
	OnlyWithTelegram  bool    `long:"only-with-telegram" description:"Keep items with a Telegram link"`
	OnlyWithAnySocial bool    `long:"only-with-social" description:"Keep items with any social link"`
	NoSiteWithSocial  bool    `long:"no-site-with-social" description:"Keep items with social links but no website"`

	// UI
	ShowDashboard bool   `long:"dashboard" description:"Show interactive TUI dashboard"`
	LogFile       string `long:"log-file" description:"Write logs to this file instead of stderr"`
	LogLevel      string `long:"log-level" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
	Version       bool   `short:"v" long:"version" description:"Print version information and exit"`
}

// ParseFlags parses command line flags
func ParseFlags() (*Config, error) {
	cfg, err := ParseArgs(os.Args[1:])
	if errors.Is(err, ErrHelp) {
		// Help has been printed by the library, exit cleanly
		os.Exit(0)
	}
	return cfg, err
}

// ParseArgs parses args and validates the result
func ParseArgs(args []string) (*Config, error) {
	cfg := &Config{}

	parser := flags.NewParser(cfg, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			return nil, ErrHelp
		}
		return nil, err
	}

	if cfg.Version {
		return cfg, nil
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be > 0, got %d", c.HTTPTimeout)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries)
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be >= 0, got %d", c.RetryDelay)
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must be >= 0, got %f", c.RateLimit)
	}

	if c.MaxResponseSize <= 0 {
		return fmt.Errorf("max response size must be > 0, got %d", c.MaxResponseSize)
	}

	if c.PackSize <= 0 {
		return fmt.Errorf("pack size must be > 0, got %d", c.PackSize)
	}

	if _, err := export.ParseFormat(c.Format); err != nil {
		return err
	}

	if c.BloomFilterSize == 0 {
		return fmt.Errorf("bloom filter size must be > 0")
	}

	if c.BloomFilterFP <= 0 || c.BloomFilterFP >= 1 {
		return fmt.Errorf("bloom filter false positive rate must be between 0 and 1, got %f", c.BloomFilterFP)
	}

	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}

	return nil
}

// Filter returns the export filter selected by the filter flags
func (c *Config) Filter() entity.Filter {
	return entity.Filter{
		MinRating:         c.MinRating,
		OnlyWithPhone:     c.OnlyWithPhone,
		OnlyMobilePhones:  c.OnlyMobilePhones,
		OnlyWithEmail:     c.OnlyWithEmail,
		OnlyWithSite:      c.OnlyWithSite,
		OnlyWithTelegram:  c.OnlyWithTelegram,
		OnlyWithAnySocial: c.OnlyWithAnySocial,
		NoSiteWithSocial:  c.NoSiteWithSocial,
	}
}

// SlogLevel maps --log-level to a slog level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AppConfig converts the flags into the component configuration, loading
// the cities file when one is given
func (c *Config) AppConfig() (*config.Config, error) {
	cities, err := config.LoadCities(c.CitiesFile)
	if err != nil {
		return nil, err
	}
	if _, ok := cities.Lookup(c.City); !ok {
		return nil, fmt.Errorf("unknown city %q, known: %s", c.City, strings.Join(cities.IDs(), ", "))
	}

	cfg := config.New(c.DBPath, c.OutputDir, c.HTTPTimeout, c.MaxRetries, c.RetryDelay, c.RateLimit)
	cfg.HTTP.MaxResponseSize = c.MaxResponseSize
	if c.UserAgent != "" {
		cfg.HTTP.UserAgent = c.UserAgent
	}
	cfg.HTTP.LogFile = c.HTTPLogFile
	cfg.Dedup.BloomFilterSize = uint(c.BloomFilterSize)
	cfg.Dedup.BloomFilterFalsePositive = c.BloomFilterFP
	cfg.Export.DefaultCity = c.City
	cfg.Export.PackSize = c.PackSize
	cfg.Export.Cities = cities
	cfg.API.Listen = c.Listen
	cfg.Browser = config.BrowserConfig{
		Enabled:    c.Watch,
		StartURL:   c.StartURL,
		Headless:   c.Headless,
		ControlURL: c.BrowserURL,
	}
	return cfg, nil
}
