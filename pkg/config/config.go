package config

import "time"

// Config holds all configuration
type Config struct {
	Store     StoreConfig
	HTTP      HTTPConfig
	Signature SignatureConfig
	Dedup     DedupConfig
	Export    ExportConfig
	API       APIConfig
	Browser   BrowserConfig
}

type StoreConfig struct {
	Path string
}

type HTTPConfig struct {
	Timeout         time.Duration
	MaxRetries      int
	BaseDelay       time.Duration
	RateLimit       float64
	MaxResponseSize int64
	UserAgent       string
	Referer         string
	LogFile         string
}

type SignatureConfig struct {
	LandingURL string
}

type DedupConfig struct {
	BloomFilterSize          uint
	BloomFilterFalsePositive float64
}

type ExportConfig struct {
	OutputDir   string
	DefaultCity string
	PackSize    int
	Cities      Cities
}

type APIConfig struct {
	Listen string
}

type BrowserConfig struct {
	Enabled    bool
	StartURL   string
	Headless   bool
	ControlURL string
}

// Defaults used by New
const (
	DefaultPackSize        = 1000
	DefaultBloomSize       = 100_000
	DefaultBloomFP         = 0.0001
	DefaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultReferer         = "https://2gis.ru/"
	DefaultMaxResponseSize = 32 << 20
)

// New creates config with defaults for everything that is not a flag
func New(dbPath, outputDir string, timeout, maxRetries, retryDelayMs int, rateLimit float64) *Config {
	return &Config{
		Store: StoreConfig{Path: dbPath},
		HTTP: HTTPConfig{
			Timeout:         time.Duration(timeout) * time.Second,
			MaxRetries:      maxRetries,
			BaseDelay:       time.Duration(retryDelayMs) * time.Millisecond,
			RateLimit:       rateLimit,
			MaxResponseSize: DefaultMaxResponseSize,
			UserAgent:       DefaultUserAgent,
			Referer:         DefaultReferer,
		},
		Signature: SignatureConfig{LandingURL: "https://2gis.ru/"},
		Dedup: DedupConfig{
			BloomFilterSize:          DefaultBloomSize,
			BloomFilterFalsePositive: DefaultBloomFP,
		},
		Export: ExportConfig{
			OutputDir:   outputDir,
			DefaultCity: DefaultCity,
			PackSize:    DefaultPackSize,
			Cities:      BuiltinCities(),
		},
		API:     APIConfig{Listen: "127.0.0.1:8765"},
		Browser: BrowserConfig{StartURL: "https://2gis.ru/"},
	}
}
