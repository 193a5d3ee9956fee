package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces environment variables (BLURGUARD_ANALYZER_THRESHOLD, ...).
// Every field also answers to its short tag name (THRESHOLD, PORT, ...).
const EnvPrefix = "BLURGUARD"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LogConfig       `yaml:"logging"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Browser   BrowserConfig   `yaml:"browser"`
	Exclusion ExclusionConfig `yaml:"exclusion"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string        `envconfig:"PORT" yaml:"port"`
	Host        string        `envconfig:"HOST" yaml:"host"`
	ScanTimeout time.Duration `envconfig:"SCAN_TIMEOUT" yaml:"scan_timeout"`
	CORSOrigins []string      `envconfig:"CORS_ORIGINS" yaml:"cors_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// AnalyzerConfig holds classifier tunables.
type AnalyzerConfig struct {
	Threshold     float64       `envconfig:"THRESHOLD" yaml:"threshold"`
	CacheSize     int           `envconfig:"CACHE_SIZE" yaml:"cache_size"`
	MinDimension  int           `envconfig:"MIN_DIMENSION" yaml:"min_dimension"`
	MaxCanvasSide int           `envconfig:"MAX_CANVAS_SIDE" yaml:"max_canvas_side"`
	CORSTimeout   time.Duration `envconfig:"CORS_TIMEOUT" yaml:"cors_timeout"`
}

// FetchConfig holds outbound HTTP settings.
type FetchConfig struct {
	Timeout   time.Duration `envconfig:"FETCH_TIMEOUT" yaml:"timeout"`
	RetryMax  int           `envconfig:"FETCH_RETRY_MAX" yaml:"retry_max"`
	RateLimit float64       `envconfig:"FETCH_RPS" yaml:"rate_limit"`
	UserAgent string        `envconfig:"USER_AGENT" yaml:"user_agent"`
}

// BrowserConfig holds page host settings.
type BrowserConfig struct {
	EnableScripts   bool          `envconfig:"ENABLE_SCRIPTS" yaml:"enable_scripts"`
	ScriptTimeout   time.Duration `envconfig:"SCRIPT_TIMEOUT" yaml:"script_timeout"`
	LoadConcurrency int           `envconfig:"LOAD_CONCURRENCY" yaml:"load_concurrency"`
}

// ExclusionConfig holds the excluded-site list.
type ExclusionConfig struct {
	Sites            []string `envconfig:"EXCLUDED_SITES" yaml:"sites"`
	ExcludeLocalhost bool     `envconfig:"EXCLUDE_LOCALHOST" yaml:"exclude_localhost"`
}

// RateLimitConfig holds per-client API rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
	RequestsPerSecond float64 `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second"`
	Burst             int     `envconfig:"RATE_LIMIT_BURST" yaml:"burst"`
}

// Load builds configuration from defaults overridden by environment variables.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile builds configuration from defaults, then the YAML file at path (if
// any), then environment variables. Environment always wins.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values the analyzer cannot run with.
func (c *Config) Validate() error {
	if c.Analyzer.Threshold < 0 || c.Analyzer.Threshold > 1 {
		return fmt.Errorf("analyzer threshold %v outside [0,1]", c.Analyzer.Threshold)
	}
	if c.Analyzer.CacheSize <= 0 {
		return fmt.Errorf("analyzer cache size must be positive, got %d", c.Analyzer.CacheSize)
	}
	if c.Analyzer.MaxCanvasSide <= 0 {
		return fmt.Errorf("analyzer canvas side must be positive, got %d", c.Analyzer.MaxCanvasSide)
	}
	if c.Analyzer.CORSTimeout <= 0 {
		return fmt.Errorf("analyzer CORS timeout must be positive, got %s", c.Analyzer.CORSTimeout)
	}
	if c.Server.ScanTimeout <= 0 {
		return fmt.Errorf("scan timeout must be positive, got %s", c.Server.ScanTimeout)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit needs positive rps and burst, got %v/%d",
			c.RateLimit.RequestsPerSecond, c.RateLimit.Burst)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Host:        "0.0.0.0",
			ScanTimeout: 60 * time.Second,
			CORSOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Analyzer: AnalyzerConfig{
			Threshold:     0.7,
			CacheSize:     1000,
			MinDimension:  50,
			MaxCanvasSide: 224,
			CORSTimeout:   3 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:   15 * time.Second,
			RetryMax:  2,
			RateLimit: 0,
			UserAgent: "Mozilla/5.0 (BlurGuard/1.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Browser: BrowserConfig{
			EnableScripts:   true,
			ScriptTimeout:   2 * time.Second,
			LoadConcurrency: 4,
		},
		Exclusion: ExclusionConfig{
			Sites:            []string{"chrome://", "meet.google.com", "localhost"},
			ExcludeLocalhost: false,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 2,
			Burst:             5,
		},
	}
}
