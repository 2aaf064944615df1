package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultURL is the upstream shop status endpoint.
const DefaultURL = "https://gagstock.gleeze.com/grow-a-garden"

// Config represents the overall application configuration.
type Config struct {
	Scraper    ScraperConfig    `yaml:"scraper"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// ScraperConfig holds the polling configuration.
type ScraperConfig struct {
	URL             string            `yaml:"url"`
	IntervalSeconds int               `yaml:"interval_seconds"`
	Interval        time.Duration     `yaml:"-"` // Ignored by YAML parser
	TimeoutSeconds  int               `yaml:"timeout_seconds"`
	Timeout         time.Duration     `yaml:"-"`
	HTTPProxy       string            `yaml:"http_proxy"`
	Headers         map[string]string `yaml:"headers"`
}

// TrackerConfig controls countdown parsing and bookkeeping.
type TrackerConfig struct {
	// ParseMode is "lenient" or "strict".
	ParseMode          string `yaml:"parse_mode"`
	AllowNegativeDrift bool   `yaml:"allow_negative_drift"`
}

// ServerConfig holds the status API configuration.
type ServerConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Port            int      `yaml:"port"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the status mirror connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // sqlite or postgres
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// LogConfig holds the logger configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration from the given path. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("config file not found; using defaults")
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Scraper.URL == "" {
		cfg.Scraper.URL = DefaultURL
	}
	if cfg.Scraper.IntervalSeconds <= 0 {
		cfg.Scraper.IntervalSeconds = 2
	}
	cfg.Scraper.Interval = time.Duration(cfg.Scraper.IntervalSeconds) * time.Second

	// A fetch must not outlive its own poll slot.
	if cfg.Scraper.TimeoutSeconds <= 0 {
		cfg.Scraper.Timeout = cfg.Scraper.Interval
	} else {
		cfg.Scraper.Timeout = time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second
	}

	if cfg.Tracker.ParseMode == "" {
		cfg.Tracker.ParseMode = "lenient"
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = cfg.Scraper.IntervalSeconds
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "file:gardenshop?mode=memory&cache=shared"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 4
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 2
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 16
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
