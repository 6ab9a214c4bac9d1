package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`

	Bidding   BiddingConfig   `koanf:"bidding"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string        `koanf:"url"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Enabled  bool          `koanf:"enabled"`
	TTL      time.Duration `koanf:"ttl"`
}

// BiddingConfig carries the auction engine's business parameters.
type BiddingConfig struct {
	// MinIncrementBps is the minimum raise in basis points (10200 = +2%).
	MinIncrementBps int64 `koanf:"min_increment_bps"`
	// DefaultDuration is how long an approved auction runs when the
	// listing carries no explicit end time.
	DefaultDuration time.Duration `koanf:"default_duration"`
	// TokenGracePeriod is how long the winner has to pay the token amount.
	TokenGracePeriod time.Duration `koanf:"token_grace_period"`
	// TokenReminderLead is how far before the deadline the reminder fires.
	TokenReminderLead time.Duration `koanf:"token_reminder_lead"`
	// SweepInterval is how often time-driven transitions are attempted.
	SweepInterval time.Duration `koanf:"sweep_interval"`
	// BidRatePerSecond / BidRateBurst throttle submissions per buyer.
	BidRatePerSecond float64 `koanf:"bid_rate_per_second"`
	BidRateBurst     int     `koanf:"bid_rate_burst"`
	// NotificationQueueSize bounds the async dispatch queue.
	NotificationQueueSize int `koanf:"notification_queue_size"`
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:  0,
			TTL: 30 * time.Second,
		},
		Bidding: BiddingConfig{
			MinIncrementBps:       10200,
			DefaultDuration:       7 * 24 * time.Hour,
			TokenGracePeriod:      48 * time.Hour,
			TokenReminderLead:     24 * time.Hour,
			SweepInterval:         30 * time.Second,
			BidRatePerSecond:      5,
			BidRateBurst:          10,
			NotificationQueueSize: 256,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = "configs/config.yaml"
	}
	// config file is optional
	_ = k.Load(file.Provider(path), yaml.Parser())

	if err := k.Load(env.Provider("MEX_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "MEX_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
