package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LoggingConfig           `yaml:"log"`
	Storage  StorageConfig           `yaml:"storage"`
	Metrics  MetricsConfig           `yaml:"metrics"`
	Refresh  RefreshConfig           `yaml:"refresh"`
	Telegram TelegramConfig          `yaml:"telegram"`
	Markets  map[string]MarketConfig `yaml:"markets"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`

	// Operator settings expose a small command interface over the same
	// bot: /status, /pause, /resume, /refresh, /price.
	OperatorEnabled        bool          `yaml:"operator_enabled"`
	OperatorPollInterval   time.Duration `yaml:"operator_poll_interval"`
	OperatorAllowedUserIDs []int64       `yaml:"operator_allowed_user_ids"`
}

// MarketConfig is one venue block. Credential fields may reference
// environment variables with ${VAR} syntax; they are expanded at load time.
type MarketConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Key         string        `yaml:"key"`
	Secret      string        `yaml:"secret"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	DefaultFrom string        `yaml:"default_from"`
	DefaultTo   string        `yaml:"default_to"`
	RateMax     int           `yaml:"rate_max"`
	RateWindow  time.Duration `yaml:"rate_window"`
	Timeout     time.Duration `yaml:"timeout"`
	Attempts    int           `yaml:"attempts"`
	PriceMaxAge time.Duration `yaml:"price_max_age"`
	Stream      StreamConfig  `yaml:"stream"`
}

type StreamConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	expandCredentials(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/btc-order-gw.db"
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9185"
	}
	if cfg.Refresh.Interval == 0 {
		cfg.Refresh.Interval = time.Minute
	}
	if cfg.Telegram.OperatorPollInterval == 0 {
		cfg.Telegram.OperatorPollInterval = 3 * time.Second
	}
	for name, m := range cfg.Markets {
		if m.DefaultFrom == "" {
			m.DefaultFrom = "BTC"
		}
		if m.DefaultTo == "" {
			m.DefaultTo = "USD"
		}
		if m.Timeout == 0 {
			m.Timeout = 15 * time.Second
		}
		if m.Attempts == 0 {
			m.Attempts = 5
		}
		if m.PriceMaxAge == 0 {
			m.PriceMaxAge = 60 * time.Second
		}
		if m.Stream.ReconnectDelay == 0 {
			m.Stream.ReconnectDelay = 3 * time.Second
		}
		cfg.Markets[name] = m
	}
}

func expandCredentials(cfg *Config) {
	cfg.Telegram.Token = os.ExpandEnv(cfg.Telegram.Token)
	for name, m := range cfg.Markets {
		m.Key = os.ExpandEnv(m.Key)
		m.Secret = os.ExpandEnv(m.Secret)
		m.User = os.ExpandEnv(m.User)
		m.Password = os.ExpandEnv(m.Password)
		cfg.Markets[name] = m
	}
}

func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required")
		}
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if len(cfg.Markets) == 0 {
		return errors.New("at least one market is required")
	}
	for name, m := range cfg.Markets {
		if m.RateMax < 0 {
			return fmt.Errorf("market %s: rate_max must be >= 0", name)
		}
		if m.Stream.Enabled && m.Stream.URL == "" {
			return fmt.Errorf("market %s: stream.url is required when the stream is enabled", name)
		}
	}
	return nil
}
