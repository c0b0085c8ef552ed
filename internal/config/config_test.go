package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMarketDefaults(t *testing.T) {
	cfg := &Config{Markets: map[string]MarketConfig{"mtgox": {}}}
	applyDefaults(cfg)
	m := cfg.Markets["mtgox"]
	if m.DefaultFrom != "BTC" || m.DefaultTo != "USD" {
		t.Fatalf("expected BTC/USD default pair, got %s/%s", m.DefaultFrom, m.DefaultTo)
	}
	if m.Timeout != 15*time.Second {
		t.Fatalf("expected 15s timeout default, got %v", m.Timeout)
	}
	if m.Attempts != 5 {
		t.Fatalf("expected 5 attempts default, got %d", m.Attempts)
	}
	if m.PriceMaxAge != 60*time.Second {
		t.Fatalf("expected 60s price max age default, got %v", m.PriceMaxAge)
	}
	if cfg.Refresh.Interval != time.Minute {
		t.Fatalf("expected 1m refresh default, got %v", cfg.Refresh.Interval)
	}
}

func TestValidateStorageBackend(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{Backend: "postgres"},
		Markets: map[string]MarketConfig{"mtgox": {}},
	}
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}
	cfg.Storage.PostgresDSN = "postgres://localhost/trader"
	if err := validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Storage.Backend = "bogus"
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestValidateRequiresMarkets(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Backend: "sqlite", SQLitePath: "x.db"}}
	if err := validate(cfg); err == nil {
		t.Fatal("expected error with no markets")
	}
}

func TestLoadExpandsCredentials(t *testing.T) {
	t.Setenv("TEST_GOX_KEY", "key-from-env")
	t.Setenv("TEST_GOX_SECRET", "secret-from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
storage:
  backend: sqlite
  sqlite_path: trader.db
markets:
  mtgox:
    base_url: https://data.mtgox.com/api/2
    key: ${TEST_GOX_KEY}
    secret: ${TEST_GOX_SECRET}
    rate_max: 10
    rate_window: 10s
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	m := cfg.Markets["mtgox"]
	if m.Key != "key-from-env" || m.Secret != "secret-from-env" {
		t.Fatalf("credentials not expanded: %+v", m)
	}
	if m.RateMax != 10 || m.RateWindow != 10*time.Second {
		t.Fatalf("rate limit not parsed: %+v", m)
	}
}

func TestValidateStreamNeedsURL(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{Backend: "sqlite", SQLitePath: "x.db"},
		Markets: map[string]MarketConfig{"mtgox": {Stream: StreamConfig{Enabled: true}}},
	}
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for enabled stream without url")
	}
}
