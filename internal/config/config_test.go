package config

import (
	"os"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Kite: KiteConfig{
			APIURL:      "https://api.kite.trade",
			APIKey:      "key",
			AccessToken: "token",
			Timeout:     10 * time.Second,
		},
		Scan: ScanConfig{
			Index:          "NIFTY",
			SpotInstrument: "NSE:NIFTY 50",
			StrikeRange:    800,
			MaxContracts:   80,
			PollInterval:   3 * time.Second,
			CatalogRefresh: 10 * time.Minute,
		},
		Market: MarketConfig{
			Timezone: "Asia/Kolkata",
			Open:     "09:00",
			Close:    "15:30",
			Enforce:  true,
		},
		Storage: StorageConfig{
			DBPath:  "./data/test.db",
			MaxRows: 100000,
		},
		Server: ServerConfig{
			Enabled:    true,
			ListenAddr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestLoadAndValidate(t *testing.T) {
	content := `
kite:
  api_key: "testkey"
  access_token: "testtoken"
  timeout: 10s

scan:
  index: NIFTY
  strike_range: 600
  max_contracts: 60
  poll_interval: 5s

market:
  open: "09:00"
  close: "15:30"

storage:
  db_path: "./data/test.db"
  max_rows: 100000

logging:
  level: "debug"
  format: "text"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Kite.APIKey != "testkey" {
		t.Errorf("unexpected api key: %q", cfg.Kite.APIKey)
	}
	if cfg.Scan.PollInterval != 5*time.Second {
		t.Errorf("unexpected poll interval: %v", cfg.Scan.PollInterval)
	}
	if cfg.Scan.StrikeRange != 600 {
		t.Errorf("unexpected strike range: %v", cfg.Scan.StrikeRange)
	}

	// defaults fill the gaps
	if cfg.Kite.APIURL != "https://api.kite.trade" {
		t.Errorf("unexpected default api url: %q", cfg.Kite.APIURL)
	}
	if cfg.Market.Timezone != "Asia/Kolkata" {
		t.Errorf("unexpected default timezone: %q", cfg.Market.Timezone)
	}
	if cfg.Scan.CatalogRefresh != 10*time.Minute {
		t.Errorf("unexpected default catalog refresh: %v", cfg.Scan.CatalogRefresh)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestCredentialsFromEnvironment(t *testing.T) {
	t.Setenv("KITE_API_KEY", "envkey")
	t.Setenv("KITE_ACCESS_TOKEN", "envtoken")

	content := "scan:\n  index: NIFTY\n"
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	tmpfile.Close()

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Kite.APIKey != "envkey" || cfg.Kite.AccessToken != "envtoken" {
		t.Errorf("credentials not taken from environment: %+v", cfg.Kite)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing api key", func(c *Config) { c.Kite.APIKey = "" }},
		{"no token source", func(c *Config) { c.Kite.AccessToken = ""; c.Kite.RedisURL = "" }},
		{"redis url without key", func(c *Config) {
			c.Kite.AccessToken = ""
			c.Kite.RedisURL = "redis://localhost:6379"
			c.Kite.RedisTokenKey = ""
		}},
		{"zero strike range", func(c *Config) { c.Scan.StrikeRange = 0 }},
		{"too many contracts", func(c *Config) { c.Scan.MaxContracts = 5000 }},
		{"sub-second poll interval", func(c *Config) { c.Scan.PollInterval = 100 * time.Millisecond }},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true }},
		{"tiny storage cap", func(c *Config) { c.Storage.MaxRows = 10 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidConfigPasses(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestRedisTokenSourceSatisfiesValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Kite.AccessToken = ""
	cfg.Kite.RedisURL = "redis://localhost:6379"
	cfg.Kite.RedisTokenKey = "access_token"
	if err := cfg.Validate(); err != nil {
		t.Errorf("redis token source rejected: %v", err)
	}
}
