// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Kite     KiteConfig     `mapstructure:"kite"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Market   MarketConfig   `mapstructure:"market"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// KiteConfig holds broker API configuration. The API key and access token
// are credentials and normally come from the environment, not the file.
type KiteConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	APIKey         string        `mapstructure:"api_key"`
	AccessToken    string        `mapstructure:"access_token"`
	RedisURL       string        `mapstructure:"redis_url"`
	RedisTokenKey  string        `mapstructure:"redis_token_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ScanConfig holds chain selection and polling cadence configuration
type ScanConfig struct {
	Index          string        `mapstructure:"index"`
	SpotInstrument string        `mapstructure:"spot_instrument"`
	StrikeRange    float64       `mapstructure:"strike_range"`
	MaxContracts   int           `mapstructure:"max_contracts"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	CatalogRefresh time.Duration `mapstructure:"catalog_refresh"`
}

// MarketConfig holds the trading-hours gate configuration
type MarketConfig struct {
	Timezone string `mapstructure:"timezone"`
	Open     string `mapstructure:"open"`
	Close    string `mapstructure:"close"`
	Enforce  bool   `mapstructure:"enforce"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRows int    `mapstructure:"max_rows"`
}

// ServerConfig holds the dashboard HTTP API configuration
type ServerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("OPTIONPULSE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Credentials come from the environment (godotenv loads .env in main)
	// unless the file set them explicitly.
	if cfg.Kite.APIKey == "" {
		cfg.Kite.APIKey = os.Getenv("KITE_API_KEY")
	}
	if cfg.Kite.AccessToken == "" {
		cfg.Kite.AccessToken = os.Getenv("KITE_ACCESS_TOKEN")
	}
	if cfg.Kite.RedisURL == "" {
		cfg.Kite.RedisURL = os.Getenv("REDIS_URL")
	}
	if cfg.Telegram.BotToken == "" {
		cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Kite defaults
	v.SetDefault("kite.api_url", "https://api.kite.trade")
	v.SetDefault("kite.redis_token_key", "access_token")
	v.SetDefault("kite.timeout", "10s")
	v.SetDefault("kite.max_retries", 3)
	v.SetDefault("kite.retry_delay_base", "1s")

	// Scan defaults mirror the NIFTY weekly chain
	v.SetDefault("scan.index", "NIFTY")
	v.SetDefault("scan.spot_instrument", "NSE:NIFTY 50")
	v.SetDefault("scan.strike_range", 800.0)
	v.SetDefault("scan.max_contracts", 80)
	v.SetDefault("scan.poll_interval", "3s")
	v.SetDefault("scan.catalog_refresh", "10m")

	// Market defaults: NSE session
	v.SetDefault("market.timezone", "Asia/Kolkata")
	v.SetDefault("market.open", "09:00")
	v.SetDefault("market.close", "15:30")
	v.SetDefault("market.enforce", true)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/optionpulse.db")
	v.SetDefault("storage.max_rows", 500000)

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_addr", ":8080")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
}

// Validate checks that all configuration values are valid. Missing
// credentials fail here, at startup, rather than surfacing as auth errors
// mid-session.
func (c *Config) Validate() error {
	// Validate Kite config
	if c.Kite.APIURL == "" {
		return fmt.Errorf("kite.api_url is required")
	}
	if c.Kite.APIKey == "" {
		return fmt.Errorf("kite.api_key is required (set KITE_API_KEY)")
	}
	if c.Kite.AccessToken == "" && c.Kite.RedisURL == "" {
		return fmt.Errorf("either kite.access_token (KITE_ACCESS_TOKEN) or kite.redis_url is required")
	}
	if c.Kite.RedisURL != "" && c.Kite.RedisTokenKey == "" {
		return fmt.Errorf("kite.redis_token_key is required when kite.redis_url is set")
	}
	if c.Kite.Timeout < time.Second {
		return fmt.Errorf("kite.timeout must be at least 1 second")
	}

	// Validate Scan config
	if c.Scan.Index == "" {
		return fmt.Errorf("scan.index is required")
	}
	if c.Scan.SpotInstrument == "" {
		return fmt.Errorf("scan.spot_instrument is required")
	}
	if c.Scan.StrikeRange <= 0 {
		return fmt.Errorf("scan.strike_range must be positive")
	}
	if c.Scan.MaxContracts < 1 || c.Scan.MaxContracts > 500 {
		return fmt.Errorf("scan.max_contracts must be between 1 and 500")
	}
	if c.Scan.PollInterval < time.Second {
		return fmt.Errorf("scan.poll_interval must be at least 1 second")
	}
	if c.Scan.CatalogRefresh < time.Minute {
		return fmt.Errorf("scan.catalog_refresh must be at least 1 minute")
	}

	// Validate Market config
	if c.Market.Timezone == "" {
		return fmt.Errorf("market.timezone is required")
	}
	if c.Market.Open == "" || c.Market.Close == "" {
		return fmt.Errorf("market.open and market.close are required")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxRows < 1000 {
		return fmt.Errorf("storage.max_rows must be at least 1000")
	}

	// Validate Server config
	if c.Server.Enabled && c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required when server is enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
