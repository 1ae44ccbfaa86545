// Package config loads harvester configuration from the environment.
// All settings have documented defaults; the entry point preloads a .env
// file so the harvester shares configuration with the dashboard server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Mongo     MongoConfig
	Vinted    VintedConfig
	Catawiki  CatawikiConfig
	Ebay      EbayConfig
	Scheduler SchedulerConfig
	Telegram  TelegramConfig
	Logging   LoggingConfig
}

// MongoConfig holds document store connection settings
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// VintedConfig holds Vinted harvest settings
type VintedConfig struct {
	Domain   string // TLD of the regional site, e.g. "es"
	Search   string
	MinLikes int
	MaxPages int
}

// CatawikiConfig holds Catawiki harvest settings
type CatawikiConfig struct {
	SearchURL string
	MinLikes  int
	MaxPages  int
}

// EbayConfig holds eBay Browse/OAuth API settings
type EbayConfig struct {
	ClientID      string
	ClientSecret  string
	MarketplaceID string
	// RefreshToken enables the user-level quota check; optional.
	RefreshToken string
	Timeout      time.Duration
}

// SchedulerConfig holds cycle intervals per run mode
type SchedulerConfig struct {
	CombinedInterval time.Duration
	VintedInterval   time.Duration
	CatawikiInterval time.Duration
}

// TelegramConfig holds the optional cycle-summary notifier settings
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// Enabled reports whether cycle summaries should be sent.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults
// for everything not set.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Mongo: MongoConfig{
			URI:        v.GetString("MONGODB_URI"),
			Database:   v.GetString("MONGO_DB_NAME"),
			Collection: v.GetString("MONGO_COLLECTION"),
		},
		Vinted: VintedConfig{
			Domain:   strings.ToLower(v.GetString("VINTED_DOMAIN")),
			Search:   v.GetString("VINTED_SEARCH"),
			MinLikes: v.GetInt("VINTED_MIN_LIKES"),
			MaxPages: v.GetInt("VINTED_MAX_PAGES"),
		},
		Catawiki: CatawikiConfig{
			SearchURL: v.GetString("CATAWIKI_SEARCH_URL"),
			MinLikes:  v.GetInt("CATAWIKI_MIN_LIKES"),
			MaxPages:  v.GetInt("CATAWIKI_MAX_PAGES"),
		},
		Ebay: EbayConfig{
			ClientID:      v.GetString("EBAY_CLIENT_ID"),
			ClientSecret:  v.GetString("EBAY_CLIENT_SECRET"),
			MarketplaceID: strings.ToUpper(v.GetString("EBAY_MARKETPLACE_ID")),
			RefreshToken:  strings.TrimSpace(v.GetString("EBAY_REFRESH_TOKEN")),
			Timeout:       v.GetDuration("EBAY_TIMEOUT"),
		},
		Scheduler: SchedulerConfig{
			CombinedInterval: v.GetDuration("CYCLE_INTERVAL_COMBINED"),
			VintedInterval:   v.GetDuration("CYCLE_INTERVAL_VINTED"),
			CatawikiInterval: v.GetDuration("CYCLE_INTERVAL_CATAWIKI"),
		},
		Telegram: TelegramConfig{
			BotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
			ChatID:   v.GetString("TELEGRAM_CHAT_ID"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	return cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Document store defaults
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "sport")
	v.SetDefault("MONGO_COLLECTION", "items")

	// Vinted defaults
	v.SetDefault("VINTED_DOMAIN", "es")
	v.SetDefault("VINTED_SEARCH", "sport card")
	v.SetDefault("VINTED_MIN_LIKES", 10)
	v.SetDefault("VINTED_MAX_PAGES", 50)

	// Catawiki defaults
	v.SetDefault("CATAWIKI_SEARCH_URL", "https://www.catawiki.com/es/s?q=sport%20card")
	v.SetDefault("CATAWIKI_MIN_LIKES", 10)
	v.SetDefault("CATAWIKI_MAX_PAGES", 50)

	// eBay defaults
	v.SetDefault("EBAY_MARKETPLACE_ID", "EBAY_ES")
	v.SetDefault("EBAY_TIMEOUT", "30s")

	// Scheduler defaults: combined cycle every 3h, standalone Vinted hourly,
	// standalone Catawiki every 30 minutes.
	v.SetDefault("CYCLE_INTERVAL_COMBINED", "3h")
	v.SetDefault("CYCLE_INTERVAL_VINTED", "1h")
	v.SetDefault("CYCLE_INTERVAL_CATAWIKI", "30m")

	// Logging defaults
	v.SetDefault("LOG_LEVEL", "info")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("MONGODB_URI is required")
	}
	if c.Mongo.Database == "" || c.Mongo.Collection == "" {
		return fmt.Errorf("MONGO_DB_NAME and MONGO_COLLECTION are required")
	}
	if c.Vinted.Domain == "" {
		return fmt.Errorf("VINTED_DOMAIN is required")
	}
	if c.Vinted.Search == "" {
		return fmt.Errorf("VINTED_SEARCH is required")
	}
	if c.Vinted.MinLikes < 0 || c.Catawiki.MinLikes < 0 {
		return fmt.Errorf("minimum likes thresholds must not be negative")
	}
	if c.Vinted.MaxPages < 1 || c.Catawiki.MaxPages < 1 {
		return fmt.Errorf("max pages must be at least 1")
	}
	if c.Catawiki.SearchURL == "" {
		return fmt.Errorf("CATAWIKI_SEARCH_URL is required")
	}
	if !strings.HasPrefix(c.Ebay.MarketplaceID, "EBAY_") {
		return fmt.Errorf("EBAY_MARKETPLACE_ID must look like EBAY_XX, got %q", c.Ebay.MarketplaceID)
	}
	if c.Ebay.Timeout < time.Second {
		return fmt.Errorf("EBAY_TIMEOUT must be at least 1s")
	}
	if c.Scheduler.CombinedInterval < time.Minute ||
		c.Scheduler.VintedInterval < time.Minute ||
		c.Scheduler.CatawikiInterval < time.Minute {
		return fmt.Errorf("cycle intervals must be at least 1 minute")
	}
	return nil
}
