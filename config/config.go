package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/PabloReca/busca-pisos/internal/models"
)

type Config struct {
	Server struct {
		Port      string `env:"PORT" envDefault:"8000"`
		// Empty leaves / and /static unregistered
		StaticDir string `env:"STATIC_DIR"`
		LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	}

	Database struct {
		// A postgres:// or postgresql:// URL selects Postgres, anything else is a SQLite path
		URL string `env:"DATABASE_URL" envDefault:"buscapisos.db"`
	}

	Telegram struct {
		BotToken   string `env:"TELEGRAM_BOT_TOKEN"`
		ChatID     string `env:"TELEGRAM_CHAT_ID"`
		APIBaseURL string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	}

	Source struct {
		URL            string `env:"SOURCE_URL" envDefault:"https://api.wallapop.com/api/v3/search"`
		MaxPages       int    `env:"SOURCE_MAX_PAGES" envDefault:"10"`
		TimeoutSeconds int    `env:"SOURCE_TIMEOUT_SECONDS" envDefault:"20"`
	}

	Refresh struct {
		PropertyTypes []string `env:"PROPERTY_TYPES" envSeparator:"," envDefault:"apartment,house"`

		// Listings below this price never reach storage
		MinPrice float64 `env:"MIN_PRICE" envDefault:"300"`

		// New listings at or below this price are notified
		NotificationMaxPrice float64 `env:"NOTIFICATION_MAX_PRICE" envDefault:"700"`

		Parallel        bool `env:"REFRESH_PARALLEL" envDefault:"false"`
		IntervalMinutes int  `env:"REFRESH_INTERVAL_MINUTES" envDefault:"0"`
		RunOnStartup    bool `env:"REFRESH_ON_STARTUP" envDefault:"false"`

		SearchProfilePath string `env:"SEARCH_PROFILE_PATH"`
	}

	BaseLocation struct {
		Latitude  float64 `env:"BASE_LATITUDE" envDefault:"42.2313601"`
		Longitude float64 `env:"BASE_LONGITUDE" envDefault:"-8.7124252"`
	}

	Notifications struct {
		QueueSize         int `env:"NOTIFY_QUEUE_SIZE" envDefault:"100"`
		MaxRetries        int `env:"NOTIFY_MAX_RETRIES" envDefault:"2"`
		RetryDelaySeconds int `env:"NOTIFY_RETRY_DELAY_SECONDS" envDefault:"2"`
	}
}

// LoadConfig reads an optional .env file and parses the environment.
func LoadConfig(envPath ...string) (*Config, error) {
	if err := godotenv.Load(envPath...); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Refresh.PropertyTypes) == 0 {
		return fmt.Errorf("PROPERTY_TYPES must name at least one property type")
	}
	for _, pt := range c.Refresh.PropertyTypes {
		if !models.Category(pt).Valid() {
			return fmt.Errorf("unknown property type %q in PROPERTY_TYPES", pt)
		}
	}
	if c.Source.MaxPages <= 0 {
		return fmt.Errorf("SOURCE_MAX_PAGES must be positive, got %d", c.Source.MaxPages)
	}
	return nil
}

// Categories returns the configured property types.
func (c *Config) Categories() []models.Category {
	categories := make([]models.Category, len(c.Refresh.PropertyTypes))
	for i, pt := range c.Refresh.PropertyTypes {
		categories[i] = models.Category(pt)
	}
	return categories
}

func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

func (c *Config) NotifyRetryDelay() time.Duration {
	return time.Duration(c.Notifications.RetryDelaySeconds) * time.Second
}

// TelegramConfig returns the bot settings; the bot is enabled only when both
// token and chat are configured.
func (c *Config) TelegramConfig() *models.TelegramConfig {
	return &models.TelegramConfig{
		IsEnabled:  c.Telegram.BotToken != "" && c.Telegram.ChatID != "",
		BotToken:   c.Telegram.BotToken,
		ChatID:     c.Telegram.ChatID,
		APIBaseURL: c.Telegram.APIBaseURL,
	}
}
