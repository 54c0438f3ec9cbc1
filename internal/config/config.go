package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)

	// Postgres configuration (primary ledger store)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// ClickHouse configuration (ledger event sink, optional)
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	// WithdrawStateTTL expires abandoned withdrawal conversations.
	// 0 keeps them forever.
	WithdrawStateTTL time.Duration

	UseMockDB bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	// Postgres configuration (required if not using mock)
	if !config.UseMockDB {
		config.DBHost = os.Getenv("DB_HOST")
		if config.DBHost == "" {
			return nil, fmt.Errorf("DB_HOST is required when USE_MOCK_DB is not set")
		}

		config.DBPort = os.Getenv("DB_PORT")
		if config.DBPort == "" {
			config.DBPort = "5432"
		}

		config.DBUser = os.Getenv("DB_USER")
		if config.DBUser == "" {
			config.DBUser = "postgres"
		}

		config.DBPassword = os.Getenv("DB_PASSWORD")
		// Password is optional, can be empty

		config.DBName = os.Getenv("DB_NAME")
		if config.DBName == "" {
			config.DBName = "refbot"
		}
	}

	// ClickHouse event sink (optional; disabled when host is unset)
	config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
	if config.ClickHouseHost != "" {
		portStr := os.Getenv("CLICKHOUSE_PORT")
		if portStr == "" {
			config.ClickHousePort = 9000 // Default ClickHouse native port
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
			}
			config.ClickHousePort = port
		}

		config.ClickHouseDatabase = os.Getenv("CLICKHOUSE_DATABASE")
		if config.ClickHouseDatabase == "" {
			config.ClickHouseDatabase = "default"
		}

		config.ClickHouseUser = os.Getenv("CLICKHOUSE_USER")
		if config.ClickHouseUser == "" {
			config.ClickHouseUser = "default"
		}

		config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	}

	// Withdrawal conversation expiry (optional, e.g. "30m")
	if ttlStr := os.Getenv("WITHDRAW_STATE_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid WITHDRAW_STATE_TTL: %w", err)
		}
		config.WithdrawStateTTL = ttl
	}

	return config, nil
}

// PostgresDSN builds the connection string for the ledger store
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
