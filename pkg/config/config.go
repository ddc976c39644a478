package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Upstream data sources
	Providers ProvidersConfig

	// Pipeline
	Pipeline PipelineConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Driver   string // postgres, memory
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ProvidersConfig holds the upstream market data source settings
type ProvidersConfig struct {
	// Yahoo Finance (cheap, unauthenticated)
	YahooBaseURL    string
	YahooQuoteURL   string
	YahooProfileURL string

	// Alpha Vantage (rich, 5 calls/min and 25 calls/day on the free tier)
	AlphaVantageBaseURL     string
	AlphaVantageAPIKey      string
	AlphaVantageMinInterval time.Duration
	AlphaVantageDailyLimit  int

	// Financial Modeling Prep (rich, daily quota)
	FMPBaseURL     string
	FMPAPIKey      string
	FMPDailyLimit  int
	FMPMinInterval time.Duration

	// RichSource selects the fundamentals-rich source: alphavantage or fmp
	RichSource  string
	HTTPTimeout time.Duration
}

// PipelineConfig points at the YAML pipeline definition
type PipelineConfig struct {
	ConfigPath      string
	DefaultExchange string
}

// Load reads configuration from environment variables
// ⭐ SSOT: only this function calls os.Getenv()
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Driver:          getEnv("DATABASE_DRIVER", "postgres"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "trueequity"),
			User:            getEnv("DB_USER", "trueequity"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Providers: ProvidersConfig{
			YahooBaseURL:    getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			YahooQuoteURL:   getEnv("YAHOO_QUOTE_URL", "https://query1.finance.yahoo.com"),
			YahooProfileURL: getEnv("YAHOO_PROFILE_URL", "https://finance.yahoo.com"),

			AlphaVantageBaseURL:     getEnv("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
			AlphaVantageAPIKey:      getEnv("ALPHA_VANTAGE_API_KEY", ""),
			AlphaVantageMinInterval: getEnvAsDuration("ALPHA_VANTAGE_MIN_INTERVAL", "12s"),
			AlphaVantageDailyLimit:  getEnvAsInt("ALPHA_VANTAGE_DAILY_LIMIT", 25),

			FMPBaseURL:     getEnv("FMP_BASE_URL", "https://financialmodelingprep.com/stable"),
			FMPAPIKey:      getEnv("FMP_API_KEY", ""),
			FMPDailyLimit:  getEnvAsInt("FMP_DAILY_LIMIT", 250),
			FMPMinInterval: getEnvAsDuration("FMP_MIN_INTERVAL", "250ms"),

			RichSource:  getEnv("RICH_SOURCE", "alphavantage"),
			HTTPTimeout: getEnvAsDuration("PROVIDER_HTTP_TIMEOUT", "30s"),
		},

		Pipeline: PipelineConfig{
			ConfigPath:      getEnv("PIPELINE_CONFIG", "config/pipeline/trueequity.yaml"),
			DefaultExchange: getEnv("DEFAULT_EXCHANGE", "NASDAQ"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// UsesMemoryStore reports whether persistence runs in-process instead of PostgreSQL
func (c *Config) UsesMemoryStore() bool {
	return c.Database.Driver == "memory"
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "memory":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be one of: postgres, memory")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Providers.RichSource != "alphavantage" && c.Providers.RichSource != "fmp" {
		return fmt.Errorf("RICH_SOURCE must be one of: alphavantage, fmp")
	}

	if c.Providers.FMPDailyLimit <= 0 {
		return fmt.Errorf("FMP_DAILY_LIMIT must be positive")
	}

	if c.Providers.AlphaVantageDailyLimit <= 0 {
		return fmt.Errorf("ALPHA_VANTAGE_DAILY_LIMIT must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
