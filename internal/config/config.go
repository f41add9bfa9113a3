// Package config loads runtime settings from the environment. Keys mirror the
// deployment's .env file; every option has a workable default so a bare
// development environment starts without ceremony.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server       ServerConfig
	Scraper      ScraperConfig
	Browser      BrowserConfig
	ProxyAPI     ProxyAPIConfig
	MercadoLivre MercadoLivreConfig
	Cache        CacheConfig
	Database     DatabaseConfig
	Logging      LoggingConfig
	IsProduction bool
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	MinDelay             time.Duration
	MaxDelay             time.Duration
	MaxRetries           int
	MaxRequestsPerMinute int
}

type BrowserConfig struct {
	Headless bool
	Timeout  time.Duration
}

type ProxyAPIConfig struct {
	Enabled bool
	APIKey  string
	Timeout time.Duration
}

type MercadoLivreConfig struct {
	AppID        string
	ClientSecret string
	RefreshToken string
	TokenFile    string
}

type CacheConfig struct {
	Enabled   bool
	RedisAddr string
	TTL       time.Duration
}

type DatabaseConfig struct {
	URL string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			MinDelay:             getSecondsOrDefault("MIN_DELAY_SECONDS", 2*time.Second),
			MaxDelay:             getSecondsOrDefault("MAX_DELAY_SECONDS", 5*time.Second),
			MaxRetries:           getIntOrDefault("MAX_RETRIES", 3),
			MaxRequestsPerMinute: getIntOrDefault("MAX_REQUESTS_PER_MINUTE", 10),
		},
		Browser: BrowserConfig{
			Headless: getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:  getDurationOrDefault("BROWSER_TIMEOUT", 10*time.Second),
		},
		ProxyAPI: ProxyAPIConfig{
			Enabled: getBoolOrDefault("USE_SCRAPER_API", false),
			APIKey:  getEnvOrDefault("SCRAPER_API_KEY", ""),
			Timeout: getDurationOrDefault("SCRAPER_API_TIMEOUT", 60*time.Second),
		},
		MercadoLivre: MercadoLivreConfig{
			AppID:        getEnvOrDefault("MERCADO_LIVRE_APP_ID", ""),
			ClientSecret: getEnvOrDefault("MERCADO_LIVRE_CLIENT_SECRET", ""),
			RefreshToken: getEnvOrDefault("MERCADO_LIVRE_REFRESH_TOKEN", ""),
			TokenFile:    getEnvOrDefault("TOKEN_FILE", "ml_tokens.json"),
		},
		Cache: CacheConfig{
			Enabled:   getBoolOrDefault("CACHE_ENABLED", false),
			RedisAddr: getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			TTL:       getSecondsOrDefault("CACHE_TTL_SECONDS", time.Hour),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		IsProduction: getBoolOrDefault("IS_PRODUCTION", false),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.MinDelay > c.Scraper.MaxDelay {
		return fmt.Errorf("MIN_DELAY_SECONDS cannot be greater than MAX_DELAY_SECONDS")
	}

	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	}

	if c.Scraper.MaxRequestsPerMinute < 0 {
		return fmt.Errorf("MAX_REQUESTS_PER_MINUTE cannot be negative")
	}

	if c.ProxyAPI.Enabled && c.ProxyAPI.APIKey == "" {
		return fmt.Errorf("SCRAPER_API_KEY is required when USE_SCRAPER_API is set")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getSecondsOrDefault reads a bare (possibly fractional) seconds value, the
// format the deployment's .env files use for delay settings.
func getSecondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return defaultValue
}
