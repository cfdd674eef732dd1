// Package config loads the service configuration from the environment. A .env file in the
// working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all service configuration.
type Config struct {
	Port       int    `env:"PORT"        envDefault:"8080"`
	GinLogging string `env:"GIN_LOGGING" envDefault:"on"`
	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT"  envDefault:"json"`
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	Database  DatabaseConfig
	RateLimit RateLimitConfig
	JWT       JWTConfig
	Mail      MailConfig
}

// DatabaseConfig holds the MySQL connection settings.
type DatabaseConfig struct {
	User            string        `env:"DBUSER"`
	Password        string        `env:"DBPWD"`
	Host            string        `env:"DBHOST"               envDefault:"localhost:3306"`
	Name            string        `env:"DBNAME"               envDefault:"contacts"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	MigrateOnStart  bool          `env:"MIGRATE_ON_START"     envDefault:"false"`
}

// RateLimitConfig holds the per-client request limits.
type RateLimitConfig struct {
	Enabled  bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RedisURL string        `env:"REDIS_URL"          envDefault:"redis://localhost:6379/0"`
	Times    int           `env:"RATE_LIMIT_TIMES"   envDefault:"1"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW"  envDefault:"20s"`
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret        string        `env:"JWT_SECRET"         envDefault:"change-me-in-production"`
	AccessExpiry  time.Duration `env:"JWT_ACCESS_EXPIRY"  envDefault:"15m"`
	RefreshExpiry time.Duration `env:"JWT_REFRESH_EXPIRY" envDefault:"168h"`
	EmailExpiry   time.Duration `env:"JWT_EMAIL_EXPIRY"   envDefault:"168h"`
}

// MailConfig selects and configures the outbound email provider.
type MailConfig struct {
	Provider     string `env:"MAIL_PROVIDER"   envDefault:"log"`
	ResendAPIKey string `env:"RESEND_API_KEY"`
	FromName     string `env:"MAIL_FROM_NAME"  envDefault:"ADDRESS BOOK Systems"`
	FromEmail    string `env:"MAIL_FROM_EMAIL" envDefault:"onboarding@resend.dev"`
	AWSRegion    string `env:"AWS_REGION"      envDefault:"us-east-1"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("could not load .env file: %w", err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("could not parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Times < 1 || c.RateLimit.Window <= 0) {
		return errors.New("RATE_LIMIT_TIMES and RATE_LIMIT_WINDOW must be positive")
	}
	switch c.Mail.Provider {
	case "log", "ses":
	case "resend":
		if c.Mail.ResendAPIKey == "" {
			return errors.New("RESEND_API_KEY is required for the resend mail provider")
		}
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q", c.Mail.Provider)
	}
	return nil
}

// DSN returns the go-sql-driver/mysql data source name.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", d.User, d.Password, d.Host, d.Name)
}
