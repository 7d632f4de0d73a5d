package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name          string `envconfig:"APP_NAME" default:"OpenBill"`
		Port          int    `envconfig:"PORT" default:"8080"`
		BaseURL       string `envconfig:"BASE_URL" default:"http://localhost:8080"`
		InvoicePrefix string `envconfig:"INVOICE_PREFIX" default:"INV-"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"openbill"`
	}

	Server struct {
		Timeout        time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		AllowedOrigins string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	}

	Auth struct {
		JWTSecret string        `envconfig:"JWT_SECRET"`
		TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	}

	Stripe struct {
		SecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
		WebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
		Currency      string `envconfig:"STRIPE_CURRENCY" default:"usd"`
	}

	SMTP struct {
		Host     string `envconfig:"SMTP_HOST"`
		Port     int    `envconfig:"SMTP_PORT" default:"587"`
		User     string `envconfig:"SMTP_USER"`
		Password string `envconfig:"SMTP_PASSWORD"`
		From     string `envconfig:"SMTP_FROM" default:"billing@localhost"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// Origins splits the ALLOWED_ORIGINS list into its entries.
func (c *Config) Origins() []string {
	parts := strings.Split(c.Server.AllowedOrigins, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}

	return parts
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
