package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Host                 string
	Port                 string
	DatabaseURL          string
	FrontendURL          string
	CORSOrigins          []string
	GeminiAPIKey         string
	GeminiModel          string
	StripeSecretKey      string
	StripeWebhookSecret  string
	OperatorJWTSecret    string
	CreditsPerGeneration int64
	MaxUploadBytes       int64
	Env                  string
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cost, err := getInt("CREDITS_PER_GENERATION", 3)
	if err != nil {
		return nil, err
	}
	if cost <= 0 {
		return nil, fmt.Errorf("CREDITS_PER_GENERATION must be positive, got %d", cost)
	}
	maxUpload, err := getInt("MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}

	return &Config{
		Host:                 getEnv("HOST", "0.0.0.0"),
		Port:                 getEnv("PORT", "8000"),
		DatabaseURL:          getEnv("DATABASE_URL", "sqlite:credits.db"),
		FrontendURL:          strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		CORSOrigins:          splitList(getEnv("CORS_ORIGINS", "*")),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:          os.Getenv("GEMINI_MODEL"),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		OperatorJWTSecret:    os.Getenv("OPERATOR_JWT_SECRET"),
		CreditsPerGeneration: cost,
		MaxUploadBytes:       maxUpload,
		Env:                  getEnv("ENVIRONMENT", "development"),
	}, nil
}

// UsesSQLite reports whether DatabaseURL points at an embedded SQLite file.
func (c *Config) UsesSQLite() bool {
	return strings.HasPrefix(c.DatabaseURL, "sqlite:") || strings.HasPrefix(c.DatabaseURL, "file:")
}

// SQLitePath strips the scheme from a SQLite DatabaseURL.
func (c *Config) SQLitePath() string {
	p := strings.TrimPrefix(c.DatabaseURL, "sqlite:")
	p = strings.TrimPrefix(p, "file:")
	return strings.TrimPrefix(p, "//")
}

func (c *Config) Addr() string { return c.Host + ":" + c.Port }

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int64) (int64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
