package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppPort      = "8080"
	defaultFetchTimeout = 5 * time.Second
	defaultFetchRate    = 2.0
	defaultFetchBurst   = 4
	defaultCORSOrigin   = "http://localhost:3000"
)

type Config struct {
	AppEnv   string
	AppPort  string
	LogLevel string

	APIBaseURL     string
	FetchTimeout   time.Duration
	FetchRate      float64
	FetchBurst     int
	CategorySource string

	CORSOrigin string
	SecretKey  string
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         os.Getenv("APP_ENV"),
		AppPort:        getenv("APP_PORT", defaultAppPort),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		APIBaseURL:     strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		FetchTimeout:   defaultFetchTimeout,
		FetchRate:      defaultFetchRate,
		FetchBurst:     defaultFetchBurst,
		CategorySource: getenv("CATEGORY_SOURCE", "embedded"),
		CORSOrigin:     getenv("CORS_ORIGIN", defaultCORSOrigin),
		SecretKey:      os.Getenv("SECRET_KEY"),
	}

	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL is required")
	}

	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid FETCH_TIMEOUT %q", v)
		}
		cfg.FetchTimeout = d
	}

	if v := os.Getenv("FETCH_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			return nil, fmt.Errorf("invalid FETCH_RATE %q", v)
		}
		cfg.FetchRate = r
	}

	if v := os.Getenv("FETCH_BURST"); v != "" {
		b, err := strconv.Atoi(v)
		if err != nil || b <= 0 {
			return nil, fmt.Errorf("invalid FETCH_BURST %q", v)
		}
		cfg.FetchBurst = b
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
