package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env               string
	APIBaseURL        string
	StreamURL         string
	HTTPTimeout       time.Duration
	PollInterval      time.Duration
	BadgePollInterval time.Duration
	HTTPAddr          string
	TokenSecret       string
	TokenTTL          time.Duration
	MusicBrainzURL    string
	UserAgent         string
}

// Load reads an optional .env file and parses configuration from the
// current environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:            getEnv("APP_ENV", "dev"),
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:5001/api/v1"),
		StreamURL:      os.Getenv("STREAM_URL"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":5001"),
		TokenSecret:    getEnv("TOKEN_SECRET", "waxtrade-dev-secret"),
		MusicBrainzURL: getEnv("MUSICBRAINZ_URL", "https://musicbrainz.org/ws/2"),
		UserAgent:      getEnv("USER_AGENT", "waxtrade/0.1"),
	}

	timeout, err := parseDurationEnv("HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTPTimeout = timeout

	poll, err := parseDurationEnv("POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.PollInterval = poll

	badge, err := parseDurationEnv("BADGE_POLL_INTERVAL", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.BadgePollInterval = badge

	ttl, err := parseDurationEnv("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenTTL = ttl

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return d, nil
}
