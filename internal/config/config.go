package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application.
type Config struct {
	Port            string
	DuplexURL       string
	PushURL         string
	FeedToken       string
	HistoryCapacity int
	RedisURL        string // optional: derived-state snapshots
	DatabaseURL     string // optional: durable event archive
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	duplexURL := getEnv("UPSTREAM_DUPLEX_URL", "")
	pushURL := getEnv("UPSTREAM_PUSH_URL", "")
	feedToken := getEnv("FEED_TOKEN", "")
	capacity := getEnvInt("HISTORY_CAPACITY", 200)
	redisURL := getEnv("REDIS_URL", "")
	dbURL := getEnv("DATABASE_URL", "")

	if duplexURL == "" && pushURL == "" {
		return nil, fmt.Errorf("UPSTREAM_DUPLEX_URL or UPSTREAM_PUSH_URL is required")
	}

	return &Config{
		Port:            port,
		DuplexURL:       duplexURL,
		PushURL:         pushURL,
		FeedToken:       feedToken,
		HistoryCapacity: capacity,
		RedisURL:        redisURL,
		DatabaseURL:     dbURL,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
