// Package config provides application configuration management.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerPort string
	APIToken   string

	// Persistence configuration
	StatePath    string
	DataStoreDSN string

	// Scenario configuration
	ScenarioPath string

	// Redis / events configuration
	RedisAddr        string
	RedisUsername    string
	RedisPassword    string
	RedisDB          int
	RedisTLSEnabled  bool
	RedisTLSInsecure bool
	EventsChannel    string

	// Client configuration
	APIBaseURL   string
	PollInterval time.Duration
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	statePath := getEnv("STATE_PATH", "/app/state")
	dataStoreDSN := getEnv("DATASTORE_DSN", "")
	if dataStoreDSN == "" {
		dataStoreDSN = filepath.Join(statePath, "roundsync.db")
	}
	return &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		APIToken:         os.Getenv("ROUNDSYNC_API_TOKEN"),
		StatePath:        statePath,
		DataStoreDSN:     dataStoreDSN,
		ScenarioPath:     getEnv("SCENARIO_PATH", "/app/config/scenario.yaml"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisUsername:    getEnv("REDIS_USERNAME", ""),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisTLSEnabled:  getEnvBool("REDIS_TLS_ENABLED", false),
		RedisTLSInsecure: getEnvBool("REDIS_TLS_INSECURE_SKIP_VERIFY", false),
		EventsChannel:    getEnv("EVENTS_CHANNEL", "roundsync-meeting-events"),
		APIBaseURL:       getEnv("ROUNDSYNC_SERVER_URL", "http://localhost:8080"),
		PollInterval:     getEnvDuration("STATUS_POLL_INTERVAL", 3*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s: %s, using default %s", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s: %s, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		default:
			log.Printf("Invalid bool for %s: %s, using default %t", key, value, defaultValue)
		}
	}
	return defaultValue
}
