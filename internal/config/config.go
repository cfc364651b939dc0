package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Gateway configuration
	GatewayPort string
	Environment string

	// Backend service configuration
	BackendBaseURL string
	WebSocketURL   string
	RequestTimeout time.Duration

	// Redis bus configuration (optional, empty disables the bus)
	RedisAddress string

	// Local store configuration
	StorePath string

	// Session configuration
	Username         string
	DebounceInterval time.Duration
	MaxDocuments     int

	FrontendAddress string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	return &Config{
		GatewayPort:      getEnv("PORT", "4820"),
		Environment:      getEnv("ENV", "development"),
		BackendBaseURL:   getEnv("BACKEND_ADDRESS", "http://localhost:8080"),
		WebSocketURL:     getEnv("BACKEND_WS_ADDRESS", "ws://localhost:8080"),
		RequestTimeout:   getDurationEnv("REQUEST_TIMEOUT", 10*time.Second),
		RedisAddress:     getEnv("REDIS_ADDRESS", ""),
		StorePath:        getEnv("STORE_PATH", defaultStorePath()),
		Username:         getEnv("USERNAME", "anonymous"),
		DebounceInterval: getDurationEnv("DEBOUNCE_INTERVAL", 2*time.Second),
		MaxDocuments:     getIntEnv("MAX_DOCUMENTS", 10),
		FrontendAddress:  getEnv("FRONTEND_ADDRESS", "http://localhost:3000"),
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".collabedge"
	}
	return filepath.Join(home, ".collabedge")
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
