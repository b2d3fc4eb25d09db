package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by SCRY_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("SCRY_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DatabaseURL returns the Postgres connection string for the episode
// archive. Empty means the archive is disabled.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// CatalogPath returns the role catalog JSON path.
// Defaults to "data/catalog.json" if not set.
func CatalogPath() string {
	p := os.Getenv("CATALOG_PATH")
	if p == "" {
		return "data/catalog.json"
	}
	return p
}

// EmbeddingSize returns the per-unit belief embedding width.
// Defaults to 16 if not set.
func EmbeddingSize() int {
	size, err := strconv.Atoi(os.Getenv("EMBEDDING_SIZE"))
	if err != nil || size <= 0 {
		return 16
	}
	return size
}

// MaxEpisodes returns the hosted-episode capacity.
// Defaults to 64 if not set.
func MaxEpisodes() int {
	n, err := strconv.Atoi(os.Getenv("MAX_EPISODES"))
	if err != nil || n <= 0 {
		return 64
	}
	return n
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
