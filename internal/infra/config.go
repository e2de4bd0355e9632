package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	BackendURL       string
	BackendAPIKey    string
	BackendTimeout   time.Duration
	WorkerCount      int
	MaxAttempts      int
	RetryDelay       time.Duration
	WildcardDir      string
	PresetPath       string
	StoragePath      string
	AllowedOrigins   []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. DATABASE_URL is optional: without it the job
// history recorder is disabled and the orchestrator runs fully in memory.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		BackendURL:       os.Getenv("BACKEND_URL"),
		BackendAPIKey:    os.Getenv("BACKEND_API_KEY"),
		BackendTimeout:   time.Second * time.Duration(getEnvInt("BACKEND_TIMEOUT_SECONDS", 120)),
		WorkerCount:      getEnvInt("WORKER_COUNT", 2),
		MaxAttempts:      getEnvInt("MAX_ATTEMPTS", 3),
		RetryDelay:       time.Second * time.Duration(getEnvInt("RETRY_DELAY_SECONDS", 0)),
		WildcardDir:      getEnv("WILDCARD_DIR", "./wildcards"),
		PresetPath:       getEnv("PRESET_PATH", "./presets.yaml"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		AllowedOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
