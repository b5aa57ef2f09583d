package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Sweep   SweepConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:5173)
}

// StorageConfig holds recording storage settings.
type StorageConfig struct {
	RecordingsDir  string
	CapacityBytes  int64 // reported storage capacity; 0 = derive from the backing disk
	MaxUploadBytes int64 // upload size ceiling, enforced before buffering
}

// SweepConfig holds orphaned-blob sweeper settings.
type SweepConfig struct {
	Enabled         bool
	IntervalMinutes int
	GraceMinutes    int // minimum blob age before it may be swept
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 60),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 60),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Storage: StorageConfig{
			RecordingsDir:  getEnv("RECORDINGS_DIR", "recordings"),
			CapacityBytes:  getEnvInt64("STORAGE_CAPACITY_BYTES", 10*1024*1024*1024),
			MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 500*1024*1024),
		},
		Sweep: SweepConfig{
			Enabled:         getEnvBool("SWEEP_ENABLED", true),
			IntervalMinutes: getEnvInt("SWEEP_INTERVAL_MIN", 10),
			GraceMinutes:    getEnvInt("SWEEP_GRACE_MIN", 15),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
