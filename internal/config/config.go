// Package config reads the process configuration from the environment,
// optionally seeded from configs/.env.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	DBMaxOpenConns int
	DBMaxIdleConns int
	LogLevel       string

	Port        string
	CORSOrigins []string

	UploadDir      string
	StorageBackend string
	GCSBucket      string

	TxTimeout     time.Duration
	RetentionDays int
	RetentionCron string
}

// Load reads configs/.env if present and fills every setting from the
// environment, falling back to development defaults.
func Load() *Config {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	return &Config{
		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DBPath:     getEnv("DB_PATH", "buildtrack.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "postgres"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		DBMaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 5),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "warn")),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),

		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
		GCSBucket:      os.Getenv("GCS_BUCKET"),

		TxTimeout:     getDuration("TX_TIMEOUT", 10*time.Second),
		RetentionDays: getInt("RETENTION_DAYS", 30),
		RetentionCron: getEnv("RETENTION_CRON", "30 3 * * *"),
	}
}

// DSN is the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return "file:" + c.DBPath + "?_foreign_keys=on&_busy_timeout=5000"
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

// RetentionAge is how long replaced and deleted uploads keep their blobs.
func (c *Config) RetentionAge() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q: %v", key, raw, err)
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q: %v", key, raw, err)
		return fallback
	}
	return v
}

func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
