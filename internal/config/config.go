package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=kiramate port=5432 sslmode=disable"

type Config struct {
	AppName     string
	HTTPPort    string
	DBDriver    string // postgres | sqlite
	DatabaseDSN string
	DBDebug     bool
	JWTSecret   string
	CORSOrigins string

	UploadDir string // tenant_documents/, shop_documents/ and company/ live here
	LogDir    string // app.log and error.log

	SessionTimeout time.Duration
	CookieSecure   bool

	ReportRateLimit  int
	ReportRateWindow time.Duration

	SQLMigrations  bool
	MigrationsPath string
}

// Load reads the server configuration. A .env file in the working
// directory is applied first; real environment variables win.
func Load() *Config {
	cfg := LoadDatabase()

	cfg.AppName = getEnv("APP_NAME", "KiraMate")
	cfg.HTTPPort = getEnv("HTTP_PORT", "8080")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.CORSOrigins = getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	cfg.UploadDir = getEnv("UPLOAD_DIR", "./uploads")
	cfg.LogDir = getEnv("LOG_DIR", "./logs")
	cfg.SessionTimeout = getEnvDuration("SESSION_TIMEOUT", 30*time.Minute)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.ReportRateLimit = getEnvInt("REPORT_RATE_LIMIT", 20)
	cfg.ReportRateWindow = getEnvDuration("REPORT_RATE_WINDOW", time.Minute)

	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET is not set")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET must be at least 32 characters")
	}
	if cfg.DBDriver == "postgres" && cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN is using the default value, set your own Postgres connection for production.")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS is using the default value, set your own domain for production.")
	}

	return cfg
}

// LoadDatabase reads only what is needed to open the database, for the CLI.
func LoadDatabase() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseDSN:    getEnv("DATABASE_DSN", defaultDSN),
		DBDebug:        getEnvBool("DB_DEBUG", false),
		SQLMigrations:  getEnvBool("SQL_MIGRATIONS", false),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		log.Fatalf("[FATAL] DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("[WARN] %s=%q is not a positive integer, using %d", key, v, def)
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Printf("[WARN] %s=%q is not a duration, using %s", key, v, def)
	}
	return def
}
