package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"p9e.in/zeladoria/middleware"
)

// Storage backends for the key-value slots (reports blob, users, routes).
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Report backends: the blob-backed Store or the relational tables.
const (
	ReportsStore      = "store"
	ReportsRelational = "relational"
)

// Upload backends.
const (
	UploadLocal = "local"
	UploadGCS   = "gcs"
)

// Config is everything main needs to wire the service.
type Config struct {
	Port string

	DBDSN           string
	StorageBackend  string
	DataDir         string
	ReportsKey      string
	StorageFailOpen bool
	ReportBackend   string
	SeedReports     bool

	UploadBackend string
	UploadDir     string
	GCSBucket     string

	JWTSecret      string
	TokenTTL       time.Duration
	PageSize       int
	LoginPerMinute int
	// TrustedProxies are the peers whose X-Forwarded-For is believed.
	TrustedProxies middleware.TrustedProxies
	// SignupGabinete is the gabinete given to public sign-ups. Empty leaves
	// new agents without one until an admin creates their account.
	SignupGabinete string

	LogLevel  string
	LogFormat string

	AdminName     string
	AdminPhone    string
	AdminPassword string
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using system environment variables")
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		DBDSN:           os.Getenv("DB_DSN"),
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", StorageFile)),
		DataDir:         getEnv("DATA_DIR", "./data"),
		ReportsKey:      getEnv("REPORTS_KEY", "zeladoria_reports"),
		StorageFailOpen: getBoolEnv("STORAGE_FAIL_OPEN", false),
		ReportBackend:   strings.ToLower(getEnv("REPORT_BACKEND", ReportsStore)),
		SeedReports:     getBoolEnv("SEED_REPORTS", true),

		UploadBackend: strings.ToLower(getEnv("UPLOAD_BACKEND", UploadLocal)),
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		GCSBucket:     os.Getenv("GCS_BUCKET"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		TokenTTL:       getDurationEnv("TOKEN_TTL", 24*time.Hour),
		PageSize:       getIntEnv("PAGE_SIZE", 10),
		LoginPerMinute: getIntEnv("LOGIN_RATE", 5),
		SignupGabinete: os.Getenv("SIGNUP_GABINETE"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AdminName:     getEnv("ADMIN_NAME", "Administrador"),
		AdminPhone:    os.Getenv("ADMIN_PHONE"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	proxies, err := middleware.ParseTrustedProxies(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	cfg.TrustedProxies = proxies
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StorageBackend {
	case StorageFile, StoragePostgres:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.ReportBackend {
	case ReportsStore, ReportsRelational:
	default:
		return fmt.Errorf("unknown REPORT_BACKEND %q", c.ReportBackend)
	}
	switch c.UploadBackend {
	case UploadLocal:
	case UploadGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when UPLOAD_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("unknown UPLOAD_BACKEND %q", c.UploadBackend)
	}
	if c.NeedsDB() && c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required for the postgres backends")
	}
	return nil
}

// NeedsDB reports whether any backend lives in Postgres.
func (c *Config) NeedsDB() bool {
	return c.StorageBackend == StoragePostgres || c.ReportBackend == ReportsRelational
}

// Connect opens the database and runs the migrations.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.WithField("key", key).WithField("value", v).Warn("invalid integer, using default")
		return fallback
	}
	return n
}

func getBoolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.WithField("key", key).WithField("value", v).Warn("invalid boolean, using default")
		return fallback
	}
	return b
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.WithField("key", key).WithField("value", v).Warn("invalid duration, using default")
		return fallback
	}
	return d
}
