package config

import (
	"os"
	"strconv"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// StorageConfig holds the two local filesystem areas used by the scan pipeline.
// Both directories are created lazily on first use.
type StorageConfig struct {
	UploadDir     string
	QuarantineDir string
	MaxUploadMB   int
}

// ScannerConfig tunes the analysis dispatcher and the detection engine stub.
type ScannerConfig struct {
	Workers             int
	QueueSize           int
	DetectionTimeoutSec int
	// Simulated engine processing delay bounds, in milliseconds.
	MinDelayMs int
	MaxDelayMs int
}

// VaultConfig holds object storage settings for the optional sample vault.
// The vault is disabled when Endpoint is empty.
type VaultConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	// AppHost is the optional bind host. Empty listens on all interfaces.
	AppHost   string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Storage   StorageConfig
	Scanner   ScannerConfig
	Vault     VaultConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:   getEnv("APP_HOST", ""),
		Port:      getEnv("PORT", "8080"), // default only for non-sensitive value
		JWTSecret: getEnv("JWT_SECRET", ""),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Storage: StorageConfig{
			UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
			QuarantineDir: getEnv("QUARANTINE_DIR", "quarantine"),
			MaxUploadMB:   getEnvInt("MAX_UPLOAD_MB", 100),
		},
		Scanner: ScannerConfig{
			Workers:             getEnvInt("SCAN_WORKERS", 4),
			QueueSize:           getEnvInt("SCAN_QUEUE_SIZE", 64),
			DetectionTimeoutSec: getEnvInt("DETECTION_TIMEOUT_SEC", 60),
			MinDelayMs:          getEnvInt("DETECTION_MIN_DELAY_MS", 3000),
			MaxDelayMs:          getEnvInt("DETECTION_MAX_DELAY_MS", 8000),
		},
		Vault: VaultConfig{
			Endpoint:  getEnv("VAULT_ENDPOINT", ""),
			AccessKey: getEnv("VAULT_ACCESS_KEY", ""),
			SecretKey: getEnv("VAULT_SECRET_KEY", ""),
			Bucket:    getEnv("VAULT_BUCKET", ""),
			UseSSL:    getEnvBool("VAULT_USE_SSL", false),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
