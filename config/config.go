package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Storage     StorageConfig
	OAuth       OAuthConfig
	Scheduler   SchedulerConfig
	Marker      MarkerConfig
	Email       EmailConfig
	Admin       AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string. If DatabaseConfig.URL is
// set (e.g. DATABASE_URL env), it is used as-is; otherwise built from
// components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis connection settings. Redis backs the markers/
// notifications/default job queues and the OAuth state nonce store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds admin session token signing settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// StorageConfig holds the defaults shared by every StorageConnection of a
// given provider kind, plus the credential-at-rest encryption key.
type StorageConfig struct {
	LocalRootDir        string
	LocalPublicBaseURL  string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	PresignExpireMinutes int
	CredentialMasterKey string // base64, 32 bytes; seals StorageConnection credentials via secretbox
}

// OAuthConfig holds the cloud-disk provider's authorization-code flow
// settings (C1/C2).
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
	APIBaseURL   string
	RefreshCheckInterval int // seconds; how often C2 scans for tokens nearing expiry
}

// SchedulerConfig holds the tick intervals for C5's three background loops.
type SchedulerConfig struct {
	ExpiryWarningHourUTC   int // hour of day (UTC) the daily expiry-warning sweep runs
	ExpiryCheckIntervalSec int // per-minute project expiry/deactivation sweep
	RotationCheckIntervalSec int // video rotation due-check interval
}

// MarkerConfig holds the marker compiler invocation settings (C4).
type MarkerConfig struct {
	CompilerPath    string
	WorkDir         string
	TimeoutSeconds  int
	MaxAttempts     int
	BackoffSeconds  int
}

// EmailConfig holds SMTP settings used to dispatch Notification rows to a
// company's contact_email.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// AdminConfig seeds the first admin_users row on an empty database.
type AdminConfig struct {
	BootstrapEmail    string
	BootstrapPassword string
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("env")

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/arplatform?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "arplatform"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		Storage: StorageConfig{
			LocalRootDir:         getEnv("STORAGE_LOCAL_ROOT", "./data/storage"),
			LocalPublicBaseURL:   getEnv("STORAGE_LOCAL_PUBLIC_BASE_URL", "http://localhost:8080/files"),
			AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
			AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
			AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
			CredentialMasterKey:  getEnv("CREDENTIAL_MASTER_KEY", ""),
		},
		OAuth: OAuthConfig{
			ClientID:             getEnv("CLOUD_DISK_OAUTH_CLIENT_ID", ""),
			ClientSecret:         getEnv("CLOUD_DISK_OAUTH_CLIENT_SECRET", ""),
			AuthURL:              getEnv("CLOUD_DISK_OAUTH_AUTH_URL", ""),
			TokenURL:             getEnv("CLOUD_DISK_OAUTH_TOKEN_URL", ""),
			RedirectURL:          getEnv("CLOUD_DISK_OAUTH_REDIRECT_URL", ""),
			Scopes:               splitTrim(getEnv("CLOUD_DISK_OAUTH_SCOPES", "disk.read,disk.write"), ","),
			APIBaseURL:           getEnv("CLOUD_DISK_API_BASE_URL", ""),
			RefreshCheckInterval: getEnvInt("CREDENTIAL_REFRESH_CHECK_INTERVAL_SEC", 60),
		},
		Scheduler: SchedulerConfig{
			ExpiryWarningHourUTC:     getEnvInt("SCHEDULER_EXPIRY_WARNING_HOUR_UTC", 9),
			ExpiryCheckIntervalSec:   getEnvInt("SCHEDULER_EXPIRY_CHECK_INTERVAL_SEC", 60),
			RotationCheckIntervalSec: getEnvInt("SCHEDULER_ROTATION_CHECK_INTERVAL_SEC", 300),
		},
		Marker: MarkerConfig{
			CompilerPath:   getEnv("MARKER_COMPILER_PATH", "mindar-compiler"),
			WorkDir:        getEnv("MARKER_WORK_DIR", "./data/marker-work"),
			TimeoutSeconds: getEnvInt("MARKER_COMPILE_TIMEOUT_SEC", 120),
			MaxAttempts:    getEnvInt("MARKER_MAX_ATTEMPTS", 3),
			BackoffSeconds: getEnvInt("MARKER_RETRY_BACKOFF_SEC", 30),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "AR Platform"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		Admin: AdminConfig{
			BootstrapEmail:    getEnv("ADMIN_BOOTSTRAP_EMAIL", ""),
			BootstrapPassword: getEnv("ADMIN_BOOTSTRAP_PASSWORD", ""),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
