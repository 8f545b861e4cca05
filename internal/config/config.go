package config

import (
	"os"
	"strconv"
	"strings"
	"time"
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

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects where uploaded media ends up and bounds what is accepted.
type StorageConfig struct {
	Driver    string // "local" or "minio"
	UploadDir string
	TmpDir    string
	MaxBytes  int64
}

// AuthConfig holds token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// LLMConfig holds caption generation provider settings.
type LLMConfig struct {
	Provider      string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiKey     string
	GeminiModel   string
	GeminiBaseURL string
	Timeout       time.Duration
	MaxAttempts   int
	MaxTags       int
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	AdminEmail string
	BaseURL    string
}

// HTTPConfig holds edge settings for the API server.
type HTTPConfig struct {
	CORSOrigins     string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Env      string
	Timezone string
	Database DatabaseConfig
	MinIO    MinIOConfig
	Storage  StorageConfig
	Auth     AuthConfig
	LLM      LLMConfig
	SMTP     SMTPConfig
	HTTP     HTTPConfig
}

// IsDevelopment reports whether internal error details may be exposed in responses.
func (c *AppConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("APP_ENV", "production"),
		Timezone: getEnv("APP_TIMEZONE", "UTC"),
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
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Storage: StorageConfig{
			Driver:    getEnv("STORAGE_DRIVER", "local"),
			UploadDir: getEnv("UPLOAD_DIR", "uploads"),
			TmpDir:    getEnv("UPLOAD_TMP_DIR", "uploads/tmp"),
			MaxBytes:  int64(getEnvInt("UPLOAD_MAX_BYTES", 5<<20)),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			TokenTTL:   getEnvDuration("JWT_TTL", 24*time.Hour),
			BcryptCost: getEnvInt("BCRYPT_COST", 12),
		},
		LLM: LLMConfig{
			Provider:      getEnv("LLM_PROVIDER", "gemini"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			GeminiKey:     getEnv("GEMINI_API_KEY", ""),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Timeout:       getEnvDuration("LLM_TIMEOUT", 30*time.Second),
			MaxAttempts:   getEnvInt("LLM_MAX_ATTEMPTS", 3),
			MaxTags:       getEnvInt("LLM_MAX_TAGS", 5),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvInt("SMTP_PORT", 587),
			User:       getEnv("SMTP_USER", ""),
			Password:   getEnv("SMTP_PASS", ""),
			From:       getEnv("SMTP_FROM", "no-reply@postflow.local"),
			AdminEmail: getEnv("ADMIN_EMAIL", ""),
			BaseURL:    getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		HTTP: HTTPConfig{
			CORSOrigins:     getEnv("CORS_ORIGINS", "*"),
			RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 100),
			RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
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

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
