package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// minSecretLength はAUTH_SECRETに要求する最小バイト数（HS256の鍵長）。
const minSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	AuthSecret              string
	SessionTTL              time.Duration
	SessionRefreshThreshold time.Duration
	IdentityCacheTTL        time.Duration

	// Redis（空の場合はプロセス内キャッシュ）
	RedisURL string

	// Password reset
	PasswordResetTTL time.Duration

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int

	// Worker
	CleanupInterval time.Duration

	// Email
	EmailFrom          string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// Billing
	StripeSecretKey      string
	StripeAPIURL         string
	BillingWebhookSecret string

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envが存在する場合は先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AuthSecret = os.Getenv("AUTH_SECRET")
	if cfg.AuthSecret == "" {
		missing = append(missing, "AUTH_SECRET")
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.AuthSecret) < minSecretLength {
		return nil, fmt.Errorf("AUTH_SECRET must be at least %d bytes", minSecretLength)
	}

	// Optional fields with defaults
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.SessionRefreshThreshold = getEnvDuration("SESSION_REFRESH_THRESHOLD", 10*time.Minute)
	cfg.IdentityCacheTTL = getEnvDuration("IDENTITY_CACHE_TTL", 5*time.Minute)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.PasswordResetTTL = getEnvDuration("PASSWORD_RESET_TTL", 30*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.EmailFrom = getEnvString("EMAIL_FROM", "no-reply@mjeti360.com")
	cfg.AWSRegion = getEnvString("AWS_REGION", "eu-central-1")
	cfg.AWSAccessKeyID = getEnvString("AWS_ACCESS_KEY_ID", "")
	cfg.AWSSecretAccessKey = getEnvString("AWS_SECRET_ACCESS_KEY", "")
	cfg.StripeSecretKey = getEnvString("STRIPE_SECRET_KEY", "")
	cfg.StripeAPIURL = getEnvString("STRIPE_API_URL", "")
	cfg.BillingWebhookSecret = getEnvString("BILLING_WEBHOOK_SECRET", "")
	cfg.LogLevel = getEnvLogLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	// Secure属性は常に付与する。http://のBASE_URLで開発する場合のみCOOKIE_INSECUREで外せる
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://") || !getEnvBool("COOKIE_INSECURE", false)
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// EmailEnabled はSES経由のメール送信に必要な認証情報が揃っているかを返す。
func (c *Config) EmailEnabled() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvLogLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
