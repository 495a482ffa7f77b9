// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinJWTSecretBytes は署名鍵に要求する最小バイト数。
const MinJWTSecretBytes = 32

// ストアの種類
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver string
	DatabaseURL string

	// Token
	jwtSecret   []byte
	TokenTTL    time.Duration
	TokenIssuer string
	BcryptCost  int

	// Stripe
	stripeAPIKey        string
	stripeWebhookSecret string
	WebhookMaxBodyBytes int64
	WebhookRetention    int // 日数

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitLogin   int

	// Logging
	LogLevel string

	// Server
	ServerPort  string
	FrontendURL string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Secrets は署名・検証に使う鍵素材。Config.Secrets がコピーを返す。
type Secrets struct {
	JWTSigningKey       []byte
	StripeAPIKey        string
	StripeWebhookSecret string
}

// Secrets は鍵素材のコピーを返す。
func (c *Config) Secrets() Secrets {
	key := make([]byte, len(c.jwtSecret))
	copy(key, c.jwtSecret)
	return Secrets{
		JWTSigningKey:       key,
		StripeAPIKey:        c.stripeAPIKey,
		StripeWebhookSecret: c.stripeWebhookSecret,
	}
}

// BillingEnabled は決済プロバイダーのAPIキーが設定されているかを返す。
func (c *Config) BillingEnabled() bool {
	return c.stripeAPIKey != ""
}

// Load は環境変数からConfigを読み込む。
// ENV_FILE（デフォルト .env）が存在すれば、未設定の変数をそのファイルの値で補う。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	fileVals, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	return load(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fileVals[key]
	})
}

func load(getenv func(string) string) (*Config, error) {
	e := env(getenv)
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.StoreDriver = e.getString("STORE_DRIVER", StoreDriverPostgres)
	if cfg.StoreDriver != StoreDriverPostgres && cfg.StoreDriver != StoreDriverMemory {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, cfg.StoreDriver)
	}

	cfg.DatabaseURL = getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StoreDriver == StoreDriverPostgres {
		missing = append(missing, "DATABASE_URL")
	}

	secret := getenv("JWT_SECRET")
	if secret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.stripeWebhookSecret = getenv("STRIPE_WEBHOOK_SECRET")
	if cfg.stripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}

	cfg.FrontendURL = strings.TrimRight(getenv("FRONTEND_URL"), "/")
	if cfg.FrontendURL == "" {
		missing = append(missing, "FRONTEND_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(secret) < MinJWTSecretBytes {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretBytes)
	}
	cfg.jwtSecret = []byte(secret)

	// Optional fields with defaults
	cfg.stripeAPIKey = getenv("STRIPE_API_KEY")
	cfg.TokenTTL = e.getDuration("TOKEN_TTL", time.Hour)
	cfg.TokenIssuer = e.getString("TOKEN_ISSUER", "ainotes")
	cfg.BcryptCost = e.getInt("BCRYPT_COST", 10)
	cfg.WebhookMaxBodyBytes = e.getInt64("WEBHOOK_MAX_BODY_BYTES", 65536)
	cfg.WebhookRetention = e.getInt("WEBHOOK_EVENT_RETENTION_DAYS", 30)
	cfg.RateLimitGeneral = e.getInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = e.getInt("RATE_LIMIT_LOGIN", 10)
	cfg.LogLevel = e.getString("LOG_LEVEL", "info")
	cfg.ServerPort = e.getString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.FrontendURL, "https://")
	cfg.CookieDomain = e.getString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = e.getString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.TokenTTL <= 0 {
		return nil, errors.New("TOKEN_TTL must be positive")
	}

	return cfg, nil
}

// env は値が空または解析できない場合にデフォルト値を返す読み取り関数。
type env func(string) string

func (e env) getString(key, defaultVal string) string {
	if v := e(key); v != "" {
		return v
	}
	return defaultVal
}

func (e env) getInt(key string, defaultVal int) int {
	v := e(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func (e env) getInt64(key string, defaultVal int64) int64 {
	v := e(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func (e env) getDuration(key string, defaultVal time.Duration) time.Duration {
	v := e(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
