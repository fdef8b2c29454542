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

// 認証バックエンドの種類
const (
	BackendMock     = "mock"
	BackendRemote   = "remote"
	BackendPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	AuthBackend string

	// Remote API
	APIURL           string
	APITimeout       time.Duration
	APILoginEndpoint string
	APISafeClient    bool

	// Customer / seller registration
	CustomerAPIBaseURL string

	// Database
	DatabaseURL string

	// Redis（空の場合はプロセス内で失効管理する）
	RedisURL string

	// OAuth（未設定の場合Googleログインは無効）
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// GoogleEnabled はGoogleログインに必要な設定が揃っている場合にtrueを返す。
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに .env があれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.AuthBackend = strings.ToLower(getEnvString("AUTH_BACKEND", BackendRemote))
	if getEnvBool("USE_MOCK_API", false) {
		cfg.AuthBackend = BackendMock
	}
	switch cfg.AuthBackend {
	case BackendMock, BackendRemote, BackendPostgres:
	default:
		return nil, fmt.Errorf("invalid AUTH_BACKEND %q (allowed: mock, remote, postgres)", cfg.AuthBackend)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.AuthBackend == BackendPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.APIURL = strings.TrimRight(getEnvString("API_URL", "https://api.arawaney.com"), "/")
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 10*time.Second)
	cfg.APILoginEndpoint = getEnvString("API_LOGIN_ENDPOINT", "/api/login_check")
	cfg.APISafeClient = getEnvBool("API_SAFE_CLIENT", true)
	cfg.CustomerAPIBaseURL = strings.TrimRight(getEnvString("CUSTOMER_API_BASE_URL", ""), "/")
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.GoogleClientID = getEnvString("GOOGLE_CLIENT_ID", "")
	cfg.GoogleClientSecret = getEnvString("GOOGLE_CLIENT_SECRET", "")
	cfg.GoogleRedirectURL = getEnvString("GOOGLE_REDIRECT_URL", "")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 2592000)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:3000")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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
		// 数値のみの場合はミリ秒として扱う
		if ms, convErr := strconv.Atoi(v); convErr == nil {
			return time.Duration(ms) * time.Millisecond
		}
		return defaultVal
	}
	return d
}
