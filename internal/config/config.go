// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string        `env:"DATABASE_URL,required,notEmpty"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Session
	SessionSecret    string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionTransport string        `env:"SESSION_TRANSPORT" envDefault:"bearer"`

	// Auth
	BcryptCost            int  `env:"BCRYPT_COST" envDefault:"10"`
	CollapseLoginFailures bool `env:"AUTH_COLLAPSE_LOGIN_FAILURES" envDefault:"false"`

	// QA backend
	QABackendURL string        `env:"QA_BACKEND_URL" envDefault:"http://localhost:5000"`
	QATimeout    time.Duration `env:"QA_TIMEOUT" envDefault:"30s"`

	// Rate Limit（req/min）
	RateLimitAuth int `env:"RATE_LIMIT_AUTH" envDefault:"20"`
	RateLimitAsk  int `env:"RATE_LIMIT_ASK" envDefault:"30"`

	// Worker
	RevocationCleanupInterval time.Duration `env:"REVOCATION_CLEANUP_INTERVAL" envDefault:"1h"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`

	// Cookie
	CookieSecure bool   `env:"-"`
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数の未設定や値の形式不正はまとめて1つのエラーとして返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}
