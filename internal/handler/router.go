package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/govqa/internal/metrics"
	"github.com/hitoshi/govqa/internal/middleware"
	"github.com/hitoshi/govqa/internal/security"
	"github.com/hitoshi/govqa/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// メトリクス
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	Sessions    SessionManagerInterface
	AuthConfig  AuthHandlerConfig

	// 質問応答
	QAClient  QAClientInterface
	Sanitizer security.AnswerSanitizer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → SecurityHeaders → CORS → Logging
//	  認証ルート:         AuthRateLimit
//	  セッション操作:     CSRF(Cookie時のみ)、検証はハンドラー内で1回
//	  保護ルート:         Session → CSRF(Cookie時のみ) → AskRateLimit(/api/ask)
//
// 登録されていないメソッドはchiの既定動作で405を返す。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cookieTransport := deps.Sessions.Transport().Name() == session.TransportCookie

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRFConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger, collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions, deps.AuthConfig, collector)
	askHandler := NewAskHandler(deps.QAClient, deps.Sanitizer, collector)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())
		r.Post("/api/signup", authHandler.Signup)
		r.Post("/api/login", authHandler.Login)
	})

	r.Get("/api/auth/session", authHandler.Session)

	if cookieTransport {
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
	}

	// --- セッション操作ルート ---
	// ハンドラー自身がセッションを1回だけ検証する。ミドルウェアスタック: CSRF(Cookie時のみ)
	r.Group(func(r chi.Router) {
		if cookieTransport {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		}

		r.Post("/api/auth/refresh", authHandler.Refresh)
		r.Post("/api/auth/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF(Cookie時のみ) → AskRateLimit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions, collector))
		if cookieTransport {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		}

		r.With(deps.RateLimiter.AskMiddleware()).Post("/api/ask", askHandler.Ask)
	})

	return r
}
