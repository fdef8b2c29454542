package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/scalaya/internal/middleware"
)

// HealthChecker は依存先の疎通確認を行う。*sql.DB が実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.SessionAuthenticator
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder // nil の場合はステータスを記録しない

	// ヘルスチェック・メトリクス（nil の場合は省略）
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー
	UserService UserServiceInterface

	// 購入者・出品者登録
	RegistrationService RegistrationServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → SecurityHeaders → Logging → Metrics → CORS
//
// 状態変更を伴う /api/auth/* と /api/register/* にはCSRF検証、
// ログインと登録にはIP単位のレート制限を適用する。
// /api/me はセッション必須で、ユーザー単位のレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRFConfig.CookieSecure))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	regHandler := NewRegistrationHandler(deps.RegistrationService)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)
	authLimit := deps.RateLimiter.AuthMiddleware()

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/csrf", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
		r.Get("/session", authHandler.Session)
		r.Get("/providers", authHandler.Providers)

		// OAuthフロー（Google未設定の場合は404）
		r.Get("/google/login", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)

		r.Group(func(r chi.Router) {
			r.Use(csrf)
			r.With(authLimit).Post("/register", authHandler.Register)
			r.With(authLimit).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
		})
	})

	r.Route("/api/register", func(r chi.Router) {
		r.Use(csrf)
		r.Use(authLimit)
		r.Post("/customer", regHandler.RegisterCustomer)
		r.Post("/seller", regHandler.RegisterSeller)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/me", userHandler.Me)
	})

	return r
}

// newHealthHandler はヘルスチェックのハンドラーを返す。
// checker が設定されていれば疎通を確認し、失敗時は503を返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Warn("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
