package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/storeadmin/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通を確認する依存先。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// 認証
	Sessions   SessionController
	AuthConfig AuthHandlerConfig

	// ユーザー一覧
	Directory     DirectoryService
	Notifications NotificationSource

	// 運用（nilの場合はルートを登録しない）
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → SecurityHeaders → CORS → CSRF
//	  /admin/api: AdminGuard → RateLimit(General)
//	  POST /admin/login: RateLimit(Login)
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.Sessions, deps.AuthConfig)
	directoryHandler := NewDirectoryHandler(deps.Directory)
	notificationHandler := NewNotificationHandler(deps.Notifications)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// --- ログイン不要のルート ---
		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
		r.Get("/login", authHandler.LoginPage)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/session", authHandler.Session)

		// --- 管理者のみのルート ---
		// ミドルウェアスタック: AdminGuard → RateLimit(General)
		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.NewAdminGuard(deps.Sessions, middleware.AdminGuardConfig{
				AdminEmail: deps.AuthConfig.AdminEmail,
				LoginPath:  "/admin/login",
			}))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/users", directoryHandler.ListUsers)
			r.Delete("/users/{id}", directoryHandler.DeleteUser)
			r.Post("/session/refresh", authHandler.Refresh)
			r.Get("/notifications", notificationHandler.Drain)
		})
	})

	return r
}

// healthHandler はプロセスの稼働確認を返す。
// データストアが設定されている場合は疎通も確認し、失敗時は503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
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
