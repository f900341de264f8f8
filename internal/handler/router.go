package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/todaylaw/internal/metrics"
	"github.com/hitoshi/todaylaw/internal/middleware"
	"github.com/hitoshi/todaylaw/internal/session"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	Profiles    ProfileFinder
	Verifier    session.Verifier

	// 観測
	Logger   *slog.Logger
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer // nilの場合は/metricsを公開しない
	Health   HealthChecker

	CORSAllowedOrigin string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// /login-check にはSessionミドルウェア、/oauth/logout にはCSRFミドルウェアを追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Profiles, collector, deps.AuthConfig)
	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.AuthConfig.CookieSecure,
		CookieDomain: deps.AuthConfig.CookieDomain,
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 運用 ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.Health))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- OAuthフロー ---
	r.Route("/oauth", func(r chi.Router) {
		r.Get("/google", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)

		r.With(middleware.NewCSRFMiddleware(csrfConfig)).Post("/logout", authHandler.Logout)
	})
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	// --- セッション確認 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(middleware.SessionConfig{
			CookieName: deps.AuthConfig.CookieName,
			Verifier:   deps.Verifier,
			Recorder:   collector,
			OnFailure:  http.HandlerFunc(authHandler.RedirectHome),
		}))
		r.Get("/login-check", authHandler.LoginCheck)
	})

	return r
}
