package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/ainotes/internal/metrics"
	"github.com/hitoshi/ainotes/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	IdentityResolver  middleware.IdentityResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker

	Cookie CookieConfig

	// 認証
	AuthService AuthServiceInterface

	// アカウント
	AccountService AccountServiceInterface

	// 決済
	CheckoutService     CheckoutServiceInterface
	WebhookVerifier     WebhookVerifier
	WebhookProcessor    WebhookProcessor
	WebhookMaxBodyBytes int64
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (ルートごと)
//
// 認証が必要なルートは IdentityMiddleware → RateLimit(General) を通す。
// /auth/login と /auth/create は接続元アドレスごとのレート制限を通す。
// X-Forwarded-For 等のクライアント申告ヘッダーは制限キーに使わない。
// Webhookは署名で認証するためトークンを要求しない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookie)
	accountHandler := NewAccountHandler(deps.AccountService, deps.Cookie)
	billingHandler := NewBillingHandler(deps.CheckoutService, deps.WebhookVerifier, deps.WebhookProcessor, deps.WebhookMaxBodyBytes)

	// --- 認証不要のルート ---

	r.Get("/health", Health(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/create", authHandler.Create)
		r.Post("/logout", authHandler.Logout)
	})

	r.Post("/stripe/webhook", billingHandler.Webhook)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Identity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.IdentityResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/account", func(r chi.Router) {
			r.Post("/change-password", accountHandler.ChangePassword)
			r.Post("/delete", accountHandler.Delete)
			r.Get("/user-details", accountHandler.UserDetails)
			r.Get("/purchase-history", accountHandler.PurchaseHistory)
		})

		r.Post("/stripe/create-checkout-session", billingHandler.CreateCheckoutSession)
		r.Post("/stripe/create-portal-session", billingHandler.CreatePortalSession)
	})

	return r
}
