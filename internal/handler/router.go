package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/metrics"
	"github.com/hitoshi/mjeti360/internal/middleware"
)

// RouterMetrics はルーターが記録するメトリクス。metrics.Collectorが実装する。
type RouterMetrics interface {
	ActionMetrics
	middleware.HTTPMetrics
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionVerifier   middleware.SessionVerifier
	Gatekeeper        middleware.GatekeeperConfig
	CSRF              middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer
	Metrics       RouterMetrics

	// アクション
	Gate     *action.Gate
	Sessions SessionBinder

	// 認証・アカウント
	AuthService    AuthServiceInterface
	AccountService AccountServiceInterface
	UserActivity   UserActivityLister

	// チーム
	TeamService TeamServiceInterface

	// 車両
	FleetService FleetServiceInterface

	// 課金
	BillingService       BillingServiceInterface
	BillingWebhookSecret string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → (HTTPMetrics) → SecurityHeaders → CORS → Gatekeeper
//
// 状態を変更するルートはグループ単位でCSRF → RateLimitを適用する。
// サブスクリプション更新は共有シークレットで保護するためCSRFの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewHTTPMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRF.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewGatekeeperMiddleware(deps.SessionVerifier, deps.Gatekeeper))

	var actionMetrics ActionMetrics
	if deps.Metrics != nil {
		actionMetrics = deps.Metrics
	}
	runner := NewActionRunner(deps.Gate, deps.Sessions, actionMetrics)

	authHandler := NewAuthHandler(deps.AuthService, runner)
	userHandler := NewUserHandler(deps.AccountService, deps.UserActivity, runner)
	teamHandler := NewTeamHandler(deps.TeamService, runner)
	vehicleHandler := NewVehicleHandler(deps.FleetService, runner)
	billingHandler := NewBillingHandler(deps.BillingService, deps.BillingWebhookSecret, runner)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

	// --- 課金プロバイダーからの更新（共有シークレット） ---
	r.With(deps.RateLimiter.GeneralMiddleware()).
		Post("/api/billing/subscription", billingHandler.UpdateSubscription)

	// --- CSRF保護ルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		// 認証（認証用の厳しいレート制限）
		r.Route("/api/auth", func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/sign-in", authHandler.SignIn)
			r.Post("/sign-up", authHandler.SignUp)
			r.Post("/sign-out", authHandler.SignOut)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		// ダッシュボードAPI（ゲートキーパーでセッション必須）
		r.Route("/dashboard/api", func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())

			// ユーザー・アカウント
			r.Get("/user", userHandler.CurrentUser)
			r.Get("/activity", userHandler.Activity)
			r.Post("/account", userHandler.UpdateAccount)
			r.Post("/account/password", userHandler.UpdatePassword)
			r.Post("/account/delete", userHandler.DeleteAccount)

			// チーム
			r.Get("/team", teamHandler.GetTeam)
			r.Get("/team/activity", teamHandler.Activity)
			r.Post("/team/name", teamHandler.UpdateName)
			r.Post("/team/members/remove", teamHandler.RemoveMember)
			r.Post("/team/invitations", teamHandler.Invite)

			// 課金
			r.Post("/billing/checkout", billingHandler.Checkout)

			// 車両
			r.Route("/vehicles", func(r chi.Router) {
				r.Get("/", vehicleHandler.ListVehicles)
				r.Post("/", vehicleHandler.AddVehicle)
				r.Put("/{id}", vehicleHandler.UpdateVehicle)
				r.Delete("/{id}", vehicleHandler.DeleteVehicle)
			})
		})
	})

	return r
}
