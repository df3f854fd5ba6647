package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/audit"
	"github.com/hitoshi/mjeti360/internal/auth"
	"github.com/hitoshi/mjeti360/internal/billing"
	"github.com/hitoshi/mjeti360/internal/config"
	"github.com/hitoshi/mjeti360/internal/database"
	"github.com/hitoshi/mjeti360/internal/email"
	"github.com/hitoshi/mjeti360/internal/fleet"
	"github.com/hitoshi/mjeti360/internal/handler"
	"github.com/hitoshi/mjeti360/internal/logger"
	"github.com/hitoshi/mjeti360/internal/metrics"
	"github.com/hitoshi/mjeti360/internal/middleware"
	"github.com/hitoshi/mjeti360/internal/repository"
	"github.com/hitoshi/mjeti360/internal/security"
	"github.com/hitoshi/mjeti360/internal/team"
	"github.com/hitoshi/mjeti360/internal/user"
	"github.com/hitoshi/mjeti360/internal/worker/cleanup"
)

// billingClientTimeout は課金プロバイダー呼び出しのタイムアウト。
const billingClientTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	rootCmd := NewRootCommand(w)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// start は設定を読み込んでから指定されたモードで起動する。
func start(w io.Writer, cmd Command) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	teamRepo := repository.NewPostgresTeamRepo(db)
	memberRepo := repository.NewPostgresMemberRepo(db)
	invitationRepo := repository.NewPostgresInvitationRepo(db)
	resetRepo := repository.NewPostgresPasswordResetRepo(db)
	activityRepo := repository.NewPostgresActivityRepo(db)
	vehicleRepo := repository.NewPostgresVehicleRepo(db)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. ユーザーキャッシュ（REDIS_URL未設定時はプロセス内）
	identityCache, closeCache, err := newIdentityCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	// 5. セッションと認証ユーザーの解決
	codec := auth.NewTokenCodec([]byte(cfg.AuthSecret), nil)
	sessions := auth.NewSessionStore(codec, auth.SessionConfig{
		TTL:    cfg.SessionTTL,
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	})
	resolver := auth.NewResolver(codec, userRepo, identityCache, auth.ResolverConfig{
		CacheTTL: cfg.IdentityCacheTTL,
		Metrics:  collector,
	})

	// 6. メール送信
	transport, err := newMailTransport(ctx, cfg)
	if err != nil {
		return err
	}
	mailer, err := email.NewSender(transport, cfg.BaseURL, collector)
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}

	// 7. 課金
	checkout, err := newCheckout(cfg)
	if err != nil {
		return err
	}
	billingService := billing.NewService(checkout, teamRepo, memberRepo)

	// 8. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()
	auditLogger := audit.NewLogger(activityRepo, collector)
	userService := user.NewService(user.Dependencies{
		Users:       userRepo,
		Teams:       teamRepo,
		Members:     memberRepo,
		Invitations: invitationRepo,
		ResetTokens: resetRepo,
		Audit:       auditLogger,
		Hasher:      auth.NewPasswordHasher(auth.DefaultBcryptCost),
		Identity:    resolver,
		Checkout:    billingService,
		Mailer:      mailer,
		Sanitizer:   sanitizer,
		ResetTTL:    cfg.PasswordResetTTL,
	})
	teamService := team.NewService(teamRepo, memberRepo, invitationRepo, auditLogger, mailer, sanitizer)
	fleetService := fleet.NewService(vehicleRepo, memberRepo, auditLogger, sanitizer)

	// 9. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:          slog.Default(),
		SessionVerifier: sessions,
		Gatekeeper: middleware.GatekeeperConfig{
			RefreshThreshold: cfg.SessionRefreshThreshold,
			Metrics:          collector,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		HealthChecker: db,
		Gatherer:      registry,
		Metrics:       collector,

		Gate:     action.NewGate(resolver),
		Sessions: handler.CookieSessions(sessions),

		AuthService:    userService,
		AccountService: userService,
		UserActivity:   auditLogger,
		TeamService:    teamService,
		FleetService:   fleetService,

		BillingService:       billingService,
		BillingWebhookSecret: cfg.BillingWebhookSecret,
	})

	// 10. HTTPサーバーの起動（TLS終端はリバースプロキシで行うためh2cで受ける）
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newIdentityCache はユーザーキャッシュを生成する。
// REDIS_URLが設定されていればRedis、なければプロセス内キャッシュを使う。
// プロセス内キャッシュの期限切れエントリはctxが終了するまで定期的に削除する。
func newIdentityCache(ctx context.Context, cfg *config.Config) (auth.IdentityCache, func(), error) {
	if cfg.RedisURL == "" {
		interval := cfg.IdentityCacheTTL
		if interval <= 0 {
			interval = auth.DefaultIdentityCacheTTL
		}
		cache := auth.NewMemoryIdentityCache(nil)
		go cleanup.PurgeCache(ctx, cache, interval, slog.Default())
		return cache, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("identity cache backed by redis", slog.String("addr", opts.Addr))
	return auth.NewRedisIdentityCache(client, nil), func() { client.Close() }, nil
}

// newMailTransport はメールの配送手段を返す。
// SESの認証情報がない場合はメールを送らずログに記録する。
func newMailTransport(ctx context.Context, cfg *config.Config) (email.Transport, error) {
	if !cfg.EmailEnabled() {
		slog.Warn("email delivery disabled, messages will be logged only")
		return email.NewLogTransport(slog.Default()), nil
	}

	transport, err := email.NewSESTransport(ctx, cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.EmailFrom)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SES transport: %w", err)
	}
	return transport, nil
}

// newCheckout は課金プロバイダーを返す。STRIPE_SECRET_KEY未設定時は課金を無効にする。
func newCheckout(cfg *config.Config) (billing.CheckoutCreator, error) {
	if cfg.StripeSecretKey == "" {
		slog.Warn("billing disabled, STRIPE_SECRET_KEY is not set")
		return billing.DisabledCheckout{}, nil
	}
	if cfg.StripeAPIURL != "" {
		if err := security.ValidateEndpoint(cfg.StripeAPIURL); err != nil {
			return nil, fmt.Errorf("invalid STRIPE_API_URL: %w", err)
		}
	}

	return billing.NewStripeCheckout(billing.StripeConfig{
		SecretKey:  cfg.StripeSecretKey,
		BaseURL:    cfg.BaseURL,
		APIURL:     cfg.StripeAPIURL,
		HTTPClient: security.NewOutboundClient(billingClientTimeout),
	}), nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れデータのクリーンアップジョブを実行する。
// /metricsと/healthはSERVER_PORTで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	registry := prometheus.NewRegistry()
	job := cleanup.NewCleanupJob(
		repository.NewPostgresPasswordResetRepo(db),
		slog.Default(),
		metrics.NewCollector(registry),
	)
	if cfg.CleanupInterval > 0 {
		job.Interval = cfg.CleanupInterval
	}

	// 3. メトリクスとヘルスチェックの公開
	mux := metrics.SetupMetricsRoute(registry)
	mux.Handle("/health", handler.NewHealthHandler(db))
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", job.Interval),
		slog.String("metrics_addr", server.Addr),
	)

	// 4. キャンセルされるまでブロックする
	job.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("worker metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
