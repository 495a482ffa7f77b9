package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/ainotes/internal/account"
	"github.com/hitoshi/ainotes/internal/auth"
	"github.com/hitoshi/ainotes/internal/billing"
	"github.com/hitoshi/ainotes/internal/config"
	"github.com/hitoshi/ainotes/internal/database"
	"github.com/hitoshi/ainotes/internal/handler"
	"github.com/hitoshi/ainotes/internal/logger"
	"github.com/hitoshi/ainotes/internal/metrics"
	"github.com/hitoshi/ainotes/internal/middleware"
	"github.com/hitoshi/ainotes/internal/password"
	"github.com/hitoshi/ainotes/internal/repository"
	"github.com/hitoshi/ainotes/internal/token"
	"github.com/hitoshi/ainotes/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// cleanupInterval はWebhookイベント記録のクリーンアップ間隔。
const cleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. .env で指定されたログレベルを反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store", cfg.StoreDriver),
		slog.Bool("billing_enabled", cfg.BillingEnabled()),
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

// stores は設定に応じて選択した永続化の実装をまとめたもの。
type stores struct {
	users  repository.UserRepository
	subs   repository.SubscriptionRepository
	events repository.WebhookEventRepository
	health handler.HealthChecker
	close  func() error
}

// openStores はSTORE_DRIVERに応じてストアを開く。
// postgresの場合は接続確認まで行う。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &stores{
			users:  mem,
			subs:   mem,
			events: mem,
			close:  func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	return &stores{
		users:  repository.NewPostgresUserRepo(db),
		subs:   repository.NewPostgresSubscriptionRepo(db),
		events: repository.NewPostgresWebhookEventRepo(db),
		health: db,
		close:  db.Close,
	}, nil
}

// server はHTTPハンドラーと停止時に解放するリソース。
type server struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// newServer は全依存関係をワイヤリングしHTTPハンドラーを構築する。
func newServer(cfg *config.Config, st *stores, reg *prometheus.Registry) (*server, error) {
	secrets := cfg.Secrets()
	mc := metrics.NewCollector(reg)

	// 1. 鍵とハッシュ
	issuer, err := token.NewIssuer(token.Config{
		SigningKey: secrets.JWTSigningKey,
		TTL:        cfg.TokenTTL,
		Issuer:     cfg.TokenIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	hasher := password.NewHasher(cfg.BcryptCost)

	// 2. 決済プロバイダー（APIキー未設定時は無効化）
	var provider interface {
		billing.CustomerCreator
		billing.PaymentProvider
	} = billing.Disabled{}
	if cfg.BillingEnabled() {
		provider = billing.NewStripeClient(secrets.StripeAPIKey)
	}
	verifier, err := billing.NewVerifier(secrets.StripeWebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook verifier: %w", err)
	}

	// 3. ドメインサービス
	authService, err := auth.NewService(st.users, hasher, issuer, provider, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}
	accountService := account.NewService(st.users, st.subs, hasher, issuer, mc)
	processor := billing.NewProcessor(st.subs, st.events, mc, slog.Default())
	checkout := billing.NewCheckout(provider, cfg.FrontendURL)

	// 4. ルーター
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))

	deps := &handler.RouterDeps{
		IdentityResolver:  authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		Logger:            slog.Default(),
		Metrics:           mc,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     st.health,

		Cookie: handler.NewCookieConfig(cfg.CookieDomain, cfg.CookieSecure, issuer.TTL()),

		AuthService:    authService,
		AccountService: accountService,

		CheckoutService:     checkout,
		WebhookVerifier:     verifier,
		WebhookProcessor:    processor,
		WebhookMaxBodyBytes: cfg.WebhookMaxBodyBytes,
	}

	return &server{handler: handler.NewRouter(deps), rateLimiter: rl}, nil
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	st, err := openStores(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := newServer(cfg, st, reg)
	if err != nil {
		return err
	}
	defer srv.rateLimiter.Stop()

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// Webhookイベント記録のクリーンアップジョブを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.StoreDriver == config.StoreDriverMemory {
		return errors.New("worker requires STORE_DRIVER=postgres")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	job := cleanup.NewCleanupJob(st.events, slog.Default(), nil)
	if cfg.WebhookRetention > 0 {
		job.RetentionDays = cfg.WebhookRetention
	}

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cleanupInterval),
		slog.Int("retention_days", job.RetentionDays),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Info("in-memory store selected; no migrations to run")
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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
