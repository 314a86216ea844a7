package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/storeadmin/internal/auth"
	"github.com/hitoshi/storeadmin/internal/config"
	"github.com/hitoshi/storeadmin/internal/database"
	"github.com/hitoshi/storeadmin/internal/directory"
	"github.com/hitoshi/storeadmin/internal/handler"
	"github.com/hitoshi/storeadmin/internal/logger"
	"github.com/hitoshi/storeadmin/internal/metrics"
	"github.com/hitoshi/storeadmin/internal/middleware"
	"github.com/hitoshi/storeadmin/internal/notify"
	"github.com/hitoshi/storeadmin/internal/repository"
	"github.com/hitoshi/storeadmin/internal/session"
	"github.com/hitoshi/storeadmin/internal/user"
	"github.com/hitoshi/storeadmin/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前のエラーもJSONで出力する
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
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
		slog.String("base_url", cfg.BaseURL),
		slog.Bool("session_store_configured", cfg.SessionStoreConfigured()),
	)

	if cmd.RequiresStore() && !cfg.SessionStoreConfigured() {
		return fmt.Errorf("%s requires DATABASE_URL", cmd)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSetPassword:
		return runSetPassword(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// components はserveモードで組み立てた依存関係。
type components struct {
	router      http.Handler
	manager     *session.Manager
	reconciler  *directory.Reconciler
	rateLimiter *middleware.RateLimiter
	dispose     func()
}

// Close は購読とバックグラウンド処理を停止する。
func (c *components) Close() {
	if c.dispose != nil {
		c.dispose()
	}
	c.manager.Close()
	c.rateLimiter.Stop()
}

// wire はserveモードの依存関係を組み立てる。
// dbがnilの場合はSession Store・Directory Storeが未設定の状態で構成する。
func wire(cfg *config.Config, db *sql.DB, broadcaster auth.Broadcaster, reg *prometheus.Registry) *components {
	queue := notify.NewQueue(cfg.NotificationBuffer)
	collector := metrics.NewCollector(reg)

	var (
		store     session.Store
		users     directory.UserLister
		addresses directory.AddressLister
		deleter   directory.UserDeleter
		checker   handler.HealthChecker
	)
	if db != nil {
		userRepo := repository.NewPostgresUserRepo(db)
		sessionRepo := repository.NewPostgresSessionRepo(db)

		store = auth.NewService(
			userRepo,
			repository.NewPostgresCredentialRepo(db),
			sessionRepo,
			broadcaster,
			auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
		)
		users = userRepo
		addresses = repository.NewPostgresAddressRepo(db)
		deleter = user.NewService(userRepo, sessionRepo, cfg.AdminEmail)
		checker = db
	}

	manager := session.NewManager(store, queue, collector)
	reconciler := directory.NewReconciler(
		users, addresses, deleter, manager, queue, collector,
		directory.Config{AdminEmail: cfg.AdminEmail},
	)
	dispose := manager.Subscribe(reconciler.SessionChanged)

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger:   slog.Default(),
		Sessions: manager,
		AuthConfig: handler.AuthHandlerConfig{
			AdminEmail: cfg.AdminEmail,
			Cookie: session.CookieConfig{
				Domain: cfg.CookieDomain,
				Secure: cfg.CookieSecure,
				MaxAge: cfg.SessionMaxAge,
			},
		},
		Directory:      reconciler,
		Notifications:  queue,
		HealthChecker:  checker,
		MetricsHandler: metrics.Handler(reg),
	})

	return &components{
		router:      router,
		manager:     manager,
		reconciler:  reconciler,
		rateLimiter: rateLimiter,
		dispose:     dispose,
	}
}

// openStore はDATABASE_URLが設定されていればDB接続を開く。未設定の場合はnilを返す。
// mustReachがfalseの場合は疎通確認の失敗を警告に留めて接続を返す（lib/pqは次のクエリで再接続する）。
func openStore(ctx context.Context, cfg *config.Config, mustReach bool) (*sql.DB, error) {
	if !cfg.SessionStoreConfigured() {
		slog.Warn("DATABASE_URL is not set, session and directory stores are not configured")
		return nil, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		if mustReach {
			db.Close()
			return nil, err
		}
		slog.Warn("database unreachable at startup, serving signed out until it recovers",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
			slog.String("error", err.Error()),
		)
		return db, nil
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// openBroadcaster はREDIS_URLが設定されていればRedis経由、なければプロセス内のBroadcasterを返す。
// 返すクライアントは呼び出し側でCloseする。
func openBroadcaster(ctx context.Context, cfg *config.Config) (auth.Broadcaster, *redis.Client, error) {
	if cfg.RedisURL == "" {
		return auth.NewLocalBroadcaster(), nil, nil
	}

	client, err := database.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("redis connection established", slog.String("channel", cfg.SessionChannel))
	return auth.NewRedisBroadcaster(client, cfg.SessionChannel), client, nil
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
// DBに到達できなくても起動し、Session Managerは未ログイン状態で準備完了となる。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := openStore(ctx, cfg, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	broadcaster, redisClient, err := openBroadcaster(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := wire(cfg, db, broadcaster, reg)
	defer c.Close()

	// 既存セッションの復元中はAccess Guardが503を返す
	go c.manager.Initialize(ctx)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      c.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
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

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除ジョブをSESSION_CLEANUP_INTERVAL毎に実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openStore(ctx, cfg, true)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	job := cleanup.NewCleanupJob(db, slog.Default())
	if cfg.SessionRetentionDays > 0 {
		job.RetentionDays = cfg.SessionRetentionDays
	}

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
		slog.Int("retention_days", job.RetentionDays),
	)

	job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, applied, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("applied", applied),
	)
	return nil
}

// runSetPassword はADMIN_EMAILのユーザーにADMIN_PASSWORDを設定する。
// ユーザーが存在しない場合は作成する。
func runSetPassword(ctx context.Context, cfg *config.Config) error {
	if cfg.AdminPassword == "" {
		return errors.New("set-password requires ADMIN_PASSWORD")
	}

	db, err := openStore(ctx, cfg, true)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	svc := auth.NewService(
		repository.NewPostgresUserRepo(db),
		repository.NewPostgresCredentialRepo(db),
		repository.NewPostgresSessionRepo(db),
		auth.NewLocalBroadcaster(),
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	if err := svc.SetPassword(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}

	slog.Info("administrator password updated", slog.String("email", cfg.AdminEmail))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードとクエリを伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	u.RawQuery = ""
	return u.Redacted()
}
