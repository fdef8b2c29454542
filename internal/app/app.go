package app

import (
	"context"
	"database/sql"
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

	"github.com/hitoshi/scalaya/internal/adapter/remote"
	"github.com/hitoshi/scalaya/internal/apiclient"
	"github.com/hitoshi/scalaya/internal/auth"
	"github.com/hitoshi/scalaya/internal/config"
	"github.com/hitoshi/scalaya/internal/customer"
	"github.com/hitoshi/scalaya/internal/database"
	"github.com/hitoshi/scalaya/internal/handler"
	"github.com/hitoshi/scalaya/internal/logger"
	"github.com/hitoshi/scalaya/internal/metrics"
	"github.com/hitoshi/scalaya/internal/middleware"
	"github.com/hitoshi/scalaya/internal/security"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
		slog.String("auth_backend", cfg.AuthBackend),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続（postgresバックエンドの場合のみ）
	var db *sql.DB
	var healthChecker handler.HealthChecker
	if cfg.AuthBackend == config.BackendPostgres {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := database.Ping(ctx, db, 5*time.Second); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		healthChecker = db
		slog.Info("database connection established")
	}

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. バックエンドAPIクライアント
	httpClient, err := newOutboundClient(cfg)
	if err != nil {
		return err
	}
	apiClient := apiclient.NewClient(httpClient, slog.Default(), cfg.APIURL, cfg.APITimeout)
	apiClient.SetRecorder(collector)

	endpoints := remote.DefaultEndpoints()
	if cfg.APILoginEndpoint != "" {
		endpoints.Login = cfg.APILoginEndpoint
	}

	kind, err := auth.ParseBackendKind(cfg.AuthBackend)
	if err != nil {
		return err
	}
	backends, err := auth.NewBackendFactory(kind, auth.BackendDeps{
		Remote: remote.Config{
			Client:    apiClient,
			Endpoints: endpoints,
			Sanitizer: security.NewTextSanitizer(),
			Logger:    slog.Default(),
		},
		DB: db,
	})
	if err != nil {
		return fmt.Errorf("failed to create auth backend: %w", err)
	}

	// 4. セッション
	revoker, closeRevoker, err := newRevoker(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer closeRevoker()

	sessions, err := auth.NewSessions(auth.SessionConfig{
		Secret: []byte(cfg.SessionSecret),
		MaxAge: time.Duration(cfg.SessionMaxAge) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to configure sessions: %w", err)
	}

	var oauthProvider auth.OAuthProvider
	if cfg.GoogleEnabled() {
		oauthProvider = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	}

	authService := auth.NewService(auth.ServiceDeps{
		Backends: backends,
		Sessions: sessions,
		Revoker:  revoker,
		OAuth:    oauthProvider,
		Recorder: collector,
		Logger:   slog.Default(),
	})

	// 5. 購入者・出品者登録
	customerClient := customer.NewClient(httpClient, slog.Default(), cfg.CustomerAPIBaseURL, cfg.APITimeout)
	customerClient.SetRecorder(collector)

	// 6. ルーターの構築（config の値は req/min 単位）
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			Secret:       []byte(cfg.SessionSecret),
		},
		RateLimiter:    rateLimiter,
		Logger:         slog.Default(),
		StatusRecorder: collector,
		HealthChecker:  healthChecker,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:      cfg.BaseURL,
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		UserService:         authService,
		RegistrationService: customerClient,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
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
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
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

// newOutboundClient は外部API向けのHTTPクライアントを返す。
// API_SAFE_CLIENT が有効な場合は接続先URLを検証し、内部ネットワーク宛てを拒否するクライアントを使う。
func newOutboundClient(cfg *config.Config) (*http.Client, error) {
	if !cfg.APISafeClient {
		return &http.Client{Timeout: cfg.APITimeout}, nil
	}

	guard := security.NewOutboundGuard()
	if cfg.AuthBackend == config.BackendRemote {
		if err := guard.ValidateURL(cfg.APIURL); err != nil {
			return nil, fmt.Errorf("invalid API_URL: %w", err)
		}
	}
	if cfg.CustomerAPIBaseURL != "" {
		if err := guard.ValidateURL(cfg.CustomerAPIBaseURL); err != nil {
			return nil, fmt.Errorf("invalid CUSTOMER_API_BASE_URL: %w", err)
		}
	}
	return guard.NewSafeClient(cfg.APITimeout), nil
}

// newRevoker はREDIS_URLが設定されていればRedis、未設定ならプロセス内の失効管理を返す。
func newRevoker(ctx context.Context, redisURL string) (auth.Revoker, func(), error) {
	if redisURL == "" {
		return auth.NewMemoryRevoker(), func() {}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established", slog.String("addr", opts.Addr))
	return auth.NewRedisRevoker(client), func() { client.Close() }, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL, slog.Default()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
