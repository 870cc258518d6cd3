package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-checkout/internal/api"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/api/handler"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/api/middleware"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/api/router"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/application"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/config"
	mongoinfra "github.com/sanosuguru/go-event-ticket-checkout/internal/infrastructure/mongo"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-event-ticket-checkout/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/clock"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/logger"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/pkg/tracing"
	"github.com/sanosuguru/go-event-ticket-checkout/internal/worker"
)

func main() {
	cfg := config.Load()

	logger.Set(logger.NewLogger(cfg.Env, cfg.LogLevel))
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// トレース
	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		log.Fatal("トレース初期化エラー", zap.Error(err))
	}

	// データベース
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("データベース接続エラー", zap.Error(err))
	}
	defer db.Close()

	version, err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath)
	if err != nil {
		log.Fatal("マイグレーションエラー", zap.Error(err))
	}
	log.Info("データベース接続完了", zap.Uint("schema_version", version))

	m := metrics.Init()
	checks := []handler.HealthCheck{
		{Name: "database", Ping: func(ctx context.Context) error { return postgres.Ping(ctx, db) }},
	}

	// Redis（任意）
	var (
		scheduleLock *redisinfra.ScheduleLocker
		limiter      middleware.Limiter
	)
	if cfg.Redis.Enabled() {
		rdb := redisinfra.NewClient(&cfg.Redis)
		defer rdb.Close()
		if err := redisinfra.Ping(ctx, rdb); err != nil {
			log.Warn("Redis接続に失敗したため分散ロックとレート制限を無効化", zap.Error(err))
		} else {
			scheduleLock = redisinfra.NewScheduleLocker(rdb, m)
			limiter = redisinfra.NewRateLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Period)
			checks = append(checks, handler.HealthCheck{
				Name: "redis",
				Ping: func(ctx context.Context) error { return redisinfra.Ping(ctx, rdb) },
			})
			log.Info("Redis接続完了")
		}
	}

	// リポジトリ
	txManager := postgres.NewTxManager(db)
	eventRepo := postgres.NewEventRepository(db)
	holdRepo := postgres.NewSeatHoldRepository(db)
	ticketRepo := postgres.NewTicketRepository(db)
	userRepo := postgres.NewUserRepository(db)
	locker := postgres.NewSeatLocker()
	clk := clock.Real{}

	// サービス
	checker := application.NewAvailabilityChecker(holdRepo, ticketRepo, clk)
	holdService := application.NewSeatHoldService(txManager, holdRepo, locker, eventRepo, checker, clk, cfg.Checkout.HoldWindow).
		WithMetrics(m)
	orderService := application.NewOrderService(txManager, application.OrderRepos{
		Events:     eventRepo,
		Holds:      holdRepo,
		Locker:     locker,
		Orders:     postgres.NewOrderRepository(db),
		Tickets:    ticketRepo,
		Promotions: postgres.NewPromotionRepository(db),
		Users:      userRepo,
	}, checker, clk, cfg.Checkout.PaymentWindow, cfg.Checkout.MaxItemsPerOrder).
		WithMetrics(m)
	ticketService := application.NewTicketService(txManager, ticketRepo, eventRepo, userRepo, clk)

	if scheduleLock != nil {
		holdService.WithScheduleLocker(scheduleLock)
	}

	// 注文イベント通知（任意）
	if cfg.RabbitMQ.URL != "" {
		publisher, conn, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Warn("RabbitMQ接続に失敗したため通知を無効化", zap.Error(err))
		} else {
			defer conn.Close()
			orderService.WithNotifier(publisher)
			log.Info("RabbitMQ接続完了", zap.String("exchange", cfg.RabbitMQ.Exchange))
		}
	}

	// 監査ログ（任意）
	if cfg.Mongo.URI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := mongoinfra.Connect(connectCtx, cfg.Mongo.URI)
		cancel()
		if err != nil {
			log.Warn("MongoDB接続に失敗したため監査ログを無効化", zap.Error(err))
		} else {
			defer client.Disconnect(context.Background())
			audit := mongoinfra.NewAuditLogger(client.Database(cfg.Mongo.Database))
			holdService.WithAudit(audit)
			orderService.WithAudit(audit)
			log.Info("MongoDB接続完了", zap.String("database", cfg.Mongo.Database))
		}
	}

	// Echo インスタンス作成
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	// ミドルウェア設定
	middleware.SetupMiddleware(e, cfg.Server.AllowOrigins...)
	e.Use(middleware.PrometheusMiddleware(m))

	// メトリクス
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics.User, cfg.Metrics.Password))

	router.RegisterRoutes(e, router.Handlers{
		Health:      handler.NewHealthHandler(checks...),
		SeatHolding: handler.NewSeatHoldingHandler(holdService, cfg.Server.CookieSecure),
		Order:       handler.NewOrderHandler(orderService, cfg.Server.CookieSecure),
		Payment:     handler.NewPaymentHandler(orderService),
		Ticket:      handler.NewTicketHandler(ticketService),
	}, limiter)

	// 期限切れ注文の掃除
	sweeper := worker.NewCheckoutSweeper(orderService, holdService,
		cfg.Checkout.SweepInterval, cfg.Checkout.SweepBatchSize, cfg.Checkout.HoldRetention)
	go sweeper.Start(ctx)

	// サーバー起動
	go func() {
		log.Info("サーバー起動", zap.String("port", cfg.Server.Port))
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && err != http.ErrServerClosed {
			log.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	<-ctx.Done()
	log.Info("サーバーをシャットダウンしています...")

	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("サーバーシャットダウンエラー", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("トレース終了エラー", zap.Error(err))
	}

	log.Info("サーバーが正常にシャットダウンしました")
}
