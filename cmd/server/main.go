package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"billine-gateway/internal/clients/billine"
	redisclient "billine-gateway/internal/clients/redis"
	"billine-gateway/internal/config"
	"billine-gateway/internal/handlers/callback"
	"billine-gateway/internal/handlers/health"
	"billine-gateway/internal/middleware"
	auditrepo "billine-gateway/internal/repository/audit"
	"billine-gateway/internal/services/audit"
	"billine-gateway/internal/services/idempotency"
	"billine-gateway/internal/services/metrics"
	"billine-gateway/internal/services/tracing"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer := tracing.NewNoopService()
	if cfg.Tracing.Enabled {
		tracer = tracing.NewService(cfg.Tracing.ServiceName)
	}
	metricsService := metrics.NewService(prometheus.DefaultRegisterer)

	redisClient, err := redisclient.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	healthHandler := health.NewHandler(2*time.Second, logger)
	healthHandler.Register("redis", redisClient)

	var auditService callback.AuditService
	if cfg.Postgres.Enabled() {
		db, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer db.Close()

		healthHandler.Register("postgres", health.CheckerFunc(db.PingContext))
		auditService = audit.NewService(auditrepo.NewRepository(db, logger), metricsService, logger)
	} else {
		logger.Warn("POSTGRES_HOST not set, callback audit trail disabled")
	}

	billineClient := billine.NewClient(cfg.Billine, nil, metricsService, tracer, logger)
	dedupe := idempotency.NewService(redisClient, cfg.Redis.KeyPrefix, cfg.Callback.DedupTTL, logger)
	publisher := redisclient.NewEventPublisher(redisClient, cfg.Callback.Stream, logger)
	callbackHandler := callback.NewHandler(billineClient, dedupe, publisher, auditService, metricsService, tracer, logger)

	allowed, err := middleware.NewCIDRList(cfg.Billine.AllowedCIDRs)
	if err != nil {
		return fmt.Errorf("billine allowed cidrs: %w", err)
	}
	proxies, err := middleware.NewCIDRList(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())
	router.Use(middleware.MetricsMiddleware(metricsService))

	healthHandler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	callbacks := router.Group("/callbacks")
	callbacks.Use(middleware.SourceAllowlistMiddleware(allowed, proxies, logger))
	callbacks.POST("/iframe", callbackHandler.HandleIframeCallback)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("billine gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("billine_base_url", cfg.Billine.BaseURL),
			zap.String("merchant_id", billineClient.MerchantID()),
			zap.Bool("audit_enabled", auditService != nil),
			zap.Int("allowed_cidrs", allowed.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zapCfg.Level = level
	}
	return zapCfg.Build()
}
