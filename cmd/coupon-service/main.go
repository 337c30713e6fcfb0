package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Cheertaboi/storefront-discount-service/internal/api"
	"github.com/Cheertaboi/storefront-discount-service/internal/cache"
	"github.com/Cheertaboi/storefront-discount-service/internal/config"
	"github.com/Cheertaboi/storefront-discount-service/internal/discount"
	"github.com/Cheertaboi/storefront-discount-service/internal/events"
	"github.com/Cheertaboi/storefront-discount-service/internal/observability"
	"github.com/Cheertaboi/storefront-discount-service/internal/repository"
	"github.com/Cheertaboi/storefront-discount-service/internal/service"
	"github.com/Cheertaboi/storefront-discount-service/pkg/db"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	conn, err := db.NewPostgresConnection(cfg.DB)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer conn.Close()

	if cfg.DBAutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.ApplySchema(ctx, conn)
		cancel()
		if err != nil {
			logger.Fatal("apply schema", zap.Error(err))
		}
		logger.Info("schema applied")
	}

	resolver := discount.NewResolver(
		discount.WithStrategy(cfg.StackingStrategy),
		discount.WithMaxExhaustiveCandidates(cfg.ExhaustiveMaxCandidates),
	)
	deps := service.Deps{
		Discounts: repository.NewDiscountRepo(conn),
		Usage:     repository.NewUsageRepo(conn),
		Resolver:  resolver,
		Cache:     cache.NewDiscountCache(cfg.CacheTTL, time.Now),
		Logger:    logger,
	}

	// events are optional; without a broker redemptions still commit
	if cfg.EventsEnabled() {
		pool, err := events.NewChannelPool(cfg.RabbitMQURL, cfg.RabbitMQQueue, cfg.ChannelPoolSize, logger)
		if err != nil {
			logger.Fatal("rabbitmq channel pool", zap.Error(err))
		}
		defer pool.Close()
		deps.Publisher = events.NewPublisher(pool, cfg.RabbitMQQueue)
		logger.Info("redemption events enabled", zap.String("queue", cfg.RabbitMQQueue))
	}

	svc, err := service.NewDiscountService(deps)
	if err != nil {
		logger.Fatal("init discount service", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(svc, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("http server shutdown", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	logger.Info("starting discount service",
		zap.String("addr", srv.Addr),
		zap.String("env", cfg.Env),
		zap.String("stacking_strategy", string(resolver.Strategy())),
		zap.Int("exhaustive_limit", resolver.ExhaustiveLimit()),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("listen", zap.Error(err))
	}

	<-idleConnsClosed
	logger.Info("server stopped")
}
