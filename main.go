package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sales_api/api"
	"sales_api/internal/clients"
	"sales_api/internal/config"
	"sales_api/internal/events"
	"sales_api/internal/idempotency"
	"sales_api/internal/ledger"
	"sales_api/internal/metrics"
	"sales_api/internal/observability"
	"sales_api/internal/sales"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sales api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupTracingSDK(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			logger.Warn("failed to shut down tracing", zap.Error(err))
		}
	}()

	var storage sales.Storage = sales.NewLocalStorage()
	if cfg.DatabaseURL != "" {
		pg, err := ledger.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		storage = pg
		logger.Info("using postgres ledger")
	}

	var keys idempotency.Store = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		keys = idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL)
		logger.Info("using redis idempotency keys", zap.String("addr", cfg.RedisAddr))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(reg)

	users := clients.NewUserClient(cfg.UsersAPIURL, cfg.RequestTimeout)
	defer users.Close()
	products := clients.NewProductClient(cfg.ProductsAPIURL, cfg.RequestTimeout)
	defer products.Close()

	opts := []sales.Option{
		sales.WithRecorder(serverMetrics),
		sales.WithStrictStockUpdates(cfg.StrictStockUpdates),
	}
	if cfg.KafkaBroker != "" {
		publisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBroker, cfg.KafkaTopic), logger)
		defer publisher.Close()
		opts = append(opts, sales.WithPublisher(publisher))
		logger.Info("publishing sale events", zap.String("broker", cfg.KafkaBroker), zap.String("topic", cfg.KafkaTopic))
	}
	salesService := sales.NewService(storage, users, products, logger, opts...)

	router := gin.New()
	router.Use(gin.Recovery())
	api.InitRoutes(router, api.Deps{
		Sales:       salesService,
		Idempotency: keys,
		Metrics:     serverMetrics,
		Gatherer:    reg,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("sales api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error trying to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
