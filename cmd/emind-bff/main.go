// Package main запускает HTTP-сервер BFF-сервиса E-mind.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/emind-bff/internal/config"
	"github.com/mmeshcher/emind-bff/internal/handler"
	"github.com/mmeshcher/emind-bff/internal/metrics"
	"github.com/mmeshcher/emind-bff/internal/middleware"
	"github.com/mmeshcher/emind-bff/internal/payments"
	"github.com/mmeshcher/emind-bff/internal/repository"
	"github.com/mmeshcher/emind-bff/internal/service"
	"github.com/mmeshcher/emind-bff/internal/session"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	client := payments.NewClient(cfg.APIBaseURL,
		payments.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		payments.WithMetrics(m),
	)

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(m),
	}

	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		opts = append(opts, service.WithAudit(repo))
	} else {
		sugar.Info("DATABASE_URI is empty, verification audit disabled")
	}

	acc := session.Context{}
	svc := service.NewService(service.NewPaymentsFactory(client, acc), acc, opts...)
	defer svc.Close()

	var store middleware.SessionLoader
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		store = session.NewRedisStore(rdb)
	}

	h := handler.NewHandler(svc, logger, middleware.NewSessionMiddleware(store),
		handler.WithGatherer(reg),
		handler.WithCarouselInterval(cfg.CarouselInterval),
		handler.WithAllowedOrigins(cfg.AllowedOrigins),
	)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting emind bff", "addr", cfg.RunAddress, "api", cfg.APIBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
