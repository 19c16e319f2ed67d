package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockpos/internal/config"
	"stockpos/internal/infra"
	"stockpos/internal/repository"
	"stockpos/internal/router"
	"stockpos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect to database")
	}
	if cfg.AutoMigrate {
		if err := infra.RunMigrations(db); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	mailer := infra.NewMailer(cfg)
	mailCB := infra.NewBreaker(infra.DefaultBreakerConfig())

	// Background jobs need Redis; without it sales still work and low stock
	// is only visible through GET /v1/products/low-stock.
	if rdb != nil {
		recipients := cfg.AlertRecipients()
		if !mailer.Configured() {
			log.Warn().Msg("SMTP_HOST not set, stock alerts will be dropped")
			recipients = nil
		}
		alertWorker := worker.NewStockAlertWorker(mailer, mailCB, recipients)
		worker.StartWorkerPool(ctx, rdb, map[string]worker.Handler{
			worker.JobLowStock:       alertWorker,
			worker.JobLowStockDigest: alertWorker,
		}, cfg.WorkerPoolSize)

		if cfg.LowStockDigestCron != "" {
			if _, err := worker.StartLowStockDigest(ctx, worker.DigestConfig{
				Schedule:  cfg.LowStockDigestCron,
				Threshold: cfg.LowStockThreshold,
				Products:  repository.NewProductRepository(db),
				Alerts:    worker.NewDispatcher(rdb),
			}); err != nil {
				log.Fatal().Err(err).Msg("failed to schedule low stock digest")
			}
		}
	} else {
		log.Warn().Msg("REDIS_URL empty, background jobs disabled")
	}

	r := router.New(cfg, db, rdb, mailCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("driver", cfg.DBDriver).Msgf("stockpos listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
