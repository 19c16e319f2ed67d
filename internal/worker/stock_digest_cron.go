package worker

// stock_digest_cron.go
// Scheduled job that enqueues a digest of every product at or below the low
// stock threshold. The schedule is a standard 5 field cron expression.

import (
	"context"
	"fmt"

	"stockpos/internal/repository"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type DigestConfig struct {
	Schedule  string
	Threshold int
	Products  repository.ProductRepository
	Alerts    Enqueuer
}

// StartLowStockDigest registers the digest on a cron scheduler and starts it.
// The scheduler stops when ctx is cancelled.
func StartLowStockDigest(ctx context.Context, cfg DigestConfig) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule, func() {
		if err := RunLowStockDigest(ctx, cfg); err != nil {
			log.Error().Err(err).Msg("stock_digest: run failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("stock_digest: schedule %q: %w", cfg.Schedule, err)
	}
	c.Start()
	log.Info().Str("schedule", cfg.Schedule).Msg("stock_digest: started")

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		log.Info().Msg("stock_digest: shutting down")
	}()
	return c, nil
}

// RunLowStockDigest enqueues one digest job when any product is low.
func RunLowStockDigest(ctx context.Context, cfg DigestConfig) error {
	products, err := cfg.Products.ListLowStock(ctx, cfg.Threshold)
	if err != nil {
		return fmt.Errorf("list low stock: %w", err)
	}
	if len(products) == 0 {
		return nil
	}

	payload := StockAlertPayload{Reason: AlertReasonDigest, Threshold: cfg.Threshold}
	for _, p := range products {
		payload.Products = append(payload.Products, LowStockProduct{ID: p.ID.String(), Name: p.Name, Stock: p.Stock})
	}
	return cfg.Alerts.EnqueueStockAlert(ctx, payload)
}
