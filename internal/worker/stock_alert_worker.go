package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stockpos/internal/infra"

	"github.com/rs/zerolog/log"
)

// Alert reasons
const (
	AlertReasonSale   = "sale"
	AlertReasonDigest = "digest"
)

// StockAlertPayload lists products at or below the low stock threshold.
type StockAlertPayload struct {
	Reason    string            `json:"reason"`
	SaleID    string            `json:"sale_id,omitempty"`
	Threshold int               `json:"threshold"`
	Products  []LowStockProduct `json:"products"`
}

type LowStockProduct struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

// AlertSender is satisfied by *infra.Mailer.
type AlertSender interface {
	Send(to []string, subject, body string) error
}

// StockAlertWorker emails low stock alerts through a circuit breaker.
type StockAlertWorker struct {
	sender     AlertSender
	breaker    *infra.Breaker
	recipients []string
}

func NewStockAlertWorker(sender AlertSender, breaker *infra.Breaker, recipients []string) *StockAlertWorker {
	return &StockAlertWorker{sender: sender, breaker: breaker, recipients: recipients}
}

func (w *StockAlertWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload StockAlertPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("stock_alert_worker: invalid payload: %w", err))
	}
	if len(payload.Products) == 0 {
		return nil
	}
	if len(w.recipients) == 0 {
		log.Warn().Int("products", len(payload.Products)).Msg("stock_alert_worker: ALERT_EMAIL not set, skipping")
		return nil
	}

	subject, body := composeStockAlert(payload)
	if err := w.breaker.Execute(func() error {
		return w.sender.Send(w.recipients, subject, body)
	}); err != nil {
		return err
	}
	log.Info().Str("reason", payload.Reason).Int("products", len(payload.Products)).Msg("stock_alert_worker: alert sent")
	return nil
}

func composeStockAlert(p StockAlertPayload) (string, string) {
	var subject string
	switch p.Reason {
	case AlertReasonDigest:
		subject = fmt.Sprintf("Low stock digest: %d products at or below %d", len(p.Products), p.Threshold)
	default:
		subject = fmt.Sprintf("Low stock after sale: %d products at or below %d", len(p.Products), p.Threshold)
	}

	var b strings.Builder
	if p.SaleID != "" {
		fmt.Fprintf(&b, "Sale %s left the following products low on stock.\n\n", p.SaleID)
	}
	for _, prod := range p.Products {
		fmt.Fprintf(&b, "- %s (%s): %d left\n", prod.Name, prod.ID, prod.Stock)
	}
	return subject, b.String()
}
