package worker

// dlq.go: dead letter queue
// Jobs that exhaust their attempts are parked in dlq:{original_queue} for
// manual inspection.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // RFC3339
	Attempts      int             `json:"attempts"`

	// Set for stock alert jobs so a dead letter can be traced to its sale
	// and products without decoding the payload.
	SaleID     string   `json:"sale_id,omitempty"`
	ProductIDs []string `json:"product_ids,omitempty"`
}

func newDLQEntry(queue, jobType string, payload json.RawMessage, reason string, attempts int, at time.Time) DLQEntry {
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      at.UTC().Format(time.RFC3339),
		Attempts:      attempts,
	}
	if jobType == JobLowStock || jobType == JobLowStockDigest {
		var alert StockAlertPayload
		if json.Unmarshal(payload, &alert) == nil {
			entry.SaleID = alert.SaleID
			for _, p := range alert.Products {
				entry.ProductIDs = append(entry.ProductIDs, p.ID)
			}
		}
	}
	return entry
}

// SendToDLQ pushes a failed job to the dead letter queue.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := newDLQEntry(queue, jobType, payload, reason, attempts, time.Now())
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push to DLQ")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Str("sale_id", entry.SaleID).
		Strs("product_ids", entry.ProductIDs).
		Msg("dlq: job moved to dead letter queue")
}

// DLQLength returns the number of entries in a DLQ; /health reports it.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}
