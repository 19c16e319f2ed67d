package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stockpos/internal/infra"
	"stockpos/internal/repository"
	"stockpos/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	to      []string
	subject string
	body    string
	sent    int
	err     error
}

func (s *fakeSender) Send(to []string, subject, body string) error {
	s.sent++
	s.to, s.subject, s.body = to, subject, body
	return s.err
}

func alertPayload(t *testing.T, p StockAlertPayload) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func TestStockAlertWorker_SendsAlert(t *testing.T) {
	sender := &fakeSender{}
	w := NewStockAlertWorker(sender, infra.NewBreaker(infra.DefaultBreakerConfig()), []string{"ops@example.com"})

	err := w.Process(context.Background(), alertPayload(t, StockAlertPayload{
		Reason:    AlertReasonSale,
		SaleID:    "sale-1",
		Threshold: 3,
		Products:  []LowStockProduct{{ID: "p1", Name: "Cola", Stock: 2}},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, sender.sent)
	assert.Equal(t, []string{"ops@example.com"}, sender.to)
	assert.Contains(t, sender.subject, "Low stock after sale")
	assert.Contains(t, sender.body, "Sale sale-1")
	assert.Contains(t, sender.body, "- Cola (p1): 2 left")
}

func TestStockAlertWorker_SkipsWithoutRecipientsOrProducts(t *testing.T) {
	sender := &fakeSender{}
	b := infra.NewBreaker(infra.DefaultBreakerConfig())

	require.NoError(t, NewStockAlertWorker(sender, b, nil).Process(context.Background(),
		alertPayload(t, StockAlertPayload{Products: []LowStockProduct{{ID: "p1"}}})))
	require.NoError(t, NewStockAlertWorker(sender, b, []string{"ops@example.com"}).Process(context.Background(),
		alertPayload(t, StockAlertPayload{})))
	assert.Zero(t, sender.sent)
}

func TestStockAlertWorker_MalformedPayloadIsPermanent(t *testing.T) {
	w := NewStockAlertWorker(&fakeSender{}, infra.NewBreaker(infra.DefaultBreakerConfig()), []string{"ops@example.com"})
	err := w.Process(context.Background(), json.RawMessage(`{"products": "nope"`))
	var perm *permanentError
	assert.True(t, errors.As(err, &perm))
}

func TestStockAlertWorker_SendFailureSurfacesForRetry(t *testing.T) {
	sender := &fakeSender{err: errors.New("relay down")}
	w := NewStockAlertWorker(sender, infra.NewBreaker(infra.DefaultBreakerConfig()), []string{"ops@example.com"})
	err := w.Process(context.Background(), alertPayload(t, StockAlertPayload{
		Products: []LowStockProduct{{ID: "p1", Name: "Cola", Stock: 0}},
	}))
	assert.EqualError(t, err, "relay down")
}

func TestComposeStockAlert_Digest(t *testing.T) {
	subject, body := composeStockAlert(StockAlertPayload{
		Reason:    AlertReasonDigest,
		Threshold: 10,
		Products:  []LowStockProduct{{ID: "a", Name: "Cola", Stock: 1}, {ID: "b", Name: "Water", Stock: 9}},
	})
	assert.Equal(t, "Low stock digest: 2 products at or below 10", subject)
	assert.NotContains(t, body, "Sale ")
	assert.Contains(t, body, "- Water (b): 9 left")
}

type captureEnqueuer struct{ payloads []StockAlertPayload }

func (c *captureEnqueuer) EnqueueStockAlert(_ context.Context, p StockAlertPayload) error {
	c.payloads = append(c.payloads, p)
	return nil
}

func TestRunLowStockDigest(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.Category(t, db, "Drinks")
	alerts := &captureEnqueuer{}
	cfg := DigestConfig{Threshold: 3, Products: repository.NewProductRepository(db), Alerts: alerts}

	testutil.Product(t, db, c, "Water", "1.00", 50)
	require.NoError(t, RunLowStockDigest(context.Background(), cfg))
	assert.Empty(t, alerts.payloads, "nothing low, nothing enqueued")

	cola := testutil.Product(t, db, c, "Cola", "2.50", 2)
	require.NoError(t, RunLowStockDigest(context.Background(), cfg))
	require.Len(t, alerts.payloads, 1)
	got := alerts.payloads[0]
	assert.Equal(t, AlertReasonDigest, got.Reason)
	assert.Equal(t, 3, got.Threshold)
	require.Len(t, got.Products, 1)
	assert.Equal(t, LowStockProduct{ID: cola.ID.String(), Name: "Cola", Stock: 2}, got.Products[0])
}

func TestStartLowStockDigest_RejectsBadSchedule(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := StartLowStockDigest(ctx, DigestConfig{Schedule: "every tuesday"})
	assert.Error(t, err)

	c, err := StartLowStockDigest(ctx, DigestConfig{Schedule: "0 8 * * *"})
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
}

func TestStockAlertWorker_OpenBreakerSkipsRelay(t *testing.T) {
	sender := &fakeSender{err: errors.New("relay down")}
	b := infra.NewBreaker(infra.BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour})
	w := NewStockAlertWorker(sender, b, []string{"ops@example.com"})
	payload := alertPayload(t, StockAlertPayload{Products: []LowStockProduct{{ID: "p1", Name: "Cola"}}})

	require.Error(t, w.Process(context.Background(), payload))
	err := w.Process(context.Background(), payload)
	assert.ErrorIs(t, err, infra.ErrCircuitOpen)
	assert.Equal(t, 1, sender.sent)
}
