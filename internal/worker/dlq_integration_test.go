//go:build integration

package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestDLQ_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	n, err := DLQLength(ctx, rdb, QueueStockAlert)
	require.NoError(t, err)
	assert.Zero(t, n)

	payload, _ := json.Marshal(StockAlertPayload{SaleID: "sale-1", Products: []LowStockProduct{{ID: "p1"}}})
	SendToDLQ(ctx, rdb, QueueStockAlert, JobLowStock, payload, "relay down", 3)

	n, err = DLQLength(ctx, rdb, QueueStockAlert)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	raw, err := rdb.LIndex(ctx, DLQPrefix+QueueStockAlert, 0).Result()
	require.NoError(t, err)
	var entry DLQEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, "sale-1", entry.SaleID)
	assert.Equal(t, []string{"p1"}, entry.ProductIDs)
	assert.Equal(t, "relay down", entry.Reason)
}
