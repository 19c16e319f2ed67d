package infra

import (
	"bytes"
	"testing"
	"time"

	"stockpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleSale() model.Sale {
	paid := time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC)
	saleID := uuid.New()
	cola := &model.Product{ID: uuid.New(), Name: "Cola"}
	return model.Sale{
		ID:            saleID,
		CustomerName:  "Ada",
		CustomerPhone: "555-0100",
		PaymentType:   model.PaymentCard,
		Status:        model.SaleStatusPaid,
		SaleDate:      paid,
		PaymentDate:   &paid,
		TotalAmount:   decimal.RequireFromString("15.00"),
		CreatedBy:     uuid.New(),
		Creator:       &model.User{Username: "cashier"},
		Items: []model.SaleItem{{
			ID:         uuid.New(),
			SaleID:     saleID,
			ProductID:  cola.ID,
			Quantity:   3,
			UnitPrice:  decimal.RequireFromString("5.00"),
			TotalPrice: decimal.RequireFromString("15.00"),
			Product:    cola,
		}},
	}
}

func TestRenderSaleReceipt(t *testing.T) {
	data, err := RenderSaleReceipt("Corner Shop", func() *model.Sale { s := sampleSale(); return &s }())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderSalesWorkbook(t *testing.T) {
	sale := sampleSale()
	data, err := RenderSalesWorkbook([]model.Sale{sale})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sales")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Sale ID", rows[0][0])
	assert.Equal(t, sale.ID.String(), rows[1][0])
	assert.Equal(t, "cashier", rows[1][8])

	items, err := f.GetRows("Items")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Cola", items[1][2])
	assert.Equal(t, "3", items[1][3])
}
