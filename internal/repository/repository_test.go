package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"stockpos/internal/dto"
	"stockpos/internal/model"
	"stockpos/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPaginate(t *testing.T) {
	cases := []struct {
		page, limit                  int
		wantPage, wantLimit, wantOff int
	}{
		{0, 0, 1, 20, 0},
		{3, 10, 3, 10, 20},
		{2, 1000, 2, 20, 20},
		{-4, 5, 1, 5, 0},
	}
	for _, tc := range cases {
		p, l, o := paginate(tc.page, tc.limit, 100, 20)
		assert.Equal(t, []int{tc.wantPage, tc.wantLimit, tc.wantOff}, []int{p, l, o})
	}
}

func TestDecrementStockTx_Guard(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.Product(t, db, testutil.Category(t, db, "Drinks"), "Cola", "2.00", 3)
	repo := NewProductRepository(db)

	require.NoError(t, repo.DecrementStockTx(db, p.ID, 3))
	assert.Equal(t, 0, testutil.Stock(t, db, p.ID))

	assert.ErrorIs(t, repo.DecrementStockTx(db, p.ID, 1), ErrStockGuard)
	assert.ErrorIs(t, repo.DecrementStockTx(db, uuid.New(), 1), ErrStockGuard)
	assert.Equal(t, 0, testutil.Stock(t, db, p.ID))

	require.NoError(t, repo.IncrementStockTx(db, p.ID, 4))
	assert.Equal(t, 4, testutil.Stock(t, db, p.ID))
	assert.ErrorIs(t, repo.IncrementStockTx(db, uuid.New(), 1), gorm.ErrRecordNotFound)
}

func TestFindByIDsForUpdateTx(t *testing.T) {
	db := testutil.NewDB(t)
	c := testutil.Category(t, db, "Drinks")
	a := testutil.Product(t, db, c, "Cola", "2.00", 3)
	b := testutil.Product(t, db, c, "Water", "1.00", 9)
	repo := NewProductRepository(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		got, err := repo.FindByIDsForUpdateTx(tx, []uuid.UUID{a.ID, b.ID, uuid.New()})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "Water", got[b.ID].Name)
		assert.Equal(t, 3, got[a.ID].Stock)
		return nil
	})
	require.NoError(t, err)

	empty, err := repo.FindByIDsForUpdateTx(db, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProductList_Filters(t *testing.T) {
	db := testutil.NewDB(t)
	drinks := testutil.Category(t, db, "Drinks")
	snacks := testutil.Category(t, db, "Snacks")
	testutil.Product(t, db, drinks, "Cola Zero", "2.00", 3)
	testutil.Product(t, db, drinks, "Water", "1.00", 9)
	testutil.Product(t, db, snacks, "Cola Gummies", "1.50", 1)
	repo := NewProductRepository(db)
	ctx := context.Background()

	list, total, err := repo.List(ctx, dto.ProductFilter{Name: "cola"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "Cola Gummies", list[0].Name)
	require.NotNil(t, list[0].Category)
	assert.Equal(t, "Snacks", list[0].Category.Name)

	low, err := repo.ListLowStock(ctx, 3)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "Cola Gummies", low[0].Name, "lowest stock first")
}

func TestSaleList_Filters(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.User(t, db, "cashier", model.RoleUser)
	p := testutil.Product(t, db, testutil.Category(t, db, "Drinks"), "Cola", "2.00", 100)
	repo := NewSaleRepository(db)
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC) }
	insert := func(phone string, pt model.PaymentType, st model.SaleStatus, at time.Time) *model.Sale {
		s := &model.Sale{
			CustomerName:  "Ana",
			CustomerPhone: phone,
			PaymentType:   pt,
			Status:        st,
			SaleDate:      at,
			TotalAmount:   decimal.RequireFromString("4.00"),
			CreatedBy:     user.ID,
			Items: []model.SaleItem{{
				ProductID:  p.ID,
				Quantity:   2,
				UnitPrice:  decimal.RequireFromString("2.00"),
				TotalPrice: decimal.RequireFromString("4.00"),
			}},
		}
		require.NoError(t, repo.CreateTx(db, s))
		return s
	}
	first := insert("555-1", model.PaymentCash, model.SaleStatusPaid, day(1))
	insert("555-2", model.PaymentCard, model.SaleStatusPending, day(2))
	third := insert("555-1", model.PaymentCard, model.SaleStatusPending, day(3))

	all, total, err := repo.List(ctx, SaleFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, third.ID, all[0].ID, "newest first")
	require.Len(t, all[0].Items, 1)
	require.NotNil(t, all[0].Items[0].Product)
	assert.Equal(t, "Cola", all[0].Items[0].Product.Name)
	require.NotNil(t, all[0].Creator)
	assert.Equal(t, "cashier", all[0].Creator.Username)

	byPhone, _, err := repo.List(ctx, SaleFilter{CustomerPhone: "555-1", PaymentType: model.PaymentCash})
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, first.ID, byPhone[0].ID)

	from, to := day(1), day(2)
	ranged, _, err := repo.List(ctx, SaleFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, ranged, 2, "both bounds inclusive")

	page, total, err := repo.List(ctx, SaleFilter{Status: model.SaleStatusPending, Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, page, 1)
	assert.NotEqual(t, third.ID, page[0].ID)
}

func TestSaleItems_LoadInLineOrder(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.User(t, db, "cashier", model.RoleUser)
	c := testutil.Category(t, db, "Drinks")
	repo := NewSaleRepository(db)

	price := decimal.RequireFromString("1.00")
	s := &model.Sale{
		CustomerName: "Ana", CustomerPhone: "555", PaymentType: model.PaymentCash,
		Status: model.SaleStatusPending, SaleDate: time.Now().UTC(),
		TotalAmount: decimal.RequireFromString("3.00"), CreatedBy: user.ID,
	}
	// Inserted out of line order, all in one batch.
	for _, line := range []int{3, 1, 2} {
		p := testutil.Product(t, db, c, fmt.Sprintf("Item %d", line), "1.00", 5)
		s.Items = append(s.Items, model.SaleItem{ProductID: p.ID, Line: line, Quantity: 1, UnitPrice: price, TotalPrice: price})
	}
	require.NoError(t, repo.CreateTx(db, s))

	got, err := repo.FindByID(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	for i, it := range got.Items {
		assert.Equal(t, i+1, it.Line)
		assert.Equal(t, fmt.Sprintf("Item %d", i+1), it.Product.Name)
	}

	locked, err := repo.FindByIDForUpdateTx(db, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, []int{locked.Items[0].Line, locked.Items[1].Line, locked.Items[2].Line})
}

func TestSaleDeleteTx(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.User(t, db, "cashier", model.RoleUser)
	p := testutil.Product(t, db, testutil.Category(t, db, "Drinks"), "Cola", "2.00", 10)
	repo := NewSaleRepository(db)

	s := &model.Sale{
		CustomerName: "Ana", CustomerPhone: "555", PaymentType: model.PaymentCash,
		Status: model.SaleStatusPending, SaleDate: time.Now().UTC(),
		TotalAmount: decimal.RequireFromString("2.00"), CreatedBy: user.ID,
		Items: []model.SaleItem{{ProductID: p.ID, Quantity: 1,
			UnitPrice: decimal.RequireFromString("2.00"), TotalPrice: decimal.RequireFromString("2.00")}},
	}
	require.NoError(t, repo.CreateTx(db, s))

	locked, err := repo.FindByIDForUpdateTx(db, s.ID)
	require.NoError(t, err)
	assert.Len(t, locked.Items, 1)

	require.NoError(t, repo.DeleteTx(db, s.ID))
	var items int64
	require.NoError(t, db.Model(&model.SaleItem{}).Where("sale_id = ?", s.ID).Count(&items).Error)
	assert.Zero(t, items)
	assert.ErrorIs(t, repo.DeleteTx(db, s.ID), gorm.ErrRecordNotFound)
}
