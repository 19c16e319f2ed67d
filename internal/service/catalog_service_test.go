package service_test

import (
	"context"
	"math"
	"testing"

	"stockpos/internal/apierror"
	"stockpos/internal/dto"
	"stockpos/internal/model"
	"stockpos/internal/repository"
	"stockpos/internal/service"
	"stockpos/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type catalog struct {
	db         *gorm.DB
	categories service.CategoryService
	suppliers  service.SupplierService
	products   service.ProductService
}

func newCatalog(t *testing.T) *catalog {
	t.Helper()
	db := testutil.NewDB(t)
	categoryRepo := repository.NewCategoryRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	return &catalog{
		db:         db,
		categories: service.NewCategoryService(categoryRepo),
		suppliers:  service.NewSupplierService(supplierRepo),
		products: service.NewProductService(
			repository.NewProductRepository(db),
			categoryRepo,
			supplierRepo,
			repository.NewStockMovementRepository(db),
			5,
		),
	}
}

func (c *catalog) product(t *testing.T, categoryID, name, price string, stock int) *dto.ProductResponse {
	t.Helper()
	p, err := c.products.Create(context.Background(), dto.CreateProductRequest{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		CategoryID: categoryID,
	})
	require.NoError(t, err)
	return p
}

func mustParse(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func TestCategory_CRUDAndConflicts(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	cat, err := c.categories.Create(ctx, dto.CreateCategoryRequest{Name: " Snacks "})
	require.NoError(t, err)
	assert.Equal(t, "Snacks", cat.Name)

	_, err = c.categories.Create(ctx, dto.CreateCategoryRequest{Name: "Snacks"})
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))

	desc := "salty things"
	updated, err := c.categories.Update(ctx, mustParse(t, cat.ID), dto.UpdateCategoryRequest{Description: &desc})
	require.NoError(t, err)
	require.NotNil(t, updated.Description)
	assert.Equal(t, desc, *updated.Description)

	c.product(t, cat.ID, "Chips", "2.00", 3)
	err = c.categories.Delete(ctx, mustParse(t, cat.ID))
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))

	empty, err := c.categories.Create(ctx, dto.CreateCategoryRequest{Name: "Empty"})
	require.NoError(t, err)
	require.NoError(t, c.categories.Delete(ctx, mustParse(t, empty.ID)))

	_, err = c.categories.GetByID(ctx, mustParse(t, empty.ID))
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))

	list, err := c.categories.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSupplier_DeleteDetachesProducts(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	sup, err := c.suppliers.Create(ctx, dto.CreateSupplierRequest{Name: "Acme", Email: "Sales@Acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "sales@acme.test", sup.Email)

	_, err = c.suppliers.Create(ctx, dto.CreateSupplierRequest{Name: "Acme again", Email: "sales@acme.test"})
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))

	cat, err := c.categories.Create(ctx, dto.CreateCategoryRequest{Name: "Tools"})
	require.NoError(t, err)
	p, err := c.products.Create(ctx, dto.CreateProductRequest{
		Name: "Hammer", Price: decimal.RequireFromString("12.00"), Stock: 4,
		CategoryID: cat.ID, SupplierID: &sup.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", p.SupplierName)

	require.NoError(t, c.suppliers.Delete(ctx, mustParse(t, sup.ID)))

	reread, err := c.products.GetByID(ctx, mustParse(t, p.ID))
	require.NoError(t, err)
	assert.Nil(t, reread.SupplierID)
	assert.Equal(t, 4, reread.Stock)
}

func TestProduct_CreateValidatesReferences(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	_, err := c.products.Create(ctx, dto.CreateProductRequest{
		Name: "Ghost", Price: decimal.NewFromInt(1), CategoryID: uuid.NewString(),
	})
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))

	cat, err := c.categories.Create(ctx, dto.CreateCategoryRequest{Name: "Drinks"})
	require.NoError(t, err)

	_, err = c.products.Create(ctx, dto.CreateProductRequest{
		Name: "Cola", Price: decimal.RequireFromString("-1"), CategoryID: cat.ID,
	})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	missing := uuid.NewString()
	_, err = c.products.Create(ctx, dto.CreateProductRequest{
		Name: "Cola", Price: decimal.NewFromInt(1), CategoryID: cat.ID, SupplierID: &missing,
	})
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}

func TestProduct_UpdateNeverTouchesStock(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	cat, err := c.categories.Create(ctx, dto.CreateCategoryRequest{Name: "Drinks"})
	require.NoError(t, err)
	p := c.product(t, cat.ID, "Cola", "5.00", 8)

	price := decimal.RequireFromString("6.25")
	name := "Cola Zero"
	updated, err := c.products.Update(ctx, mustParse(t, p.ID), dto.UpdateProductRequest{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Cola Zero", updated.Name)
	assert.Equal(t, "6.25", updated.Price.StringFixed(2))
	assert.Equal(t, 8, updated.Stock)
}

func TestProduct_AdjustStockWritesLedger(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	cat, err := c.categories.Create(ctx, dto.CreateCategoryRequest{Name: "Drinks"})
	require.NoError(t, err)
	p := c.product(t, cat.ID, "Cola", "5.00", 8)
	id := mustParse(t, p.ID)

	resp, err := c.products.AdjustStock(ctx, id, dto.AdjustStockRequest{Delta: 12, Reason: "delivery"})
	require.NoError(t, err)
	assert.Equal(t, 20, resp.Stock)

	resp, err = c.products.AdjustStock(ctx, id, dto.AdjustStockRequest{Delta: -5, Reason: "breakage"})
	require.NoError(t, err)
	assert.Equal(t, 15, resp.Stock)

	_, err = c.products.AdjustStock(ctx, id, dto.AdjustStockRequest{Delta: -16, Reason: "theft"})
	assert.Equal(t, apierror.KindInsufficientStock, apierror.KindOf(err))
	assert.Equal(t, 15, testutil.Stock(t, c.db, id))

	_, err = c.products.AdjustStock(ctx, id, dto.AdjustStockRequest{Delta: 1})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	for _, delta := range []int{math.MinInt, math.MaxInt, -model.MaxQuantity - 1} {
		_, err = c.products.AdjustStock(ctx, id, dto.AdjustStockRequest{Delta: delta, Reason: "recount"})
		assert.Equal(t, apierror.KindValidation, apierror.KindOf(err), "delta %d", delta)
	}
	assert.Equal(t, 15, testutil.Stock(t, c.db, id))

	_, err = c.products.AdjustStock(ctx, uuid.New(), dto.AdjustStockRequest{Delta: 1, Reason: "x"})
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))

	ledger, err := c.products.ListMovements(ctx, id, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), ledger.Total)
	for _, m := range ledger.Data {
		assert.Equal(t, model.MovementManualAdjust, m.Kind)
		assert.Equal(t, m.StockBefore+m.Delta, m.StockAfter)
	}
}

func TestProduct_LowStockAndListing(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	cat, err := c.categories.Create(ctx, dto.CreateCategoryRequest{Name: "Drinks"})
	require.NoError(t, err)
	c.product(t, cat.ID, "Cola", "5.00", 2)
	c.product(t, cat.ID, "Water", "1.00", 5)
	c.product(t, cat.ID, "Juice", "3.00", 40)

	low, err := c.products.ListLowStock(ctx, 0)
	require.NoError(t, err)
	require.Len(t, low, 2, "default threshold is inclusive")
	assert.Equal(t, "Cola", low[0].Name)

	low, err = c.products.ListLowStock(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, low, 1)

	page, err := c.products.List(ctx, dto.ProductFilter{Name: "UIC", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, "Juice", page.Data[0].Name)
	assert.Equal(t, "Drinks", page.Data[0].CategoryName)
	assert.Equal(t, 1, page.TotalPages)
}

func TestProduct_DeleteRefusedWhenSold(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	cat := testutil.Category(t, c.db, "Drinks")
	sold := testutil.Product(t, c.db, cat, "Cola", "5.00", 10)
	unsold := testutil.Product(t, c.db, cat, "Water", "1.00", 10)
	cashier := testutil.User(t, c.db, "cashier", model.RoleUser)

	engine := service.NewSaleService(
		repository.NewSaleRepository(c.db),
		repository.NewProductRepository(c.db),
		repository.NewUserRepository(c.db),
		repository.NewStockMovementRepository(c.db),
		nil,
		service.SaleOptions{LowStockThreshold: -1},
	)
	_, err := engine.CreateSale(ctx, cashier.ID, saleRequest(item(sold, 1)))
	require.NoError(t, err)

	err = c.products.Delete(ctx, sold.ID)
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))

	require.NoError(t, c.products.Delete(ctx, unsold.ID))
	_, err = c.products.GetByID(ctx, unsold.ID)
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}
