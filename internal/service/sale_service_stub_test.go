package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockpos/internal/apierror"
	"stockpos/internal/dto"
	"stockpos/internal/model"
	"stockpos/internal/repository"
	"stockpos/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

// stubSaleRepo is an in-memory SaleRepository. DB returns nil, so the engine
// runs its transaction bodies directly.
type stubSaleRepo struct {
	sales   map[uuid.UUID]*model.Sale
	updates int
}

func newStubSaleRepo(sales ...*model.Sale) *stubSaleRepo {
	r := &stubSaleRepo{sales: make(map[uuid.UUID]*model.Sale)}
	for _, s := range sales {
		r.sales[s.ID] = s
	}
	return r
}

func (r *stubSaleRepo) find(id uuid.UUID) (*model.Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *stubSaleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Sale, error) {
	return r.find(id)
}
func (r *stubSaleRepo) List(_ context.Context, _ repository.SaleFilter) ([]model.Sale, int64, error) {
	return nil, 0, nil
}
func (r *stubSaleRepo) CreateTx(_ *gorm.DB, s *model.Sale) error {
	r.sales[s.ID] = s
	return nil
}
func (r *stubSaleRepo) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.Sale, error) { return r.find(id) }
func (r *stubSaleRepo) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	return r.find(id)
}
func (r *stubSaleRepo) UpdateHeaderTx(_ *gorm.DB, s *model.Sale) error {
	cur, ok := r.sales[s.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.updates++
	cur.CustomerName, cur.CustomerPhone = s.CustomerName, s.CustomerPhone
	cur.PaymentType, cur.Status, cur.PaymentDate = s.PaymentType, s.Status, s.PaymentDate
	return nil
}
func (r *stubSaleRepo) DeleteTx(_ *gorm.DB, id uuid.UUID) error {
	delete(r.sales, id)
	return nil
}
func (r *stubSaleRepo) DB() *gorm.DB { return nil }

var _ repository.SaleRepository = (*stubSaleRepo)(nil)

func pendingSale() *model.Sale {
	return &model.Sale{
		ID:            uuid.New(),
		CustomerName:  "Ada",
		CustomerPhone: "555",
		PaymentType:   model.PaymentCash,
		Status:        model.SaleStatusPending,
		SaleDate:      time.Now().UTC(),
		TotalAmount:   decimal.RequireFromString("10.00"),
		CreatedBy:     uuid.New(),
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestMarkSaleAsPaid_WithoutDatabase(t *testing.T) {
	sale := pendingSale()
	repo := newStubSaleRepo(sale)
	svc := service.NewSaleService(repo, nil, nil, nil, nil, service.SaleOptions{})

	card := "CARD"
	resp, err := svc.MarkSaleAsPaid(context.Background(), sale.ID, dto.MarkPaidRequest{PaymentType: &card})
	require.NoError(t, err)
	assert.Equal(t, "PAID", resp.Status)
	assert.Equal(t, "CARD", resp.PaymentType)
	assert.NotNil(t, resp.PaymentDate)
	assert.Equal(t, 1, repo.updates)

	_, err = svc.MarkSaleAsPaid(context.Background(), sale.ID, dto.MarkPaidRequest{})
	var transErr *apierror.InvalidTransitionError
	require.True(t, errors.As(err, &transErr))
	assert.Equal(t, "PAID", transErr.From)
	assert.Equal(t, "PAID", transErr.To)
	assert.Equal(t, 1, repo.updates, "a refused transition writes nothing")
}

func TestMarkSaleAsPaid_RejectsUnknownPaymentType(t *testing.T) {
	sale := pendingSale()
	repo := newStubSaleRepo(sale)
	svc := service.NewSaleService(repo, nil, nil, nil, nil, service.SaleOptions{})

	bad := "BARTER"
	_, err := svc.MarkSaleAsPaid(context.Background(), sale.ID, dto.MarkPaidRequest{PaymentType: &bad})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
	assert.Equal(t, model.SaleStatusPending, repo.sales[sale.ID].Status)

	_, err = svc.MarkSaleAsPaid(context.Background(), uuid.New(), dto.MarkPaidRequest{})
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}

func TestUpdateSale_WithoutDatabase(t *testing.T) {
	sale := pendingSale()
	repo := newStubSaleRepo(sale)
	svc := service.NewSaleService(repo, nil, nil, nil, nil, service.SaleOptions{})

	blank := "   "
	_, err := svc.UpdateSale(context.Background(), sale.ID, dto.UpdateSaleRequest{CustomerName: &blank})
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
	assert.Zero(t, repo.updates)
}
