package service

import (
	"context"
	"strings"
	"time"

	"stockpos/internal/apierror"
	"stockpos/internal/dto"
	"stockpos/internal/infra"
	"stockpos/internal/model"
	"stockpos/internal/repository"

	"github.com/google/uuid"
)

// SaleQueryService holds the read paths over sales. Every result is
// hydrated with its items, their products and the creator.
type SaleQueryService interface {
	GetSale(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error)
	ListSales(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error)
	ListByCustomerPhone(ctx context.Context, phone string) ([]dto.SaleResponse, error)
	ListByPaymentType(ctx context.Context, paymentType string) ([]dto.SaleResponse, error)
	ListByDateRange(ctx context.Context, q dto.DateRangeQuery) ([]dto.SaleResponse, error)
	ExportSales(ctx context.Context, filter dto.SaleFilter) ([]byte, error)
	RenderReceipt(ctx context.Context, id uuid.UUID) ([]byte, error)
}

type saleQueryService struct {
	sales     repository.SaleRepository
	storeName string
}

func NewSaleQueryService(sales repository.SaleRepository, storeName string) SaleQueryService {
	if storeName == "" {
		storeName = "stockpos"
	}
	return &saleQueryService{sales: sales, storeName: storeName}
}

func (s *saleQueryService) GetSale(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.sales.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "sale %s not found", id)
	}
	return saleToResponse(sale), nil
}

func (s *saleQueryService) ListSales(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error) {
	rf, err := toRepoFilter(filter)
	if err != nil {
		return nil, err
	}
	if rf.Page < 1 {
		rf.Page = 1
	}
	if rf.Limit < 1 || rf.Limit > 200 {
		rf.Limit = 50
	}
	sales, total, err := s.sales.List(ctx, rf)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &dto.SaleListResponse{
		Data:  salesToResponses(sales),
		Total: total,
		Page:  rf.Page,
		Limit: rf.Limit,
	}, nil
}

func (s *saleQueryService) ListByCustomerPhone(ctx context.Context, phone string) ([]dto.SaleResponse, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apierror.Validation("customer phone is required")
	}
	return s.listAll(ctx, repository.SaleFilter{CustomerPhone: phone})
}

func (s *saleQueryService) ListByPaymentType(ctx context.Context, paymentType string) ([]dto.SaleResponse, error) {
	pt := model.PaymentType(strings.ToUpper(paymentType))
	if !pt.Valid() {
		return nil, apierror.Validation("payment type %q is not one of CASH, CARD, TRANSFER", paymentType)
	}
	return s.listAll(ctx, repository.SaleFilter{PaymentType: pt})
}

// ListByDateRange requires both ends; both are inclusive.
func (s *saleQueryService) ListByDateRange(ctx context.Context, q dto.DateRangeQuery) ([]dto.SaleResponse, error) {
	if q.From == "" || q.To == "" {
		return nil, apierror.Validation("both from and to dates are required")
	}
	from, err := parseDateBound(q.From, false)
	if err != nil {
		return nil, err
	}
	to, err := parseDateBound(q.To, true)
	if err != nil {
		return nil, err
	}
	if from.After(*to) {
		return nil, apierror.Validation("from must not be after to")
	}
	return s.listAll(ctx, repository.SaleFilter{From: from, To: to})
}

// ExportSales renders every sale matching filter (pagination ignored) as an
// xlsx workbook.
func (s *saleQueryService) ExportSales(ctx context.Context, filter dto.SaleFilter) ([]byte, error) {
	rf, err := toRepoFilter(filter)
	if err != nil {
		return nil, err
	}
	rf.Page, rf.Limit = 0, 0
	sales, _, err := s.sales.List(ctx, rf)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	data, err := infra.RenderSalesWorkbook(sales)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return data, nil
}

func (s *saleQueryService) RenderReceipt(ctx context.Context, id uuid.UUID) ([]byte, error) {
	sale, err := s.sales.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "sale %s not found", id)
	}
	data, err := infra.RenderSaleReceipt(s.storeName, sale)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return data, nil
}

func (s *saleQueryService) listAll(ctx context.Context, rf repository.SaleFilter) ([]dto.SaleResponse, error) {
	sales, _, err := s.sales.List(ctx, rf)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return salesToResponses(sales), nil
}

func toRepoFilter(f dto.SaleFilter) (repository.SaleFilter, error) {
	rf := repository.SaleFilter{Page: f.Page, Limit: f.Limit}
	if f.Status != "" {
		st := model.SaleStatus(strings.ToUpper(f.Status))
		if !st.Valid() {
			return rf, apierror.Validation("status %q is not one of PENDING, PAID, CANCELLED", f.Status)
		}
		rf.Status = st
	}
	if f.PaymentType != "" {
		pt := model.PaymentType(strings.ToUpper(f.PaymentType))
		if !pt.Valid() {
			return rf, apierror.Validation("payment type %q is not one of CASH, CARD, TRANSFER", f.PaymentType)
		}
		rf.PaymentType = pt
	}
	var err error
	if f.From != "" {
		if rf.From, err = parseDateBound(f.From, false); err != nil {
			return rf, err
		}
	}
	if f.To != "" {
		if rf.To, err = parseDateBound(f.To, true); err != nil {
			return rf, err
		}
	}
	if rf.From != nil && rf.To != nil && rf.From.After(*rf.To) {
		return rf, apierror.Validation("from must not be after to")
	}
	return rf, nil
}

// parseDateBound accepts RFC3339 or YYYY-MM-DD. A bare date used as an upper
// bound covers the whole day.
func parseDateBound(raw string, upper bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apierror.Validation("date %q must be YYYY-MM-DD or RFC3339", raw)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}
