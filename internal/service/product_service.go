package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"stockpos/internal/apierror"
	"stockpos/internal/dto"
	"stockpos/internal/model"
	"stockpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type ProductService interface {
	Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error)
	List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AdjustStock(ctx context.Context, id uuid.UUID, req dto.AdjustStockRequest) (*dto.ProductResponse, error)
	// ListLowStock returns products with stock <= threshold. A threshold of 0
	// or less falls back to the configured default.
	ListLowStock(ctx context.Context, threshold int) ([]dto.ProductResponse, error)
	ListMovements(ctx context.Context, id uuid.UUID, page, limit int) (*dto.StockMovementListResponse, error)
}

type productService struct {
	products     repository.ProductRepository
	categories   repository.CategoryRepository
	suppliers    repository.SupplierRepository
	movements    repository.StockMovementRepository
	lowThreshold int
}

func NewProductService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	suppliers repository.SupplierRepository,
	movements repository.StockMovementRepository,
	lowStockThreshold int,
) ProductService {
	return &productService{
		products:     products,
		categories:   categories,
		suppliers:    suppliers,
		movements:    movements,
		lowThreshold: lowStockThreshold,
	}
}

func (s *productService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apierror.Validation("product name is required")
	}
	if req.Price.IsNegative() {
		return nil, apierror.Validation("price cannot be negative")
	}
	if req.Stock < 0 {
		return nil, apierror.Validation("stock cannot be negative")
	}
	categoryID, supplierID, err := s.resolveRefs(ctx, req.CategoryID, req.SupplierID)
	if err != nil {
		return nil, err
	}

	p := &model.Product{
		Name:        name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		Stock:       req.Stock,
		CategoryID:  categoryID,
		SupplierID:  supplierID,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, storeErr(err, "product %q not found", name)
	}
	return s.GetByID(ctx, p.ID)
}

// resolveRefs parses and checks the category and optional supplier ids.
func (s *productService) resolveRefs(ctx context.Context, categoryRaw string, supplierRaw *string) (uuid.UUID, *uuid.UUID, error) {
	categoryID, err := uuid.Parse(categoryRaw)
	if err != nil {
		return uuid.Nil, nil, apierror.Validation("category_id is not a valid id")
	}
	if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
		return uuid.Nil, nil, storeErr(err, "category %s not found", categoryID)
	}
	if supplierRaw == nil || *supplierRaw == "" {
		return categoryID, nil, nil
	}
	supplierID, err := uuid.Parse(*supplierRaw)
	if err != nil {
		return uuid.Nil, nil, apierror.Validation("supplier_id is not a valid id")
	}
	if _, err := s.suppliers.FindByID(ctx, supplierID); err != nil {
		return uuid.Nil, nil, storeErr(err, "supplier %s not found", supplierID)
	}
	return categoryID, &supplierID, nil
}

func (s *productService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "product %s not found", id)
	}
	return productToResponse(p), nil
}

func (s *productService) List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	list, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	resp := &dto.ProductListResponse{
		Data:       make([]dto.ProductResponse, 0, len(list)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}
	for i := range list {
		resp.Data = append(resp.Data, *productToResponse(&list[i]))
	}
	return resp, nil
}

func (s *productService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "product %s not found", id)
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apierror.Validation("product name cannot be empty")
		}
		p.Name = name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, apierror.Validation("price cannot be negative")
		}
		p.Price = req.Price.Round(2)
	}
	if req.CategoryID != nil || req.SupplierID != nil {
		categoryRaw := p.CategoryID.String()
		if req.CategoryID != nil {
			categoryRaw = *req.CategoryID
		}
		supplierRaw := req.SupplierID
		if supplierRaw == nil && p.SupplierID != nil {
			cur := p.SupplierID.String()
			supplierRaw = &cur
		}
		if p.CategoryID, p.SupplierID, err = s.resolveRefs(ctx, categoryRaw, supplierRaw); err != nil {
			return nil, err
		}
	}

	if err := s.products.Update(ctx, p); err != nil {
		return nil, storeErr(err, "product %s not found", id)
	}
	return s.GetByID(ctx, id)
}

// Delete refuses products that appear on recorded sales; their line items
// keep referencing them.
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.products.FindByID(ctx, id); err != nil {
		return storeErr(err, "product %s not found", id)
	}
	n, err := s.products.CountSaleItems(ctx, id)
	if err != nil {
		return apierror.Internal(err)
	}
	if n > 0 {
		return apierror.Conflict("product appears on %d sale items and cannot be deleted", n)
	}
	return storeErr(s.products.Delete(ctx, id), "product %s not found", id)
}

// AdjustStock applies a signed manual delta under a row lock and records it
// in the stock ledger. Stock never goes below zero.
func (s *productService) AdjustStock(ctx context.Context, id uuid.UUID, req dto.AdjustStockRequest) (*dto.ProductResponse, error) {
	if req.Delta == 0 {
		return nil, apierror.Validation("delta must not be zero")
	}
	if req.Delta < -model.MaxQuantity || req.Delta > model.MaxQuantity {
		return nil, apierror.Validation("delta must be between -%d and %d", model.MaxQuantity, model.MaxQuantity)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apierror.Validation("reason is required")
	}

	err := runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		locked, err := s.products.FindByIDsForUpdateTx(tx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		p, ok := locked[id]
		if !ok {
			return apierror.NotFound("product %s not found", id)
		}

		if req.Delta < 0 {
			if err := s.products.DecrementStockTx(tx, id, -req.Delta); err != nil {
				if errors.Is(err, repository.ErrStockGuard) {
					return shortage(p, -req.Delta)
				}
				return err
			}
		} else if err := s.products.IncrementStockTx(tx, id, req.Delta); err != nil {
			return err
		}

		return s.movements.CreateTx(tx, &model.StockMovement{
			ProductID:   id,
			Kind:        model.MovementManualAdjust,
			Delta:       req.Delta,
			StockBefore: p.Stock,
			StockAfter:  p.Stock + req.Delta,
			Reason:      reason,
		})
	})
	if err != nil {
		logFailure("adjust_stock", err, map[string]interface{}{"product_id": id.String(), "delta": req.Delta})
		return nil, err
	}
	log.Info().Str("product_id", id.String()).Int("delta", req.Delta).Str("reason", reason).Msg("stock adjusted")
	return s.GetByID(ctx, id)
}

func (s *productService) ListLowStock(ctx context.Context, threshold int) ([]dto.ProductResponse, error) {
	if threshold <= 0 {
		threshold = s.lowThreshold
	}
	list, err := s.products.ListLowStock(ctx, threshold)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	out := make([]dto.ProductResponse, 0, len(list))
	for i := range list {
		out = append(out, *productToResponse(&list[i]))
	}
	return out, nil
}

func (s *productService) ListMovements(ctx context.Context, id uuid.UUID, page, limit int) (*dto.StockMovementListResponse, error) {
	if _, err := s.products.FindByID(ctx, id); err != nil {
		return nil, storeErr(err, "product %s not found", id)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	list, total, err := s.movements.List(ctx, repository.StockMovementFilter{ProductID: &id, Page: page, Limit: limit})
	if err != nil {
		return nil, apierror.Internal(err)
	}
	resp := &dto.StockMovementListResponse{
		Data:  make([]dto.StockMovementResponse, 0, len(list)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for i := range list {
		resp.Data = append(resp.Data, movementToResponse(&list[i]))
	}
	return resp, nil
}
