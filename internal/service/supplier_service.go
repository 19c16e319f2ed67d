package service

import (
	"context"
	"strings"

	"stockpos/internal/apierror"
	"stockpos/internal/dto"
	"stockpos/internal/model"
	"stockpos/internal/repository"

	"github.com/google/uuid"
)

type SupplierService interface {
	Create(ctx context.Context, req dto.CreateSupplierRequest) (*dto.SupplierResponse, error)
	List(ctx context.Context) ([]dto.SupplierResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*dto.SupplierResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateSupplierRequest) (*dto.SupplierResponse, error)
	// Delete detaches the supplier from its products, then removes it.
	Delete(ctx context.Context, id uuid.UUID) error
}

type supplierService struct {
	repo repository.SupplierRepository
}

func NewSupplierService(repo repository.SupplierRepository) SupplierService {
	return &supplierService{repo: repo}
}

func (s *supplierService) Create(ctx context.Context, req dto.CreateSupplierRequest) (*dto.SupplierResponse, error) {
	sup := &model.Supplier{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:   req.Phone,
		Address: req.Address,
		Notes:   req.Notes,
	}
	if sup.Name == "" || sup.Email == "" {
		return nil, apierror.Validation("supplier name and email are required")
	}
	if err := s.repo.Create(ctx, sup); err != nil {
		return nil, storeErr(err, "supplier with email %s not found", sup.Email)
	}
	return supplierToResponse(sup), nil
}

func (s *supplierService) List(ctx context.Context) ([]dto.SupplierResponse, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	out := make([]dto.SupplierResponse, 0, len(list))
	for i := range list {
		out = append(out, *supplierToResponse(&list[i]))
	}
	return out, nil
}

func (s *supplierService) GetByID(ctx context.Context, id uuid.UUID) (*dto.SupplierResponse, error) {
	sup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "supplier %s not found", id)
	}
	return supplierToResponse(sup), nil
}

func (s *supplierService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateSupplierRequest) (*dto.SupplierResponse, error) {
	sup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "supplier %s not found", id)
	}
	if req.Name != nil {
		sup.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		sup.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		sup.Phone = req.Phone
	}
	if req.Address != nil {
		sup.Address = req.Address
	}
	if req.Notes != nil {
		sup.Notes = req.Notes
	}
	if sup.Name == "" || sup.Email == "" {
		return nil, apierror.Validation("supplier name and email cannot be empty")
	}
	if err := s.repo.Update(ctx, sup); err != nil {
		return nil, storeErr(err, "supplier with email %s not found", sup.Email)
	}
	return supplierToResponse(sup), nil
}

func (s *supplierService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return storeErr(err, "supplier %s not found", id)
	}
	return storeErr(s.repo.Delete(ctx, id), "supplier %s not found", id)
}
