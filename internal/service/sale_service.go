package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockpos/internal/apierror"
	"stockpos/internal/dto"
	"stockpos/internal/model"
	"stockpos/internal/repository"
	"stockpos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SaleService is the sale transaction engine. Every method runs in a single
// database transaction: either all of its effects commit or none do.
type SaleService interface {
	CreateSale(ctx context.Context, actorID uuid.UUID, req dto.CreateSaleRequest) (*dto.SaleResponse, error)
	UpdateSale(ctx context.Context, id uuid.UUID, req dto.UpdateSaleRequest) (*dto.SaleResponse, error)
	DeleteSale(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error)
	MarkSaleAsPaid(ctx context.Context, id uuid.UUID, req dto.MarkPaidRequest) (*dto.SaleResponse, error)
	CancelSale(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error)
}

// SaleOptions tunes engine policy.
type SaleOptions struct {
	// RestoreStockOnPaidDelete controls whether deleting a PAID sale gives
	// its stock back. Pending sales always restore; cancelled sales never do
	// because cancellation already restored them.
	RestoreStockOnPaidDelete bool
	// LowStockThreshold triggers an alert job when a sale leaves a product
	// at or below it. Negative disables alerts.
	LowStockThreshold int
}

type saleService struct {
	sales     repository.SaleRepository
	products  repository.ProductRepository
	users     repository.UserRepository
	movements repository.StockMovementRepository
	alerts    worker.Enqueuer
	opts      SaleOptions
	now       func() time.Time
}

// NewSaleService wires the engine. alerts may be nil when background jobs are
// disabled.
func NewSaleService(
	sales repository.SaleRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	movements repository.StockMovementRepository,
	alerts worker.Enqueuer,
	opts SaleOptions,
) SaleService {
	return &saleService{
		sales:     sales,
		products:  products,
		users:     users,
		movements: movements,
		alerts:    alerts,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// saleLine is a validated request item.
type saleLine struct {
	productID uuid.UUID
	quantity  int
}

// ── CreateSale ────────────────────────────────────────────────────────────────
//   1. Validate the request (items, quantities, payment type, initial status)
//   2. BEGIN TX: lock every referenced product in one query
//   3. Check stock per product against the summed requested quantity
//   4. Snapshot prices, compute line totals and the sale total
//   5. Insert sale + items, guarded stock decrement, stock ledger rows
//   6. COMMIT, then (async) alert on products left at low stock

func (s *saleService) CreateSale(ctx context.Context, actorID uuid.UUID, req dto.CreateSaleRequest) (*dto.SaleResponse, error) {
	lines, err := validateCreateSale(actorID, req)
	if err != nil {
		return nil, err
	}
	ids, requested, err := aggregateLines(lines)
	if err != nil {
		return nil, err
	}

	status := model.SaleStatusPending
	if req.Status != "" {
		status = model.SaleStatus(req.Status)
	}
	now := s.now()
	saleDate := now
	if req.SaleDate != nil {
		saleDate = req.SaleDate.UTC()
	}

	var created *model.Sale
	var lowStock []worker.LowStockProduct

	err = runTx(ctx, s.sales.DB(), func(tx *gorm.DB) error {
		if _, err := s.users.FindByIDTx(tx, actorID); err != nil {
			return storeErr(err, "user %s not found", actorID)
		}

		products, err := s.products.FindByIDsForUpdateTx(tx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			p, ok := products[id]
			if !ok {
				return apierror.NotFound("product %s not found", id)
			}
			if requested[id] > p.Stock {
				return shortage(p, requested[id])
			}
		}

		sale := &model.Sale{
			ID:            uuid.New(),
			CustomerName:  strings.TrimSpace(req.CustomerName),
			CustomerPhone: strings.TrimSpace(req.CustomerPhone),
			PaymentType:   model.PaymentType(req.PaymentType),
			Status:        status,
			SaleDate:      saleDate,
			CreatedBy:     actorID,
		}
		total := decimal.Zero
		for i, l := range lines {
			p := products[l.productID]
			lineTotal := p.Price.Mul(decimal.NewFromInt(int64(l.quantity)))
			sale.Items = append(sale.Items, model.SaleItem{
				ID:         uuid.New(),
				SaleID:     sale.ID,
				ProductID:  p.ID,
				Line:       i + 1,
				Quantity:   l.quantity,
				UnitPrice:  p.Price,
				TotalPrice: lineTotal,
			})
			total = total.Add(lineTotal)
		}
		sale.TotalAmount = total
		if status == model.SaleStatusPaid {
			paidAt := now
			if req.PaymentDate != nil {
				paidAt = req.PaymentDate.UTC()
			}
			sale.PaymentDate = &paidAt
		}

		if err := s.sales.CreateTx(tx, sale); err != nil {
			return err
		}

		for _, id := range ids {
			p := products[id]
			qty := requested[id]
			if err := s.products.DecrementStockTx(tx, id, qty); err != nil {
				if errors.Is(err, repository.ErrStockGuard) {
					return shortage(p, qty)
				}
				return err
			}
			after := p.Stock - qty
			if err := s.movements.CreateTx(tx, &model.StockMovement{
				ProductID:   id,
				Kind:        model.MovementSale,
				Delta:       -qty,
				StockBefore: p.Stock,
				StockAfter:  after,
				Reason:      "sale",
				ReferenceID: &sale.ID,
			}); err != nil {
				return err
			}
			if s.opts.LowStockThreshold >= 0 && after <= s.opts.LowStockThreshold {
				lowStock = append(lowStock, worker.LowStockProduct{ID: id.String(), Name: p.Name, Stock: after})
			}
		}

		created, err = s.sales.FindByIDTx(tx, sale.ID)
		return err
	})
	if err != nil {
		logFailure("create_sale", err, map[string]interface{}{"user_id": actorID.String(), "items": len(lines)})
		return nil, err
	}

	log.Info().
		Str("sale_id", created.ID.String()).
		Str("total", created.TotalAmount.StringFixed(2)).
		Int("items", len(created.Items)).
		Msg("sale created")

	s.notifyLowStock(ctx, created.ID, lowStock)
	return saleToResponse(created), nil
}

func validateCreateSale(actorID uuid.UUID, req dto.CreateSaleRequest) ([]saleLine, error) {
	if actorID == uuid.Nil {
		return nil, apierror.Validation("acting user is required")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, apierror.Validation("customer_name is required")
	}
	if strings.TrimSpace(req.CustomerPhone) == "" {
		return nil, apierror.Validation("customer_phone is required")
	}
	if !model.PaymentType(req.PaymentType).Valid() {
		return nil, apierror.Validation("payment_type %q is not one of CASH, CARD, TRANSFER", req.PaymentType)
	}
	if req.Status != "" {
		st := model.SaleStatus(req.Status)
		if st != model.SaleStatusPending && st != model.SaleStatusPaid {
			return nil, apierror.Validation("a sale can only be created as PENDING or PAID")
		}
	}
	if len(req.Items) == 0 {
		return nil, apierror.Validation("a sale needs at least one item")
	}

	lines := make([]saleLine, 0, len(req.Items))
	for i, it := range req.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, apierror.Validation("items[%d].product_id is not a valid id", i)
		}
		if it.Quantity < 1 || it.Quantity > model.MaxQuantity {
			return nil, apierror.Validation("items[%d].quantity must be between 1 and %d", i, model.MaxQuantity)
		}
		lines = append(lines, saleLine{productID: pid, quantity: it.Quantity})
	}
	return lines, nil
}

// aggregateLines returns the distinct product ids in request order and the
// total asked of each. Totals are capped at model.MaxQuantity so the sum
// cannot overflow.
func aggregateLines(lines []saleLine) ([]uuid.UUID, map[uuid.UUID]int, error) {
	var ids []uuid.UUID
	requested := make(map[uuid.UUID]int, len(lines))
	for _, l := range lines {
		sofar, seen := requested[l.productID]
		if !seen {
			ids = append(ids, l.productID)
		}
		if l.quantity > model.MaxQuantity-sofar {
			return nil, nil, apierror.Validation("total quantity for product %s exceeds %d", l.productID, model.MaxQuantity)
		}
		requested[l.productID] = sofar + l.quantity
	}
	return ids, requested, nil
}

func shortage(p model.Product, requested int) error {
	return &apierror.InsufficientStockError{
		ProductID:   p.ID.String(),
		ProductName: p.Name,
		Available:   p.Stock,
		Requested:   requested,
	}
}

func (s *saleService) notifyLowStock(ctx context.Context, saleID uuid.UUID, products []worker.LowStockProduct) {
	if s.alerts == nil || len(products) == 0 {
		return
	}
	payload := worker.StockAlertPayload{
		Reason:    worker.AlertReasonSale,
		SaleID:    saleID.String(),
		Threshold: s.opts.LowStockThreshold,
		Products:  products,
	}
	// The sale is committed; a lost alert is logged, never surfaced.
	if err := s.alerts.EnqueueStockAlert(context.WithoutCancel(ctx), payload); err != nil {
		log.Warn().Err(err).Str("sale_id", saleID.String()).Msg("could not enqueue low stock alert")
	}
}

// ── UpdateSale ────────────────────────────────────────────────────────────────
// Header-only patch. Items and stock are never touched here, which is why
// CANCELLED is refused: cancelling must go through CancelSale to restore
// stock.

func (s *saleService) UpdateSale(ctx context.Context, id uuid.UUID, req dto.UpdateSaleRequest) (*dto.SaleResponse, error) {
	var updated *model.Sale
	err := runTx(ctx, s.sales.DB(), func(tx *gorm.DB) error {
		sale, err := s.sales.FindByIDForUpdateTx(tx, id)
		if err != nil {
			return storeErr(err, "sale %s not found", id)
		}

		if req.CustomerName != nil {
			name := strings.TrimSpace(*req.CustomerName)
			if name == "" {
				return apierror.Validation("customer_name cannot be empty")
			}
			sale.CustomerName = name
		}
		if req.CustomerPhone != nil {
			phone := strings.TrimSpace(*req.CustomerPhone)
			if phone == "" {
				return apierror.Validation("customer_phone cannot be empty")
			}
			sale.CustomerPhone = phone
		}
		if req.PaymentType != nil {
			pt := model.PaymentType(*req.PaymentType)
			if !pt.Valid() {
				return apierror.Validation("payment_type %q is not one of CASH, CARD, TRANSFER", *req.PaymentType)
			}
			sale.PaymentType = pt
		}
		if req.PaymentDate != nil {
			paidAt := req.PaymentDate.UTC()
			sale.PaymentDate = &paidAt
		}
		if req.Status != nil {
			next := model.SaleStatus(*req.Status)
			if !next.Valid() {
				return apierror.Validation("status %q is not one of PENDING, PAID, CANCELLED", *req.Status)
			}
			if next != sale.Status {
				if next == model.SaleStatusCancelled || !sale.Status.CanTransitionTo(next) {
					return &apierror.InvalidTransitionError{From: string(sale.Status), To: string(next)}
				}
				if next == model.SaleStatusPaid && req.PaymentDate == nil {
					paidAt := s.now()
					sale.PaymentDate = &paidAt
				}
				sale.Status = next
			}
		}

		if err := s.sales.UpdateHeaderTx(tx, sale); err != nil {
			return err
		}
		updated, err = s.sales.FindByIDTx(tx, id)
		return err
	})
	if err != nil {
		logFailure("update_sale", err, map[string]interface{}{"sale_id": id.String()})
		return nil, err
	}
	return saleToResponse(updated), nil
}

// ── DeleteSale ────────────────────────────────────────────────────────────────
// Allowed from any status. Returns the sale as it was before deletion.

func (s *saleService) DeleteSale(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error) {
	var snapshot *model.Sale
	err := runTx(ctx, s.sales.DB(), func(tx *gorm.DB) error {
		sale, err := s.sales.FindByIDForUpdateTx(tx, id)
		if err != nil {
			return storeErr(err, "sale %s not found", id)
		}
		snapshot, err = s.sales.FindByIDTx(tx, id)
		if err != nil {
			return err
		}

		if s.restoresOnDelete(sale.Status) {
			if err := s.restoreStock(tx, sale, model.MovementDeleteRestore, "sale deleted"); err != nil {
				return err
			}
		}
		return s.sales.DeleteTx(tx, id)
	})
	if err != nil {
		logFailure("delete_sale", err, map[string]interface{}{"sale_id": id.String()})
		return nil, err
	}

	log.Info().Str("sale_id", id.String()).Str("status", string(snapshot.Status)).Msg("sale deleted")
	return saleToResponse(snapshot), nil
}

func (s *saleService) restoresOnDelete(st model.SaleStatus) bool {
	switch st {
	case model.SaleStatusCancelled:
		return false
	case model.SaleStatusPaid:
		return s.opts.RestoreStockOnPaidDelete
	default:
		return true
	}
}

// ── MarkSaleAsPaid ────────────────────────────────────────────────────────────

func (s *saleService) MarkSaleAsPaid(ctx context.Context, id uuid.UUID, req dto.MarkPaidRequest) (*dto.SaleResponse, error) {
	var paid *model.Sale
	err := runTx(ctx, s.sales.DB(), func(tx *gorm.DB) error {
		sale, err := s.sales.FindByIDForUpdateTx(tx, id)
		if err != nil {
			return storeErr(err, "sale %s not found", id)
		}
		if !sale.Status.CanTransitionTo(model.SaleStatusPaid) {
			return &apierror.InvalidTransitionError{From: string(sale.Status), To: string(model.SaleStatusPaid)}
		}
		if req.PaymentType != nil {
			pt := model.PaymentType(*req.PaymentType)
			if !pt.Valid() {
				return apierror.Validation("payment_type %q is not one of CASH, CARD, TRANSFER", *req.PaymentType)
			}
			sale.PaymentType = pt
		}
		paidAt := s.now()
		sale.Status = model.SaleStatusPaid
		sale.PaymentDate = &paidAt

		if err := s.sales.UpdateHeaderTx(tx, sale); err != nil {
			return err
		}
		paid, err = s.sales.FindByIDTx(tx, id)
		return err
	})
	if err != nil {
		logFailure("mark_sale_paid", err, map[string]interface{}{"sale_id": id.String()})
		return nil, err
	}
	return saleToResponse(paid), nil
}

// ── CancelSale ────────────────────────────────────────────────────────────────
// PENDING only. Stock goes back to the products and the record is kept.

func (s *saleService) CancelSale(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error) {
	var cancelled *model.Sale
	err := runTx(ctx, s.sales.DB(), func(tx *gorm.DB) error {
		sale, err := s.sales.FindByIDForUpdateTx(tx, id)
		if err != nil {
			return storeErr(err, "sale %s not found", id)
		}
		if !sale.Status.CanTransitionTo(model.SaleStatusCancelled) {
			return &apierror.InvalidTransitionError{From: string(sale.Status), To: string(model.SaleStatusCancelled)}
		}
		if err := s.restoreStock(tx, sale, model.MovementCancelRestore, "sale cancelled"); err != nil {
			return err
		}
		sale.Status = model.SaleStatusCancelled
		if err := s.sales.UpdateHeaderTx(tx, sale); err != nil {
			return err
		}
		cancelled, err = s.sales.FindByIDTx(tx, id)
		return err
	})
	if err != nil {
		logFailure("cancel_sale", err, map[string]interface{}{"sale_id": id.String()})
		return nil, err
	}
	log.Info().Str("sale_id", id.String()).Msg("sale cancelled")
	return saleToResponse(cancelled), nil
}

// restoreStock gives every item's quantity back to its product and records
// one ledger row per product.
func (s *saleService) restoreStock(tx *gorm.DB, sale *model.Sale, kind, reason string) error {
	var ids []uuid.UUID
	qty := make(map[uuid.UUID]int, len(sale.Items))
	for _, it := range sale.Items {
		if _, seen := qty[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}

	products, err := s.products.FindByIDsForUpdateTx(tx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			return fmt.Errorf("product %s of sale %s is missing", id, sale.ID)
		}
		if err := s.products.IncrementStockTx(tx, id, qty[id]); err != nil {
			return err
		}
		if err := s.movements.CreateTx(tx, &model.StockMovement{
			ProductID:   id,
			Kind:        kind,
			Delta:       qty[id],
			StockBefore: p.Stock,
			StockAfter:  p.Stock + qty[id],
			Reason:      reason,
			ReferenceID: &sale.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}
