package repository

import (
	"context"
	"time"

	"stockpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaleFilter narrows List. Zero values mean "no filter"; Limit 0 returns
// every match.
type SaleFilter struct {
	Status        model.SaleStatus
	PaymentType   model.PaymentType
	CustomerPhone string
	From          *time.Time // inclusive
	To            *time.Time // inclusive
	Page          int
	Limit         int
}

type SaleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	List(ctx context.Context, filter SaleFilter) ([]model.Sale, int64, error)

	// Used inside transactions
	CreateTx(tx *gorm.DB, s *model.Sale) error
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	// FindByIDForUpdateTx locks the sale row, then loads its items.
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	UpdateHeaderTx(tx *gorm.DB, s *model.Sale) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error

	DB() *gorm.DB
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func hydrated(q *gorm.DB) *gorm.DB {
	return q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC, id ASC") }).
		Preload("Items.Product").
		Preload("Creator")
}

// CreateTx inserts the header and its items. The creator association is
// never written; items must not carry a Product.
func (r *saleRepo) CreateTx(tx *gorm.DB, s *model.Sale) error {
	return tx.Omit("Creator").Create(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *saleRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := hydrated(tx).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *saleRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("sale_id = ?", id).Order("line_no ASC, id ASC").Find(&s.Items).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepo) UpdateHeaderTx(tx *gorm.DB, s *model.Sale) error {
	return tx.Model(&model.Sale{}).Where("id = ?", s.ID).
		Select("customer_name", "customer_phone", "payment_type", "status", "payment_date", "updated_at").
		Updates(&model.Sale{
			CustomerName:  s.CustomerName,
			CustomerPhone: s.CustomerPhone,
			PaymentType:   s.PaymentType,
			Status:        s.Status,
			PaymentDate:   s.PaymentDate,
			UpdatedAt:     time.Now().UTC(),
		}).Error
}

// DeleteTx removes the items explicitly before the header; SQLite only
// cascades when foreign keys are enabled on the connection.
func (r *saleRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	if err := tx.Where("sale_id = ?", id).Delete(&model.SaleItem{}).Error; err != nil {
		return err
	}
	res := tx.Delete(&model.Sale{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *saleRepo) List(ctx context.Context, filter SaleFilter) ([]model.Sale, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Sale{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.PaymentType != "" {
		q = q.Where("payment_type = ?", filter.PaymentType)
	}
	if filter.CustomerPhone != "" {
		q = q.Where("customer_phone = ?", filter.CustomerPhone)
	}
	if filter.From != nil {
		q = q.Where("sale_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("sale_date <= ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = hydrated(q).Order("sale_date DESC, created_at DESC")
	if filter.Limit > 0 {
		_, limit, offset := paginate(filter.Page, filter.Limit, 200, 50)
		q = q.Offset(offset).Limit(limit)
	}

	var sales []model.Sale
	err := q.Find(&sales).Error
	return sales, total, err
}

func (r *saleRepo) DB() *gorm.DB { return r.db }
