package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxQuantity bounds a single sale quantity, the total asked of one product
// by a sale, and the size of a manual stock adjustment.
const MaxQuantity = 1_000_000_000

// Product is a sellable catalog entry. Stock is mutated only through the
// repository primitives so that it never goes below zero.
type Product struct {
	ID          uuid.UUID       `gorm:"type:char(36);primaryKey"`
	Name        string          `gorm:"type:varchar(150);index;not null"`
	Description *string
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Stock       int             `gorm:"not null;default:0;check:chk_products_stock,stock >= 0"`
	CategoryID  uuid.UUID       `gorm:"type:char(36);index;not null"`
	SupplierID  *uuid.UUID      `gorm:"type:char(36);index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT"`
	Supplier *Supplier `gorm:"foreignKey:SupplierID;constraint:OnDelete:SET NULL"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
