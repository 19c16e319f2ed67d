package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Movement kinds
const (
	MovementSale          = "sale"
	MovementCancelRestore = "cancel_restore"
	MovementDeleteRestore = "delete_restore"
	MovementManualAdjust  = "manual_adjust"
)

// StockMovement records one stock delta on a product. Rows are append-only
// and written in the same transaction as the delta itself.
type StockMovement struct {
	ID          uuid.UUID `gorm:"type:char(36);primaryKey"`
	ProductID   uuid.UUID `gorm:"type:char(36);not null;index"`
	Kind        string    `gorm:"type:varchar(20);not null"`
	Delta       int       `gorm:"not null"` // positive = in, negative = out
	StockBefore int       `gorm:"not null"`
	StockAfter  int       `gorm:"not null"`
	Reason      string
	// ReferenceID is the sale id when the movement comes from a sale.
	// Deleted sales leave their movements behind, so there is no FK.
	ReferenceID *uuid.UUID `gorm:"type:char(36);index"`
	CreatedAt   time.Time
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
