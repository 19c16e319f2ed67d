package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "PENDING"
	SaleStatusPaid      SaleStatus = "PAID"
	SaleStatusCancelled SaleStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s SaleStatus) Valid() bool {
	switch s {
	case SaleStatusPending, SaleStatusPaid, SaleStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s SaleStatus) Terminal() bool {
	return s == SaleStatusPaid || s == SaleStatusCancelled
}

// CanTransitionTo encodes PENDING -> PAID | CANCELLED.
func (s SaleStatus) CanTransitionTo(next SaleStatus) bool {
	return s == SaleStatusPending && (next == SaleStatusPaid || next == SaleStatusCancelled)
}

type PaymentType string

const (
	PaymentCash     PaymentType = "CASH"
	PaymentCard     PaymentType = "CARD"
	PaymentTransfer PaymentType = "TRANSFER"
)

func (p PaymentType) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

// Sale is the header of a customer transaction. TotalAmount always equals
// the sum of its items' TotalPrice.
type Sale struct {
	ID            uuid.UUID       `gorm:"type:char(36);primaryKey"`
	CustomerName  string          `gorm:"type:varchar(100);not null"`
	CustomerPhone string          `gorm:"type:varchar(30);index;not null"`
	PaymentType   PaymentType     `gorm:"type:varchar(20);index;not null"`
	Status        SaleStatus      `gorm:"type:varchar(20);index;not null;default:'PENDING'"`
	SaleDate      time.Time       `gorm:"index;not null"`
	PaymentDate   *time.Time
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedBy     uuid.UUID       `gorm:"type:char(36);index;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Items   []SaleItem `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	Creator *User      `gorm:"foreignKey:CreatedBy;constraint:OnDelete:RESTRICT"`
}

func (s *Sale) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// SaleItem is one immutable line of a sale. UnitPrice is a snapshot of the
// product price at sale time.
type SaleItem struct {
	ID         uuid.UUID       `gorm:"type:char(36);primaryKey"`
	SaleID     uuid.UUID       `gorm:"type:char(36);index;not null"`
	ProductID  uuid.UUID       `gorm:"type:char(36);index;not null"`
	Line       int             `gorm:"column:line_no;not null;default:0"` // 1-based request position
	Quantity   int             `gorm:"not null;check:chk_sale_items_quantity,quantity >= 1"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt  time.Time

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
}

func (i *SaleItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
