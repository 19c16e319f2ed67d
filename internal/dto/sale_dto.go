package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Filter / List ──────────────────────────────────────────────────────────

// SaleFilter is bound from the query string of GET /v1/sales and
// GET /v1/sales/export. From and To accept YYYY-MM-DD or RFC3339; a bare
// date in To covers the whole day.
type SaleFilter struct {
	Status      string `form:"status"       validate:"omitempty,oneof=PENDING PAID CANCELLED"`
	PaymentType string `form:"payment_type" validate:"omitempty,oneof=CASH CARD TRANSFER"`
	From        string `form:"from"`
	To          string `form:"to"`
	Page        int    `form:"page,default=1"   validate:"min=1"`
	Limit       int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// DateRangeQuery is bound from GET /v1/sales/date-range. Both ends are
// inclusive.
type DateRangeQuery struct {
	From string `form:"from" validate:"required"`
	To   string `form:"to"   validate:"required"`
}

type SaleListResponse struct {
	Data  []SaleResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type SaleItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"   validate:"required,min=1,max=1000000000"`
}

type CreateSaleRequest struct {
	CustomerName  string            `json:"customer_name"  validate:"required,max=100"`
	CustomerPhone string            `json:"customer_phone" validate:"required,max=30"`
	PaymentType   string            `json:"payment_type"   validate:"required,oneof=CASH CARD TRANSFER"`
	Status        string            `json:"status"         validate:"omitempty,oneof=PENDING PAID"`
	SaleDate      *time.Time        `json:"sale_date"`
	PaymentDate   *time.Time        `json:"payment_date"`
	Items         []SaleItemRequest `json:"items"          validate:"required,min=1,dive"`
}

// UpdateSaleRequest is a header-only patch. Items cannot be edited.
type UpdateSaleRequest struct {
	CustomerName  *string    `json:"customer_name"  validate:"omitempty,min=1,max=100"`
	CustomerPhone *string    `json:"customer_phone" validate:"omitempty,min=1,max=30"`
	PaymentType   *string    `json:"payment_type"   validate:"omitempty,oneof=CASH CARD TRANSFER"`
	Status        *string    `json:"status"         validate:"omitempty,oneof=PENDING PAID CANCELLED"`
	PaymentDate   *time.Time `json:"payment_date"`
}

type MarkPaidRequest struct {
	PaymentType *string `json:"payment_type" validate:"omitempty,oneof=CASH CARD TRANSFER"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleItemResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Line        int             `json:"line"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type SaleResponse struct {
	ID            string             `json:"id"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	PaymentType   string             `json:"payment_type"`
	Status        string             `json:"status"`
	SaleDate      time.Time          `json:"sale_date"`
	PaymentDate   *time.Time         `json:"payment_date"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	CreatedBy     string             `json:"created_by"`
	CreatedByName string             `json:"created_by_username,omitempty"`
	Items         []SaleItemResponse `json:"items"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}
