// Package apierror provides standardized error response structures for the API
// and the typed failures raised by the service layer. All errors returned to
// clients go through this package so that internal details (stack traces,
// DB errors, etc.) never leak.
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Code: string(KindValidation), Fields: fields}
}

// StockError is the body of a 409 caused by insufficient stock.
type StockError struct {
	Detail      string `json:"detail"`
	Code        string `json:"code"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Available   int    `json:"available"`
	Requested   int    `json:"requested"`
}

// TransitionError is the body of a 409 caused by a forbidden status change.
type TransitionError struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
	From   string `json:"from"`
	To     string `json:"to"`
}
