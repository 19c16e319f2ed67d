package handler

import (
	"errors"
	"net/http"
	"reflect"

	"stockpos/internal/apierror"
	"stockpos/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// decimal.Decimal must look numeric to validator, otherwise tags such as
	// gte=0 panic with "Bad field type decimal.Decimal".
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs go-playground/validator tags.
// Returns false after writing the error response; the caller must return.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

// bindQuery is bindAndValidate for query strings.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid query: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// parseID reads a UUID path parameter. Returns false after writing a 400.
func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// actorID returns the authenticated user's id from the JWT claims.
func actorID(c *gin.Context) uuid.UUID {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return uuid.Nil
	}
	return claims.ID()
}

// respondError writes the response for a service error. Internal failures
// are handed to middleware.ErrorHandler, which logs the cause and answers
// with a generic 500.
func respondError(c *gin.Context, err error) {
	var stockErr *apierror.InsufficientStockError
	var transErr *apierror.InvalidTransitionError
	var typed *apierror.Error

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, &apierror.StockError{
			Detail:      stockErr.Error(),
			Code:        string(apierror.KindInsufficientStock),
			ProductID:   stockErr.ProductID,
			ProductName: stockErr.ProductName,
			Available:   stockErr.Available,
			Requested:   stockErr.Requested,
		})
	case errors.As(err, &transErr):
		c.JSON(http.StatusConflict, &apierror.TransitionError{
			Detail: transErr.Error(),
			Code:   string(apierror.KindInvalidTransition),
			From:   transErr.From,
			To:     transErr.To,
		})
	case errors.As(err, &typed) && typed.Kind != apierror.KindInternal:
		c.JSON(apierror.HTTPStatus(typed.Kind), &apierror.APIError{Detail: typed.Public(), Code: string(typed.Kind)})
	default:
		_ = c.Error(err)
	}
}
