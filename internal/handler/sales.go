package handler

import (
	"fmt"
	"net/http"
	"time"

	"stockpos/internal/dto"
	"stockpos/internal/service"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SalesHandler struct {
	svc   service.SaleService
	query service.SaleQueryService
}

func NewSalesHandler(svc service.SaleService, query service.SaleQueryService) *SalesHandler {
	return &SalesHandler{svc: svc, query: query}
}

// Create godoc
// @Summary      Record a sale
// @Description  Atomically checks and decrements stock for every line, then stores the sale and its items. Nothing is written when any line fails.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateSaleRequest true "Sale"
// @Success      201  {object} dto.SaleResponse
// @Failure      404  {object} apierror.APIError
// @Failure      409  {object} apierror.StockError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/sales [post]
func (h *SalesHandler) Create(c *gin.Context) {
	var req dto.CreateSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateSale(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary      List sales
// @Description  Paginated list, newest sale date first.
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        status       query string false "PENDING, PAID or CANCELLED"
// @Param        payment_type query string false "CASH, CARD or TRANSFER"
// @Param        from         query string false "YYYY-MM-DD or RFC3339"
// @Param        to           query string false "YYYY-MM-DD or RFC3339"
// @Param        page         query int    false "Page"
// @Param        limit        query int    false "Page size"
// @Success      200 {object} dto.SaleListResponse
// @Router       /v1/sales [get]
func (h *SalesHandler) List(c *gin.Context) {
	var filter dto.SaleFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.query.ListSales(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Get a sale with items
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Sale ID"
// @Success      200 {object} dto.SaleResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/sales/{id} [get]
func (h *SalesHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.query.GetSale(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Update godoc
// @Summary      Update sale header
// @Description  Edits customer, payment type, payment date or status. Cancelling goes through POST /v1/sales/{id}/cancel.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                true "Sale ID"
// @Param        body body dto.UpdateSaleRequest true "Changes"
// @Success      200 {object} dto.SaleResponse
// @Failure      409 {object} apierror.TransitionError
// @Router       /v1/sales/{id} [patch]
func (h *SalesHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateSale(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete godoc
// @Summary      Delete a sale
// @Description  Removes the sale and its items, restoring stock unless it was already restored.
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Sale ID"
// @Success      200 {object} dto.SaleResponse "The deleted sale"
// @Failure      404 {object} apierror.APIError
// @Router       /v1/sales/{id} [delete]
func (h *SalesHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.DeleteSale(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Pay godoc
// @Summary      Mark a pending sale as paid
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string              true  "Sale ID"
// @Param        body body dto.MarkPaidRequest false "Optional payment type override"
// @Success      200 {object} dto.SaleResponse
// @Failure      409 {object} apierror.TransitionError
// @Router       /v1/sales/{id}/pay [post]
func (h *SalesHandler) Pay(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.MarkPaidRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.MarkSaleAsPaid(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary      Cancel a pending sale
// @Description  Restores the stock of every item.
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Sale ID"
// @Success      200 {object} dto.SaleResponse
// @Failure      409 {object} apierror.TransitionError
// @Router       /v1/sales/{id}/cancel [post]
func (h *SalesHandler) Cancel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.CancelSale(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DateRange godoc
// @Summary      Sales within an inclusive date range
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        from query string true "YYYY-MM-DD or RFC3339"
// @Param        to   query string true "YYYY-MM-DD or RFC3339"
// @Success      200 {array} dto.SaleResponse
// @Router       /v1/sales/date-range [get]
func (h *SalesHandler) DateRange(c *gin.Context) {
	var q dto.DateRangeQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.query.ListByDateRange(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SalesHandler) ByCustomer(c *gin.Context) {
	resp, err := h.query.ListByCustomerPhone(c.Request.Context(), c.Param("phone"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SalesHandler) ByPaymentType(c *gin.Context) {
	resp, err := h.query.ListByPaymentType(c.Request.Context(), c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Export godoc
// @Summary      Export sales as xlsx
// @Tags         sales
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        status       query string false "Status"
// @Param        payment_type query string false "Payment type"
// @Param        from         query string false "From"
// @Param        to           query string false "To"
// @Success      200 {file} binary
// @Router       /v1/sales/export [get]
func (h *SalesHandler) Export(c *gin.Context) {
	var filter dto.SaleFilter
	if !bindQuery(c, &filter) {
		return
	}
	data, err := h.query.ExportSales(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	name := fmt.Sprintf("sales-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// Receipt godoc
// @Summary      Sale receipt PDF
// @Tags         sales
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id path string true "Sale ID"
// @Success      200 {file} binary
// @Failure      404 {object} apierror.APIError
// @Router       /v1/sales/{id}/receipt [get]
func (h *SalesHandler) Receipt(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	data, err := h.query.RenderReceipt(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="receipt-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", data)
}
