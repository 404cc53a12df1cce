// Read API HTTP handlers.
//
// This file exposes REST endpoints for the back-office dashboard:
//   - GET /api/v1/sales              (list, paginated, optional status filter)
//   - GET /api/v1/sales/{orderID}    (fetch one by gateway order id)
//   - GET /api/v1/deliveries         (webhook audit log, paginated)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tapcommerce/go-merchant-backend/internal/domain"
	"github.com/tapcommerce/go-merchant-backend/internal/services"
	"github.com/tapcommerce/go-merchant-backend/internal/utils"
)

// SalesReader defines the read-side queries consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SalesReader interface {
	// ListSales returns a page of sales and the total count, optionally
	// filtered by canonical status.
	ListSales(ctx context.Context, statusFilter string, page, pageSize int) ([]domain.Sale, int64, error)
	// GetSale returns the sale for a gateway order id.
	GetSale(ctx context.Context, orderID string) (*domain.Sale, error)
	// ListDeliveries returns a page of webhook audit rows and the total count.
	ListDeliveries(ctx context.Context, page, pageSize int) ([]domain.WebhookDelivery, int64, error)
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListSalesResponse wraps a page of sales and pagination information.
type ListSalesResponse struct {
	Sales      []domain.Sale `json:"sales"`
	Pagination Pagination    `json:"pagination"`
}

// ListDeliveriesResponse wraps a page of webhook audit rows.
type ListDeliveriesResponse struct {
	Deliveries []domain.WebhookDelivery `json:"deliveries"`
	Pagination Pagination               `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = services.MaxPageSize
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// paginationFor computes the metadata block for a page of results.
func paginationFor(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// ListSales returns a page of reconciled sales, newest first. The optional
// `status` query param filters by canonical status.
func (h *Handlers) ListSales(c *gin.Context) {
	page, pageSize := clampPagination(c)
	statusFilter := strings.TrimSpace(c.Query("status"))

	items, total, err := h.salesSvc.ListSales(c.Request.Context(), statusFilter, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListSalesResponse{
		Sales:      items,
		Pagination: paginationFor(page, pageSize, total),
	})
}

// GetSale returns a single sale by its gateway order id.
func (h *Handlers) GetSale(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("orderID"))
	if orderID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id required")
		return
	}

	sale, err := h.salesSvc.GetSale(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, services.ErrSaleNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "sale not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, sale)
}

// ListDeliveries returns a page of the webhook delivery audit log, newest
// first.
func (h *Handlers) ListDeliveries(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.salesSvc.ListDeliveries(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListDeliveriesResponse{
		Deliveries: items,
		Pagination: paginationFor(page, pageSize, total),
	})
}
