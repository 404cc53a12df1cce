// Package services – SalesService
//
// Read-side queries over the reconciled state, consumed by the back-office
// dashboard. The only contract owed to those consumers is that the
// canonical status enum and timestamps stay stable and queryable.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tapcommerce/go-merchant-backend/internal/domain"
	"github.com/tapcommerce/go-merchant-backend/internal/repo"
)

// MaxPageSize caps a single page of results.
const MaxPageSize = 100

// SalesService serves paginated reads over sales and the delivery audit log.
type SalesService struct {
	DB *gorm.DB
}

// ListSales returns one page of sales, newest first, optionally filtered by
// canonical status, plus the total count.
func (s *SalesService) ListSales(ctx context.Context, statusFilter string, page, pageSize int) ([]domain.Sale, int64, error) {
	offset, limit, err := pageBounds(page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return repo.ListSalesPage(ctx, s.DB, statusFilter, offset, limit)
}

// GetSale returns the sale for a gateway order id, or ErrSaleNotFound.
func (s *SalesService) GetSale(ctx context.Context, orderID string) (*domain.Sale, error) {
	sale, err := repo.GetSaleByOrderID(ctx, s.DB, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSaleNotFound
	}
	return sale, err
}

// ListDeliveries returns one page of webhook audit rows, newest first.
func (s *SalesService) ListDeliveries(ctx context.Context, page, pageSize int) ([]domain.WebhookDelivery, int64, error) {
	offset, limit, err := pageBounds(page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return repo.ListDeliveriesPage(ctx, s.DB, offset, limit)
}

// pageBounds validates 1-based page parameters and converts them to
// offset/limit.
func pageBounds(page, pageSize int) (offset, limit int, err error) {
	if page < 1 || pageSize < 1 || pageSize > MaxPageSize {
		return 0, 0, ErrInvalidPage
	}
	return (page - 1) * pageSize, pageSize, nil
}
