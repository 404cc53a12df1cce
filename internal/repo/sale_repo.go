// Package repo implements the data persistence layer for the webhook
// pipeline, backed by GORM. This file provides the Sale upsert (idempotent
// per gateway order id, last-write-wins) and the read queries behind the
// back-office sales views.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tapcommerce/go-merchant-backend/internal/domain"
)

// saleUpdateColumns are the columns a later delivery for the same order id
// overwrites. Deliberately excludes id, gateway_order_id, created_at.
var saleUpdateColumns = []string{
	"customer_name", "customer_email", "customer_phone", "customer_doc",
	"total_amount", "status", "failure_reason", "payment_method",
	"paid_at", "refunded_at", "updated_at",
}

// UpsertSale inserts or overwrites the sale row keyed by gateway order id.
// Exactly one row exists per order id regardless of delivery count; the
// database's conflict clause makes the upsert atomic under concurrent
// duplicate delivery.
//
// On an error indicating an unknown column (schema drift), the write is
// retried once with that column omitted.
func UpsertSale(ctx context.Context, db *gorm.DB, s *domain.Sale) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	err := upsertSale(ctx, db, s, saleUpdateColumns, "")
	if err == nil {
		return nil
	}
	col, drifted := MissingColumn(err)
	if !drifted {
		return err
	}
	return upsertSale(ctx, db, s, withoutColumn(saleUpdateColumns, col), col)
}

func upsertSale(ctx context.Context, db *gorm.DB, s *domain.Sale, assign []string, omit string) error {
	tx := db.WithContext(ctx)
	if omit != "" {
		tx = tx.Omit(omit)
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway_order_id"}},
		DoUpdates: clause.AssignmentColumns(assign),
	}).Create(s).Error
}

// GetSaleByOrderID returns the sale for a gateway order id or ErrNotFound.
func GetSaleByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Sale, error) {
	var s domain.Sale
	err := db.WithContext(ctx).Where("gateway_order_id = ?", orderID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSalesPage returns one page of sales, newest first, optionally
// filtered by canonical status, plus the total row count for pagination.
func ListSalesPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Sale, int64, error) {
	q := db.WithContext(ctx).Model(&domain.Sale{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sales []domain.Sale
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&sales).Error
	return sales, total, err
}
