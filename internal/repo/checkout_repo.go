// Package repo implements the data persistence layer for the webhook
// pipeline, backed by GORM. This file provides the CheckoutAttempt
// matching/insert primitives used by the reconciler.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tapcommerce/go-merchant-backend/internal/domain"
)

// UpdateCheckoutByOrder applies updates to the attempt(s) carrying the
// given gateway order id and reports how many rows matched. Zero rows is
// not an error; the caller falls through to email matching.
//
// Drift handling: when the update references a missing column, that column
// is trimmed from the update map and the write retried once.
func UpdateCheckoutByOrder(ctx context.Context, db *gorm.DB, orderID string, updates map[string]any) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.CheckoutAttempt{}).
		Where("gateway_order_id = ?", orderID).
		Updates(updates)
	if res.Error == nil {
		return res.RowsAffected, nil
	}
	trimmed, ok := trimUpdates(updates, res.Error)
	if !ok {
		return 0, res.Error
	}
	res = db.WithContext(ctx).Model(&domain.CheckoutAttempt{}).
		Where("gateway_order_id = ?", orderID).
		Updates(trimmed)
	return res.RowsAffected, res.Error
}

// UpdateCheckoutByEmail applies updates to attempts for the customer email
// created since the given cutoff and still awaiting an outcome (pending or
// abandoned). Used when a delivery arrives for an order id no recorded
// attempt carries.
//
// This read-then-write path is not race-free: two near-simultaneous
// deliveries for the same session can each miss and insert. Accepted for
// this domain; see the service tests.
func UpdateCheckoutByEmail(ctx context.Context, db *gorm.DB, email string, since time.Time, updates map[string]any) (int64, error) {
	where := func(q *gorm.DB) *gorm.DB {
		return q.Where("customer_email = ?", email).
			Where("created_at >= ?", since).
			Where("recovery_status IN ?", []string{domain.RecoveryPending, domain.RecoveryAbandoned})
	}

	res := where(db.WithContext(ctx).Model(&domain.CheckoutAttempt{})).Updates(updates)
	if res.Error == nil {
		return res.RowsAffected, nil
	}
	trimmed, ok := trimUpdates(updates, res.Error)
	if !ok {
		return 0, res.Error
	}
	res = where(db.WithContext(ctx).Model(&domain.CheckoutAttempt{})).Updates(trimmed)
	return res.RowsAffected, res.Error
}

// CreateCheckoutAttempt inserts a fresh attempt row, covering webhook
// delivery arriving before (or without) a recorded browser-side checkout.
// Retries once without the offending column on schema drift.
func CreateCheckoutAttempt(ctx context.Context, db *gorm.DB, a *domain.CheckoutAttempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	err := db.WithContext(ctx).Create(a).Error
	if err == nil {
		return nil
	}
	col, drifted := MissingColumn(err)
	if !drifted {
		return err
	}
	return db.WithContext(ctx).Omit(col).Create(a).Error
}

// ListCheckoutsByEmail returns a customer's attempts, newest first.
func ListCheckoutsByEmail(ctx context.Context, db *gorm.DB, email string) ([]domain.CheckoutAttempt, error) {
	var attempts []domain.CheckoutAttempt
	err := db.WithContext(ctx).
		Where("customer_email = ?", email).
		Order("created_at DESC").
		Find(&attempts).Error
	return attempts, err
}

// trimUpdates removes the column a drift error names from the update map.
// ok is false when the error is not a missing-column error or the column is
// not part of the write (nothing to trim, retrying would be pointless).
func trimUpdates(updates map[string]any, err error) (map[string]any, bool) {
	col, drifted := MissingColumn(err)
	if !drifted {
		return nil, false
	}
	if _, present := updates[col]; !present {
		return nil, false
	}
	trimmed := make(map[string]any, len(updates))
	for k, v := range updates {
		if k != col {
			trimmed[k] = v
		}
	}
	return trimmed, len(trimmed) > 0
}
