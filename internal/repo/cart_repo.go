// Package repo implements the data persistence layer for the webhook
// pipeline, backed by GORM. This file provides the AbandonedCart state flip.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tapcommerce/go-merchant-backend/internal/domain"
)

// FlipRecoveredCarts marks every cart for the customer currently in the
// recovered state back as abandoned. Called when a terminal failure
// (refund, chargeback, refusal) arrives after an apparent success.
// Returns the number of carts flipped.
func FlipRecoveredCarts(ctx context.Context, db *gorm.DB, email string) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.AbandonedCart{}).
		Where("customer_email = ? AND recovery_status = ?", email, domain.RecoveryRecovered).
		Updates(map[string]any{
			"recovery_status": domain.RecoveryAbandoned,
			"updated_at":      time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
