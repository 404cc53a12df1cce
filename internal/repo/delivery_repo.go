// Package repo implements the data persistence layer for the webhook
// pipeline, backed by GORM. This file provides the append-only audit log of
// inbound deliveries.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tapcommerce/go-merchant-backend/internal/domain"
)

// LogDelivery appends one audit row for an inbound webhook request. If the
// full write fails (e.g. optional columns missing behind a lagging
// migration), it retries once with a minimal payload-only row so the audit
// trail is never lost. The caller's HTTP response must not depend on the
// outcome; the combined error is returned for logging only.
func LogDelivery(ctx context.Context, db *gorm.DB, d *domain.WebhookDelivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	err := db.WithContext(ctx).Create(d).Error
	if err == nil {
		return nil
	}

	minimal := &domain.WebhookDelivery{
		ID:        uuid.NewString(),
		Endpoint:  d.Endpoint,
		Payload:   d.Payload,
		CreatedAt: d.CreatedAt,
	}
	if retryErr := db.WithContext(ctx).
		Select("id", "endpoint", "payload", "created_at").
		Create(minimal).Error; retryErr != nil {
		return errors.Join(err, retryErr)
	}
	return nil
}

// ListDeliveriesPage returns one page of audit rows, newest first, plus the
// total count.
func ListDeliveriesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.WebhookDelivery, int64, error) {
	var total int64
	if err := db.WithContext(ctx).Model(&domain.WebhookDelivery{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.WebhookDelivery
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	return rows, total, err
}
