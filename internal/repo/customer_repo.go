// Package repo implements the data persistence layer for the webhook
// pipeline, backed by GORM. This file provides the Customer upsert.
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

// UpsertCustomer inserts or refreshes the customer row keyed by email.
// Conflict strategy is "replace": the newest name/phone/document wins.
// Relies on the database's atomic insert-or-update, so concurrent duplicate
// deliveries for the same email cannot create two rows.
func UpsertCustomer(ctx context.Context, db *gorm.DB, email, name, phone, document string) error {
	now := time.Now().UTC()
	c := &domain.Customer{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Phone:     phone,
		Document:  document,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "phone", "document", "updated_at"}),
	}).Create(c).Error
}

// GetCustomerByEmail returns the customer row or ErrNotFound.
func GetCustomerByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).Where("email = ?", email).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
