// Package services implements the webhook processing pipeline: event
// normalization gating, best-effort multi-entity reconciliation, and the
// conditional conversion dispatch. This file centralizes service-level
// error values so they can be consistently returned and checked; handlers
// translate them into HTTP results.
package services

import "errors"

var (
	// ErrSaleNotFound indicates the requested sale does not exist.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrInvalidPage is returned when pagination parameters are out of range.
	ErrInvalidPage = errors.New("page parameters out of range")
)
