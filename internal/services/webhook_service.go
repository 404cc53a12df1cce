// Package services – WebhookService
//
// This file implements the core of the gateway webhook pipeline: deciding
// whether a delivery is actionable (ignored / test-event /
// insufficient-data paths), reconciling the Customer, Sale, CheckoutAttempt
// and AbandonedCart records it implies, and firing the purchase-conversion
// dispatch on success statuses.
//
// Reconciliation policy is availability over atomicity: the four steps run
// sequentially, each wraps its own error, logs a warning and lets the
// pipeline proceed. A partial reconciliation is preferred to dropping the
// delivery; the gateway only sees non-2xx for authentication/parse
// failures, never for domain-level trouble.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tapcommerce/go-merchant-backend/internal/attribution"
	"github.com/tapcommerce/go-merchant-backend/internal/domain"
	"github.com/tapcommerce/go-merchant-backend/internal/gateway"
	"github.com/tapcommerce/go-merchant-backend/internal/repo"
	"github.com/tapcommerce/go-merchant-backend/internal/status"
)

// Pipeline outcomes, also used as audit/metric labels.
const (
	ResultProcessed    = "processed"
	ResultIgnored      = "ignored"
	ResultTest         = "test"
	ResultInsufficient = "insufficient_data"
)

// DefaultCheckoutMatchWindow bounds how far back the email fallback looks
// for a checkout attempt to link a delivery to.
const DefaultCheckoutMatchWindow = 24 * time.Hour

// ConversionDispatcher sends purchase-conversion events downstream.
// Implemented by *attribution.Client; stubbed in tests.
type ConversionDispatcher interface {
	SendConversion(ctx context.Context, conv attribution.Conversion) error
}

// Outcome summarizes what Process did with one delivery.
type Outcome struct {
	// Result is one of the Result* constants.
	Result string
	// Status is the resolved canonical status (empty for ignored/test).
	Status status.Status
	// OrderID echoes the gateway order id when one was extracted.
	OrderID string
	// Dispatched reports whether a conversion was sent downstream.
	Dispatched bool
}

// WebhookService reconciles inbound gateway events against the datastore.
//
// Fields:
//   - DB: database handle; all writes go through the repo package.
//   - Dispatcher: conversion dispatch target; nil or disabled skips dispatch.
//   - Environment: deployment name; the test-event shortcut applies when
//     this is not "production".
//   - CheckoutMatchWindow: email-fallback window (default 24h).
//   - DispatchTimeout: bound on the downstream call (default
//     attribution.DefaultTimeout).
//   - Currency: ISO currency for dispatched conversions (e.g. "BRL").
type WebhookService struct {
	DB                  *gorm.DB
	Dispatcher          ConversionDispatcher
	Environment         string
	CheckoutMatchWindow time.Duration
	DispatchTimeout     time.Duration
	Currency            string
}

// testEventNames are gateway connectivity-check events, matched after
// folding. Acknowledged without side effects outside production.
var testEventNames = map[string]struct{}{
	"teste":         {},
	"teste webhook": {},
	"webhook teste": {},
}

// Process applies one authenticated, parsed delivery to the datastore.
//
// It never returns an error: every domain-level problem is absorbed,
// logged and counted, so the handler can acknowledge the delivery and the
// gateway does not retry-storm events this system chooses not to act on.
// raw is the original body, used only for checkout session extraction.
func (s *WebhookService) Process(ctx context.Context, ev *gateway.Event, raw []byte) Outcome {
	if _, isTest := testEventNames[status.Fold(ev.Name)]; isTest && s.Environment != "production" {
		deliveriesTotal.WithLabelValues(ResultTest).Inc()
		return Outcome{Result: ResultTest}
	}

	res, ok := status.Normalize(ev.Name, ev.RawStatus)
	if !ok {
		// No event name and no status string: acknowledge and ignore.
		// Rejecting un-ignorable webhooks makes the vendor retry forever.
		deliveriesTotal.WithLabelValues(ResultIgnored).Inc()
		return Outcome{Result: ResultIgnored}
	}
	normalizationTotal.WithLabelValues(sourceLabel(res.Source)).Inc()

	if ev.OrderID == "" || ev.Email == "" {
		log.Warn().
			Str("event", ev.Name).
			Str("order_id", ev.OrderID).
			Msg("webhook delivery lacks order id or email, skipping reconciliation")
		deliveriesTotal.WithLabelValues(ResultInsufficient).Inc()
		return Outcome{Result: ResultInsufficient, Status: res.Status}
	}

	// Step 1: customer identity, newest data wins.
	if err := repo.UpsertCustomer(ctx, s.DB, ev.Email, ev.CustomerName, ev.Phone, ev.Document); err != nil {
		s.warnStep("customer", ev.OrderID, err)
	}

	// Step 2: the sale row, idempotent per order id.
	saleID := s.reconcileSale(ctx, ev, res)

	// Step 3: link or create the checkout attempt.
	s.reconcileCheckout(ctx, ev, res, raw, saleID)

	// Step 4: terminal failures un-recover the customer's cart.
	if res.Status.IsFailure() {
		if n, err := repo.FlipRecoveredCarts(ctx, s.DB, ev.Email); err != nil {
			s.warnStep("cart", ev.OrderID, err)
		} else if n > 0 {
			log.Info().Str("email", ev.Email).Int64("carts", n).Msg("recovered carts flipped back to abandoned")
		}
	}

	dispatched := s.maybeDispatch(ctx, ev, res)

	deliveriesTotal.WithLabelValues(ResultProcessed).Inc()
	return Outcome{Result: ResultProcessed, Status: res.Status, OrderID: ev.OrderID, Dispatched: dispatched}
}

// reconcileSale upserts the sale and returns the persisted row id ("" when
// the write or the readback failed).
func (s *WebhookService) reconcileSale(ctx context.Context, ev *gateway.Event, res status.Result) string {
	now := time.Now().UTC()
	sale := &domain.Sale{
		GatewayOrderID: ev.OrderID,
		CustomerName:   ev.CustomerName,
		CustomerEmail:  ev.Email,
		CustomerPhone:  ev.Phone,
		CustomerDoc:    ev.Document,
		TotalAmount:    ev.Amount,
		Status:         string(res.Status),
		FailureReason:  res.Reason,
		PaymentMethod:  ev.PaymentMethod,
	}
	if res.Status.IsSuccess() {
		sale.PaidAt = &now
	}
	if res.Status == status.Refunded {
		sale.RefundedAt = &now
	}

	if err := repo.UpsertSale(ctx, s.DB, sale); err != nil {
		s.warnStep("sale", ev.OrderID, err)
		return ""
	}
	// Re-read for the canonical row id: on replay the conflict clause
	// keeps the original id, not the one generated above.
	persisted, err := repo.GetSaleByOrderID(ctx, s.DB, ev.OrderID)
	if err != nil {
		return ""
	}
	return persisted.ID
}

// reconcileCheckout resolves the checkout attempt for a delivery: by
// gateway order id, then by customer email within the match window, then a
// fresh insert.
func (s *WebhookService) reconcileCheckout(ctx context.Context, ev *gateway.Event, res status.Result, raw []byte, saleID string) {
	now := time.Now().UTC()
	recovery := recoveryFor(res.Status)

	updates := map[string]any{
		"status":          string(res.Status),
		"recovery_status": recovery,
	}
	if ev.Amount > 0 {
		updates["total_amount"] = ev.Amount
	}
	if saleID != "" {
		updates["sale_id"] = saleID
	}
	switch recovery {
	case domain.RecoveryRecovered:
		updates["converted_at"] = now
	case domain.RecoveryAbandoned:
		updates["abandoned_at"] = now
	}

	n, err := repo.UpdateCheckoutByOrder(ctx, s.DB, ev.OrderID, updates)
	if err != nil {
		s.warnStep("checkout", ev.OrderID, err)
		return
	}
	if n > 0 {
		return
	}

	// No attempt carries this order id yet: fall back to the customer's
	// recent unresolved attempts and claim them for this order.
	window := s.CheckoutMatchWindow
	if window <= 0 {
		window = DefaultCheckoutMatchWindow
	}
	updates["gateway_order_id"] = ev.OrderID
	n, err = repo.UpdateCheckoutByEmail(ctx, s.DB, ev.Email, now.Add(-window), updates)
	if err != nil {
		s.warnStep("checkout", ev.OrderID, err)
		return
	}
	if n > 0 {
		return
	}

	// Webhook arrived before (or without) a browser-side checkout.
	attempt := &domain.CheckoutAttempt{
		SessionID:      gateway.SessionID(raw),
		CustomerEmail:  ev.Email,
		TotalAmount:    ev.Amount,
		GatewayOrderID: ev.OrderID,
		Status:         string(res.Status),
		RecoveryStatus: recovery,
		SaleID:         saleID,
	}
	switch recovery {
	case domain.RecoveryRecovered:
		attempt.ConvertedAt = &now
	case domain.RecoveryAbandoned:
		attempt.AbandonedAt = &now
	}
	if err := repo.CreateCheckoutAttempt(ctx, s.DB, attempt); err != nil {
		s.warnStep("checkout", ev.OrderID, err)
	}
}

// maybeDispatch fires the conversion event on success statuses. Dispatch
// failure is deliberately isolated: reconciliation already succeeded, so a
// third-party outage must not turn this delivery into a gateway retry.
func (s *WebhookService) maybeDispatch(ctx context.Context, ev *gateway.Event, res status.Result) bool {
	if !res.Status.IsSuccess() || s.Dispatcher == nil {
		return false
	}

	timeout := s.DispatchTimeout
	if timeout <= 0 {
		timeout = attribution.DefaultTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	currency := s.Currency
	if currency == "" {
		currency = "BRL"
	}
	err := s.Dispatcher.SendConversion(dctx, attribution.Conversion{
		OrderID:       ev.OrderID,
		CustomerEmail: ev.Email,
		CustomerPhone: ev.Phone,
		CustomerName:  ev.CustomerName,
		TotalAmount:   ev.Amount,
		Currency:      currency,
	})
	if err != nil {
		if errors.Is(err, attribution.ErrNotConfigured) {
			return false
		}
		dispatchTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("order_id", ev.OrderID).Msg("conversion dispatch failed")
		return false
	}
	dispatchTotal.WithLabelValues("ok").Inc()
	return true
}

// warnStep records a skipped reconciliation step. Steps never raise to the
// caller.
func (s *WebhookService) warnStep(step, orderID string, err error) {
	reconcileFailures.WithLabelValues(step).Inc()
	log.Warn().Err(err).Str("step", step).Str("order_id", orderID).Msg("reconciliation step skipped")
}

// recoveryFor maps a canonical status to the checkout recovery state:
// recovered iff success, abandoned iff failure, pending otherwise.
func recoveryFor(st status.Status) string {
	switch {
	case st.IsSuccess():
		return domain.RecoveryRecovered
	case st.IsFailure():
		return domain.RecoveryAbandoned
	default:
		return domain.RecoveryPending
	}
}

func sourceLabel(src status.Source) string {
	switch src {
	case status.SourceEvent:
		return "event"
	case status.SourceAlias:
		return "alias"
	case status.SourcePassthrough:
		return "passthrough"
	default:
		return "none"
	}
}
