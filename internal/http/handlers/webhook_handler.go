// Webhook HTTP handler.
//
// This file exposes the single ingestion endpoint for payment gateway
// notifications:
//   - POST /webhooks/gateway
//
// The handler is transport-thin: it authenticates the delivery (HMAC
// signature plus timestamp freshness), parses the payload tolerantly, and
// hands the event to the webhook service. Every delivery, including the
// rejected ones, is recorded in the audit log with its final status code and
// processing latency.
package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tapcommerce/go-merchant-backend/internal/domain"
	"github.com/tapcommerce/go-merchant-backend/internal/gateway"
	"github.com/tapcommerce/go-merchant-backend/internal/http/middleware"
	"github.com/tapcommerce/go-merchant-backend/internal/services"
)

// Signature and timestamp headers expected on gateway deliveries.
const (
	SignatureHeader = "X-Webhook-Signature"
	TimestampHeader = "X-Webhook-Timestamp"
)

// WebhookProcessor defines the ingestion operations consumed by the webhook
// handler.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type WebhookProcessor interface {
	// Process normalizes and reconciles a parsed gateway event.
	Process(ctx context.Context, ev *gateway.Event, raw []byte) services.Outcome
	// LogDelivery records a delivery in the audit log (best effort).
	LogDelivery(ctx context.Context, d *domain.WebhookDelivery)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for webhook ingestion and the read API.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	webhookSvc    WebhookProcessor
	salesSvc      SalesReader
	webhookSecret string
}

// New constructs and returns a Handlers instance bound to the given services.
// An empty webhookSecret disables signature verification (development only).
func New(webhookSvc WebhookProcessor, salesSvc SalesReader, webhookSecret string) *Handlers {
	return &Handlers{webhookSvc: webhookSvc, salesSvc: salesSvc, webhookSecret: webhookSecret}
}

// WebhookResponse is the JSON body returned for accepted deliveries.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

// HandleGatewayWebhook godoc
//
// Receives a gateway notification, verifies its signature, and reconciles
// the referenced order. The endpoint always answers 200 for deliveries that
// were authenticated and parseable, even when reconciliation steps failed
// internally, so the gateway does not retry deliveries we already recorded.
func (h *Handlers) HandleGatewayWebhook(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.auditReject(ctx, c, body, start, http.StatusBadRequest, "unreadable body")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable request body")
		return
	}

	if h.webhookSecret == "" {
		// Accepting unsigned deliveries is for local development only.
		middleware.LoggerFrom(c).Warn().Msg("webhook secret not configured, skipping signature verification")
	} else {
		sig := c.GetHeader(SignatureHeader)
		ts := c.GetHeader(TimestampHeader)
		if err := gateway.VerifySignature([]byte(h.webhookSecret), body, sig, ts, time.Now()); err != nil {
			h.auditReject(ctx, c, body, start, http.StatusUnauthorized, err.Error())
			fail(c, http.StatusUnauthorized, ErrCodeInvalidSignature, "webhook signature verification failed")
			return
		}
	}

	ev, err := gateway.ParseEvent(body)
	if err != nil {
		h.auditReject(ctx, c, body, start, http.StatusBadRequest, "malformed payload")
		fail(c, http.StatusBadRequest, ErrCodeMalformedPayload, "malformed webhook payload")
		return
	}

	out := h.webhookSvc.Process(ctx, ev, body)

	h.webhookSvc.LogDelivery(ctx, &domain.WebhookDelivery{
		Endpoint:   c.FullPath(),
		Payload:    string(body),
		StatusCode: http.StatusOK,
		DurationMS: time.Since(start).Milliseconds(),
		Success:    true,
	})

	log.Info().
		Str("result", out.Result).
		Str("order_id", out.OrderID).
		Str("status", string(out.Status)).
		Bool("dispatched", out.Dispatched).
		Msg("webhook processed")

	ok(c, http.StatusOK, WebhookResponse{
		Success: true,
		Result:  out.Result,
		OrderID: out.OrderID,
		Status:  string(out.Status),
	})
}

// auditReject records a rejected delivery (bad signature, bad payload) so the
// audit trail covers failures too. Logging is best effort and never blocks
// the HTTP response.
func (h *Handlers) auditReject(ctx context.Context, c *gin.Context, body []byte, start time.Time, status int, reason string) {
	h.webhookSvc.LogDelivery(ctx, &domain.WebhookDelivery{
		Endpoint:   c.FullPath(),
		Payload:    string(body),
		StatusCode: status,
		DurationMS: time.Since(start).Milliseconds(),
		Error:      reason,
		Success:    false,
	})
}
