// Package domain defines the persistence models touched by the payment
// gateway webhook pipeline: the audit log of inbound deliveries and the
// reconciled customer/sale/checkout records read by the back-office
// dashboards. These types are mapped with GORM.
package domain

import (
	"time"
)

// Recovery states for a checkout attempt or abandoned cart.
const (
	RecoveryPending   = "pending"
	RecoveryRecovered = "recovered"
	RecoveryAbandoned = "abandoned"
)

// WebhookDelivery is one row per inbound webhook request, written regardless
// of whether reconciliation succeeded. Append-only; rows are never mutated.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Endpoint: logical name of the receiving endpoint (e.g. "gateway").
//   - Payload: full raw request body as received.
//   - StatusCode: HTTP status returned to the gateway.
//   - DurationMS: request processing latency in milliseconds.
//   - Error: error detail when processing failed, empty otherwise.
//   - Success: whether the delivery was accepted (2xx).
type WebhookDelivery struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Endpoint   string    `json:"endpoint"    gorm:"type:varchar(64);not null;index"`
	Payload    string    `json:"payload"     gorm:"type:text"`
	StatusCode int       `json:"status_code"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty" gorm:"type:text"`
	Success    bool      `json:"success"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index"`
}

// TableName returns the database table name for WebhookDelivery.
func (WebhookDelivery) TableName() string { return "webhook_deliveries" }

// Customer is the buyer identity carried by gateway events, keyed by email.
// Rows are created or refreshed on every delivery that carries an email;
// the newest name/phone/document always wins. Customers are never deleted.
type Customer struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	Email     string    `json:"email"    gorm:"type:varchar(255);not null;uniqueIndex:ux_customers_email"`
	Name      string    `json:"name"     gorm:"type:varchar(255)"`
	Phone     string    `json:"phone"    gorm:"type:varchar(32)"`
	Document  string    `json:"document" gorm:"type:varchar(32)"` // CPF/CNPJ
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }

// Sale is the confirmed order record, unique per gateway order id.
// Every later delivery for the same order id overwrites status, amount and
// timestamps (last-write-wins; ordering is the gateway's responsibility).
//
// Fields:
//   - GatewayOrderID: the payment gateway's order identifier (unique).
//   - Status: canonical status (see internal/status); never a raw vendor
//     string except via the documented unknown-status passthrough.
//   - FailureReason: human-readable annotation for refused/refunded/etc.
//   - PaidAt / RefundedAt: stamped when the canonical status says so.
type Sale struct {
	ID             string     `json:"id"               gorm:"type:char(36);primaryKey"`
	GatewayOrderID string     `json:"gateway_order_id" gorm:"type:varchar(128);not null;uniqueIndex:ux_sales_gateway_order"`
	CustomerName   string     `json:"customer_name"    gorm:"type:varchar(255)"`
	CustomerEmail  string     `json:"customer_email"   gorm:"type:varchar(255);index"`
	CustomerPhone  string     `json:"customer_phone"   gorm:"type:varchar(32)"`
	CustomerDoc    string     `json:"customer_doc"     gorm:"type:varchar(32)"`
	TotalAmount    float64    `json:"total_amount"`
	Status         string     `json:"status"           gorm:"type:varchar(32);not null;index"`
	FailureReason  string     `json:"failure_reason,omitempty" gorm:"type:varchar(255)"`
	PaymentMethod  string     `json:"payment_method"   gorm:"type:varchar(32)"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	RefundedAt     *time.Time `json:"refunded_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Sale.
func (Sale) TableName() string { return "sales" }

// CheckoutAttempt records an in-progress or completed purchase session,
// distinct from the confirmed Sale. Attempts are normally created by the
// storefront when a checkout begins; the webhook pipeline creates one lazily
// when a delivery arrives for a session it has never seen.
//
// Matching order on reconciliation: gateway order id first, then customer
// email within a recent window, then a fresh insert.
type CheckoutAttempt struct {
	ID             string     `json:"id"               gorm:"type:char(36);primaryKey"`
	SessionID      string     `json:"session_id"       gorm:"type:varchar(128);index"`
	CustomerEmail  string     `json:"customer_email"   gorm:"type:varchar(255);index"`
	CartSnapshot   string     `json:"cart_snapshot,omitempty" gorm:"type:text"`
	TotalAmount    float64    `json:"total_amount"`
	GatewayOrderID string     `json:"gateway_order_id" gorm:"type:varchar(128);index"`
	Status         string     `json:"status"           gorm:"type:varchar(32)"`
	RecoveryStatus string     `json:"recovery_status"  gorm:"type:varchar(16);not null;default:'pending';index"`
	ConvertedAt    *time.Time `json:"converted_at,omitempty"`
	AbandonedAt    *time.Time `json:"abandoned_at,omitempty"`
	SaleID         string     `json:"sale_id,omitempty" gorm:"type:char(36)"`
	CreatedAt      time.Time  `json:"created_at"       gorm:"index"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for CheckoutAttempt.
func (CheckoutAttempt) TableName() string { return "checkout_attempts" }

// AbandonedCart is created by the storefront/recovery tooling; the webhook
// pipeline only flips a recovered cart back to abandoned when a terminal
// failure arrives later for the same customer.
type AbandonedCart struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	CustomerEmail  string    `json:"customer_email"  gorm:"type:varchar(255);index"`
	RecoveryStatus string    `json:"recovery_status" gorm:"type:varchar(16);not null;default:'abandoned';index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for AbandonedCart.
func (AbandonedCart) TableName() string { return "abandoned_carts" }
