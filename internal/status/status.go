// Package status defines the canonical order status taxonomy and the
// table-driven normalizer that maps the payment gateway's event names and
// status strings (including Portuguese-localized labels) onto it.
//
// Resolution order:
//  1. event-name table (after case-folding and accent stripping)
//  2. status-alias table (same folding)
//  3. lower-cased raw status passthrough (best effort, flagged as Passthrough)
//
// No raw vendor string reaches downstream consumers un-normalized except as
// the human-readable failure reason annotation.
package status

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Status is the canonical order state used internally, independent of the
// gateway's own vocabulary.
type Status string

// The closed canonical set. A Status outside this set only occurs through
// the unknown-status passthrough (Source == SourcePassthrough).
const (
	Pending    Status = "pending"
	Approved   Status = "approved"
	Paid       Status = "paid"
	Refused    Status = "refused"
	Cancelled  Status = "cancelled"
	Expired    Status = "expired"
	Refunded   Status = "refunded"
	Chargeback Status = "chargeback"
	Completed  Status = "completed"
)

// Source records which normalization stage produced a Result.
type Source int

const (
	// SourceNone: neither an event name nor a status string matched anything.
	SourceNone Source = iota
	// SourceEvent: the raw event name matched the event-name table.
	SourceEvent
	// SourceAlias: the raw status matched the status-alias table.
	SourceAlias
	// SourcePassthrough: unrecognized raw status kept as-is, lower-cased.
	SourcePassthrough
)

// Result is the outcome of normalizing one delivery's event/status pair.
type Result struct {
	Status Status
	// Reason is the optional human-readable failure annotation
	// (e.g. "Estornado" for a refund).
	Reason string
	Source Source
}

// Known reports whether the status belongs to the closed canonical set.
func (s Status) Known() bool {
	switch s {
	case Pending, Approved, Paid, Refused, Cancelled, Expired, Refunded, Chargeback, Completed:
		return true
	}
	return false
}

// IsSuccess reports whether s represents a completed payment. Success
// statuses trigger the conversion dispatch and mark checkouts recovered.
func (s Status) IsSuccess() bool {
	return s == Approved || s == Paid || s == Completed
}

// IsFailure reports whether s is a terminal failure. Failure statuses mark
// checkouts abandoned and flip recovered carts back to abandoned.
func (s Status) IsFailure() bool {
	switch s {
	case Refused, Cancelled, Expired, Refunded, Chargeback:
		return true
	}
	return false
}

// mapping is one row of the event-name or status-alias tables.
type mapping struct {
	status Status
	reason string
}

// eventTable maps folded gateway event names to canonical statuses.
// Keys must already be in folded form (see Fold); enforced by tests.
var eventTable = map[string]mapping{
	"pix gerado":        {status: Pending},
	"boleto gerado":     {status: Pending},
	"aguardando pagamento": {status: Pending},
	"pix pago":          {status: Paid},
	"boleto pago":       {status: Paid},
	"compra aprovada":   {status: Approved},
	"compra completa":   {status: Completed},
	"compra recusada":   {status: Refused, reason: "Recusada"},
	"venda cancelada":   {status: Cancelled, reason: "Cancelada"},
	"pix expirado":      {status: Expired, reason: "Pix expirado"},
	"boleto expirado":   {status: Expired, reason: "Boleto expirado"},
	"pedido estornado":  {status: Refunded, reason: "Estornado"},
	"reembolso":         {status: Refunded, reason: "Estornado"},
	"chargeback":        {status: Chargeback, reason: "Chargeback"},
}

// aliasTable maps folded raw status strings to canonical statuses. It covers
// both the gateway's English API statuses and the Portuguese labels some
// integrations forward verbatim.
var aliasTable = map[string]mapping{
	"pending":          {status: Pending},
	"waiting payment":  {status: Pending},
	"processing":       {status: Pending},
	"pendente":         {status: Pending},
	"approved":         {status: Approved},
	"aprovado":         {status: Approved},
	"aprovada":         {status: Approved},
	"paid":             {status: Paid},
	"pago":             {status: Paid},
	"paga":             {status: Paid},
	"refused":          {status: Refused, reason: "Recusado"},
	"declined":         {status: Refused, reason: "Recusado"},
	"recusado":         {status: Refused, reason: "Recusado"},
	"recusada":         {status: Refused, reason: "Recusado"},
	"canceled":         {status: Cancelled, reason: "Cancelado"},
	"cancelled":        {status: Cancelled, reason: "Cancelado"},
	"cancelado":        {status: Cancelled, reason: "Cancelado"},
	"cancelada":        {status: Cancelled, reason: "Cancelado"},
	"expired":          {status: Expired, reason: "Expirado"},
	"expirado":         {status: Expired, reason: "Expirado"},
	"refunded":         {status: Refunded, reason: "Estornado"},
	"estornado":        {status: Refunded, reason: "Estornado"},
	"estornada":        {status: Refunded, reason: "Estornado"},
	"reembolsado":      {status: Refunded, reason: "Estornado"},
	"pedido estornado": {status: Refunded, reason: "Estornado"},
	"chargeback":       {status: Chargeback, reason: "Chargeback"},
	"chargedback":      {status: Chargeback, reason: "Chargeback"},
	"completed":        {status: Completed},
	"completo":         {status: Completed},
	"concluido":        {status: Completed},
}

// Fold lower-cases s, strips diacritics, normalizes separator punctuation to
// single spaces and trims. "Pedido_Estornado" and "pedido estornado" fold to
// the same key.
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	// NFD + strip combining marks + NFC. Build the chain per call: a
	// transform.Transformer carries state and is not safe to share.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Normalize resolves a raw event name and raw status string to a canonical
// Result. ok is false only when neither input matched and no raw status was
// available to pass through; such deliveries are acknowledged and ignored.
func Normalize(rawEvent, rawStatus string) (Result, bool) {
	if m, found := eventTable[Fold(rawEvent)]; found {
		return Result{Status: m.status, Reason: m.reason, Source: SourceEvent}, true
	}
	if rawStatus != "" {
		if m, found := aliasTable[Fold(rawStatus)]; found {
			return Result{Status: m.status, Reason: m.reason, Source: SourceAlias}, true
		}
		// Open-ended fallback: preserve unknown vendor statuses instead of
		// rejecting, so the gateway does not retry-storm on vocabulary drift.
		return Result{Status: Status(strings.ToLower(strings.TrimSpace(rawStatus))), Source: SourcePassthrough}, true
	}
	return Result{Source: SourceNone}, false
}
