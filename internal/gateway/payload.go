package gateway

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedPayload indicates the body was not a JSON object. Handlers
// map it to HTTP 400; every other extraction shortfall degrades to empty
// fields and is resolved downstream (ignored / insufficient-data paths).
var ErrMalformedPayload = errors.New("gateway: malformed JSON payload")

// Event is the normalized view of one inbound delivery after shape-tolerant
// extraction. Empty fields mean the payload did not carry them.
type Event struct {
	// Name is the raw event name ("pix pago", "compra.aprovada", ...).
	Name string
	// RawStatus is the raw status string, un-normalized.
	RawStatus string

	OrderID       string
	Email         string
	CustomerName  string
	Phone         string
	Document      string
	Amount        float64
	PaymentMethod string
}

// Candidate field names, in priority order. The gateway has shipped several
// payload revisions; older integrations still post the legacy names.
var (
	eventKeys   = []string{"event", "event_type", "type"}
	statusKeys  = []string{"status", "payment_status", "order_status"}
	orderKeys   = []string{"order_id", "orderId", "transaction_id", "sale_id", "id"}
	emailKeys   = []string{"customer_email", "email", "buyer_email"}
	nameKeys    = []string{"customer_name", "name", "buyer_name"}
	phoneKeys   = []string{"customer_phone", "phone", "phone_number"}
	docKeys     = []string{"customer_document", "document", "cpf", "doc"}
	amountKeys  = []string{"total_amount", "amount", "total", "value", "price"}
	methodKeys  = []string{"payment_method", "method", "payment_type"}
	sessionKeys = []string{"session_id", "checkout_id", "cart_id"}
)

// ParseEvent decodes raw and extracts the fields the reconciler needs,
// accepting either a flat object or one nested under a "data" key. The
// event name is read from the top level; all other fields prefer the
// nested object when present.
//
// Defaults: amount is 0 when absent or unparsable; the customer name falls
// back to the email's local part.
func ParseEvent(raw []byte) (*Event, error) {
	var top map[string]any
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return nil, ErrMalformedPayload
	}

	fields := top
	if data, ok := top["data"].(map[string]any); ok {
		fields = data
	}

	ev := &Event{
		Name:          firstString(top, eventKeys),
		RawStatus:     firstString(fields, statusKeys),
		OrderID:       firstString(fields, orderKeys),
		Email:         strings.TrimSpace(strings.ToLower(firstString(fields, emailKeys))),
		CustomerName:  firstString(fields, nameKeys),
		Phone:         firstString(fields, phoneKeys),
		Document:      firstString(fields, docKeys),
		Amount:        firstNumber(fields, amountKeys),
		PaymentMethod: firstString(fields, methodKeys),
	}

	// Nested payloads may still carry the status at the top level.
	if ev.RawStatus == "" {
		ev.RawStatus = firstString(top, statusKeys)
	}

	if ev.CustomerName == "" && ev.Email != "" {
		if at := strings.IndexByte(ev.Email, '@'); at > 0 {
			ev.CustomerName = ev.Email[:at]
		}
	}
	return ev, nil
}

// SessionID extracts the checkout session identifier, when present, from a
// raw payload. Separate from ParseEvent because only the checkout matching
// step cares about it.
func SessionID(raw []byte) string {
	var top map[string]any
	if err := json.Unmarshal(raw, &top); err != nil {
		return ""
	}
	if data, ok := top["data"].(map[string]any); ok {
		if s := firstString(data, sessionKeys); s != "" {
			return s
		}
	}
	return firstString(top, sessionKeys)
}

// firstString returns the first candidate key whose value is a non-empty
// string (numbers are stringified: some integrations send numeric ids).
func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// firstNumber returns the first candidate key carrying a number, accepting
// JSON numbers and numeric strings (with either decimal separator).
func firstNumber(m map[string]any, keys []string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v
		case string:
			s := strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
	}
	return 0
}
