// Package gateway implements the inbound contract with the payment
// gateway: request authentication (HMAC signature, replay window) and
// tolerant payload extraction for the heterogeneous shapes the gateway
// has shipped over time.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// MaxTimestampSkew bounds the replay window: deliveries whose timestamp
// header deviates from the server clock by more than this are rejected.
const MaxTimestampSkew = 5 * time.Minute

// Signature verification errors. Handlers map all of them to HTTP 401.
var (
	ErrMissingSignature = errors.New("gateway: missing signature header")
	ErrInvalidSignature = errors.New("gateway: signature mismatch")
	ErrBadTimestamp     = errors.New("gateway: unparsable timestamp header")
	ErrStaleTimestamp   = errors.New("gateway: timestamp outside replay window")
)

// VerifySignature authenticates raw request bytes against the shared secret.
//
// The signature header carries a hex HMAC-SHA256 digest of the exact raw
// body, optionally prefixed with "sha256=". Comparison is constant-time.
// When tsHeader is non-empty it must parse as epoch seconds or RFC3339 and
// fall within MaxTimestampSkew of now; otherwise the delivery is rejected
// as a replay.
//
// Callers decide what to do when no secret is configured; this function
// assumes one is present.
func VerifySignature(secret []byte, body []byte, sigHeader, tsHeader string, now time.Time) error {
	sig := strings.TrimSpace(sigHeader)
	if sig == "" {
		return ErrMissingSignature
	}
	sig = strings.TrimPrefix(sig, "sha256=")

	provided, err := hex.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrInvalidSignature
	}

	if tsHeader != "" {
		ts, err := parseTimestamp(tsHeader)
		if err != nil {
			return ErrBadTimestamp
		}
		if absDuration(now.Sub(ts)) > MaxTimestampSkew {
			return ErrStaleTimestamp
		}
	}
	return nil
}

// parseTimestamp accepts epoch seconds or RFC3339.
func parseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Parse(time.RFC3339, v)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Sign computes the hex HMAC-SHA256 digest of body under secret, with the
// "sha256=" prefix the gateway uses. Exposed for tests and for replaying
// captured deliveries against a local instance.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
