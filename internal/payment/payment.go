// Package payment verifies results reported by the hosted payment widget.
//
// The widget calls back with an order reference, a payment reference and a
// signature.  The signature is HMAC-SHA256 over "orderRef|paymentRef"
// keyed with the merchant key secret, hex encoded.
package payment

import (
    "crypto/hmac"
    "crypto/sha256"
    "crypto/subtle"
    "encoding/hex"
    "errors"
    "strings"
)

var (
    // ErrBadSignature is returned when a reported success carries a
    // signature that does not match.
    ErrBadSignature = errors.New("payment signature mismatch")
    // ErrIncomplete is returned when a reported success lacks references.
    ErrIncomplete = errors.New("payment result incomplete")
)

// Result is what the gateway reports for a payment attempt.  Amounts are
// never taken from the gateway; the server-side price breakdown is the
// source of truth.
type Result struct {
    Success    bool              `json:"success"`
    OrderRef   string            `json:"order_ref"`
    PaymentRef string            `json:"payment_ref"`
    Signature  string            `json:"signature"`
    Reason     string            `json:"reason,omitempty"`
    Metadata   map[string]string `json:"metadata,omitempty"`
}

// Verifier checks gateway signatures.
type Verifier struct {
    secret []byte
}

// NewVerifier returns a Verifier keyed with the merchant key secret.
func NewVerifier(secret string) *Verifier {
    return &Verifier{secret: []byte(secret)}
}

// Sign computes the signature the gateway attaches to a successful
// payment.  It is exported for tests and for the sandbox gateway.
func (v *Verifier) Sign(orderRef, paymentRef string) string {
    mac := hmac.New(sha256.New, v.secret)
    mac.Write([]byte(orderRef + "|" + paymentRef))
    return hex.EncodeToString(mac.Sum(nil))
}

// Verify returns nil for a failed result (nothing to authenticate) and for
// a success whose signature matches.
func (v *Verifier) Verify(r Result) error {
    if !r.Success {
        return nil
    }
    if r.OrderRef == "" || r.PaymentRef == "" || r.Signature == "" {
        return ErrIncomplete
    }
    got, err := hex.DecodeString(strings.TrimSpace(r.Signature))
    if err != nil {
        return ErrBadSignature
    }
    want, _ := hex.DecodeString(v.Sign(r.OrderRef, r.PaymentRef))
    if subtle.ConstantTimeCompare(got, want) != 1 {
        return ErrBadSignature
    }
    return nil
}
