package utils

import (
    "crypto/rand"  // secure random number generation
    "encoding/hex" // hex encoding of random bytes
    "fmt"
    "strings"
    "time"
)

// NewTicketID returns a synthetic ticket identifier of the form
// TKT-<last 9 digits of unix millis>-<8 hex chars>.  The same value names
// the QR artifact and is what the QR code encodes.
func NewTicketID(now time.Time) (string, error) {
    suffix, err := randomHex(4)
    if err != nil {
        return "", err
    }
    return fmt.Sprintf("TKT-%09d-%s", now.UnixMilli()%1_000_000_000, strings.ToUpper(suffix)), nil
}

// NewTransactionID returns TXN-<unix millis>-<8 hex chars>.
func NewTransactionID(now time.Time) (string, error) {
    suffix, err := randomHex(4)
    if err != nil {
        return "", err
    }
    return fmt.Sprintf("TXN-%d-%s", now.UnixMilli(), strings.ToUpper(suffix)), nil
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
