// Package media stores rendered ticket artifacts (QR images) and returns
// the URL the ticket record should reference.
package media

import (
    "context"
    "errors"
    "strings"
)

// ErrEmptyKey is returned when an object key is blank or escapes the
// store root.
var ErrEmptyKey = errors.New("media: invalid object key")

// Store persists an object under key and returns its public URL.
type Store interface {
    Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

func cleanKey(key string) (string, error) {
    key = strings.TrimLeft(strings.TrimSpace(key), "/")
    if key == "" || strings.Contains(key, "..") {
        return "", ErrEmptyKey
    }
    return key, nil
}

func joinURL(base, key string) string {
    return strings.TrimRight(base, "/") + "/" + key
}
