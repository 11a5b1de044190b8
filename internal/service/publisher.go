// Package service contains outbound integrations that publish domain events
// to the configured message broker. Publishing is best-effort: callers log
// failures and carry on.
package service

import "context"

// Publisher delivers a JSON-encodable payload under a routing key.
// key identifies the aggregate (a ticket or event id) for partitioning.
type Publisher interface {
    Publish(ctx context.Context, topic, key string, payload any) error
    Close() error
}

// NopPublisher drops every message. Used with BROKER=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
func (NopPublisher) Close() error                                     { return nil }
