// Package provider contains the delivery provider contract and its
// implementations. A provider accepts one batch of fully rendered messages
// per call and reports per-item message ids in request order.
package provider

import (
	"context"
	"errors"
)

// ErrRateLimited is returned when the provider rejects a batch for rate
// limiting. The batch sender owns the retry/backoff policy; implementations
// must not retry internally.
var ErrRateLimited = errors.New("provider rate limited")

// Item is one rendered message within a batch.
type Item struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
	Text     string
}

// Provider is the bulk delivery contract. BatchSend returns one provider
// message id per item, in the same order as the request. The provider may
// still double-send on a client-side timeout; the engine does not promise
// exactly-once at the network layer.
type Provider interface {
	Name() string
	BatchSend(ctx context.Context, items []Item) ([]string, error)
}
