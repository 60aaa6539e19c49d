package domain

import (
	"context"
	"net/http"
)

// SubscriptionAdapter verifies and parses one provider's webhook deliveries.
type SubscriptionAdapter interface {
	// Verify checks the payload's cryptographic signature headers. It must
	// fail closed: an unverifiable delivery never reaches Parse.
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	// Parse normalizes a verified payload into a SubscriptionEvent. Events
	// the provider sends but this service does not react to return
	// ErrEventIgnored.
	Parse(ctx context.Context, payload []byte) (*SubscriptionEvent, error)
}
