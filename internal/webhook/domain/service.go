package domain

import (
	"context"
	"errors"
	"net/http"
)

// Service ingests provider webhook deliveries and applies entitlement
// transitions exactly once per provider event id.
type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrUnknownAccount        = errors.New("unknown_account")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
