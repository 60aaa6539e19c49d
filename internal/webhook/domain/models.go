// Package domain contains the subscription webhook event model and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
	"gorm.io/datatypes"
)

// Subscription lifecycle event types after provider normalization.
const (
	EventTypeSubscriptionCreated = "subscription.created"
	EventTypeSubscriptionUpdated = "subscription.updated"
	EventTypeSubscriptionDeleted = "subscription.deleted"
	EventTypePaymentFailed       = "payment.failed"
)

// SubscriptionEvent is a provider-agnostic view of a webhook payload.
type SubscriptionEvent struct {
	Provider        string
	ProviderEventID string
	Type            string

	CustomerID     string
	SubscriptionID string

	Status      licensedomain.BillingStatus
	PlanTier    licensedomain.PlanTier
	PeriodStart time.Time
	PeriodEnd   time.Time

	OccurredAt time.Time
}

// EventRecord stores a received webhook delivery for deduplication. The
// (provider, provider_event_id) pair is unique; redeliveries collide on it.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:ux_webhook_events_provider_event,priority:1"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_webhook_events_provider_event,priority:2"`
	EventType       string         `gorm:"type:text;not null;index"`
	CustomerID      string         `gorm:"type:text"`
	SubscriptionID  string         `gorm:"type:text;index"`
	Payload         datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt      time.Time      `gorm:"not null"`
	ProcessedAt     *time.Time     `gorm:""`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "webhook_events" }
