package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*EventRecord, error)
	// InsertEvent stores a new delivery, returning false when the
	// (provider, provider_event_id) pair already exists.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
	// PurgeOlderThan removes processed events received before cutoff,
	// bounding the dedup retention window.
	PurgeOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
