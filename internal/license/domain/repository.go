package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AdmitOutcome reports the result of an atomic check-and-increment.
type AdmitOutcome struct {
	Admitted   bool
	Reason     DenyReason
	NotesUsed  int
	NotesLimit int
	RolledOver bool
}

// DenyReason explains why an admission request was denied.
type DenyReason string

const (
	DenyNone                 DenyReason = ""
	DenyQuotaExceeded        DenyReason = "quota_exceeded"
	DenySubscriptionInactive DenyReason = "subscription_inactive"
)

// Repository provides row-scoped atomic operations over license records.
// Admit and ApplyTransition lock the target row, so concurrent webhook
// deliveries and admission requests for the same account serialize in the
// store rather than in process memory.
type Repository interface {
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*License, error)
	FindByProviderSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*License, error)
	FindByProviderCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*License, error)
	Upsert(ctx context.Context, db *gorm.DB, license *License) error

	// Admit performs the quota check-and-increment as one transaction:
	// rolls the billing period forward if it has elapsed, then increments
	// notes_used only when the license is active and below its limit.
	Admit(ctx context.Context, db *gorm.DB, userID string, now time.Time) (AdmitOutcome, error)

	// ApplyTransition mutates status/tier/quota fields under row lock,
	// honoring the transition's expected prior status when set.
	ApplyTransition(ctx context.Context, db *gorm.DB, userID string, tr Transition, now time.Time) (*License, error)

	// ResetElapsedPeriods rolls forward up to limit licenses whose period
	// ended before now. Returns the number of licenses reset.
	ResetElapsedPeriods(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int, error)

	CollectUsageStats(ctx context.Context, db *gorm.DB) (UsageStats, error)
}
