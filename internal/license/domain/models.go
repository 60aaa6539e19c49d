// Package domain contains the entitlement model for note-generation licenses.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PlanTier identifies a subscription plan.
type PlanTier string

const (
	PlanStarter    PlanTier = "starter"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// BillingStatus represents the provider-reported state of a subscription.
type BillingStatus string

const (
	BillingStatusActive   BillingStatus = "active"
	BillingStatusTrialing BillingStatus = "trialing"
	BillingStatusPastDue  BillingStatus = "past_due"
	BillingStatusCanceled BillingStatus = "canceled"
)

// UnlimitedNotes marks a license with no monthly note limit.
const UnlimitedNotes = -1

// License is the durable entitlement record for one account. Billing status
// changes only through validated webhook events; the usage counter changes
// only through the quota gate and the period-reset worker.
type License struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID string       `gorm:"type:text;not null;uniqueIndex" json:"user_id"`
	Email  string       `gorm:"type:text;not null;index" json:"email"`

	PlanTier PlanTier      `gorm:"type:text;not null" json:"plan_tier"`
	Status   BillingStatus `gorm:"type:text;not null;default:'active'" json:"status"`

	// NotesLimit < 0 means unlimited.
	NotesLimit int `gorm:"not null" json:"notes_limit"`
	NotesUsed  int `gorm:"not null;default:0" json:"notes_used"`

	PeriodStart time.Time `gorm:"not null" json:"period_start"`
	PeriodEnd   time.Time `gorm:"not null" json:"period_end"`

	ProviderCustomerID     string `gorm:"type:text;index" json:"-"`
	ProviderSubscriptionID string `gorm:"type:text;index" json:"-"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"-"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (License) TableName() string { return "licenses" }

// Unlimited reports whether the license has no monthly note limit.
func (l License) Unlimited() bool { return l.NotesLimit < 0 }

// Inactive reports whether the license may not generate new notes.
func (l License) Inactive() bool {
	return l.Status != BillingStatusActive && l.Status != BillingStatusTrialing
}

// Remaining returns the number of notes left in the current period.
func (l License) Remaining() int {
	if l.Unlimited() {
		return UnlimitedNotes
	}
	remaining := l.NotesLimit - l.NotesUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ValidTier reports whether tier is a known plan tier.
func ValidTier(tier PlanTier) bool {
	switch tier {
	case PlanStarter, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// ValidStatus reports whether status is a known billing status.
func ValidStatus(status BillingStatus) bool {
	switch status {
	case BillingStatusActive, BillingStatusTrialing, BillingStatusPastDue, BillingStatusCanceled:
		return true
	}
	return false
}
