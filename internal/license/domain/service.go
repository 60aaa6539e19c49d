package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLicenseNotFound = errors.New("license_not_found")
	ErrInvalidUser     = errors.New("invalid_user")
	ErrInvalidTier     = errors.New("invalid_tier")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrStatusConflict  = errors.New("status_conflict")
)

// Transition describes an entitlement change driven by a subscription event.
// ExpectedStatus guards the update: when non-empty, the transition applies
// only if the stored status still matches it.
type Transition struct {
	Status         BillingStatus
	ExpectedStatus BillingStatus
	PlanTier       PlanTier
	NotesLimit     *int
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	ResetUsage     bool
}

// CreateLicenseRequest provisions or refreshes a license at signup.
type CreateLicenseRequest struct {
	UserID                 string
	Email                  string
	PlanTier               PlanTier
	NotesLimit             int
	ProviderCustomerID     string
	ProviderSubscriptionID string
}

// PlanStats aggregates usage for one plan tier.
type PlanStats struct {
	Users      int   `json:"users"`
	NotesUsed  int64 `json:"notes_used"`
	NotesLimit int64 `json:"notes_limit"`
}

// UsageStats aggregates usage across all active licenses.
type UsageStats struct {
	TotalUsers     int                    `json:"total_users"`
	TotalNotesUsed int64                  `json:"total_notes_used"`
	PlanBreakdown  map[PlanTier]PlanStats `json:"plan_breakdown"`
}

// Service exposes entitlement reads and webhook-driven transitions.
type Service interface {
	GetByUserID(ctx context.Context, userID string) (*License, error)
	Create(ctx context.Context, req CreateLicenseRequest) (*License, error)
	UsageStatistics(ctx context.Context) (UsageStats, error)
}
