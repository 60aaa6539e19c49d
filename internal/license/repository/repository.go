// Package repository persists license records with row-scoped atomic updates.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/connorodea/aidentalnotes/internal/license/domain"
	"gorm.io/gorm"
)

// billingCycle is the provider's billing period length.
const billingCycle = 30 * 24 * time.Hour

type gormRepository struct{}

// Provide constructs the gorm-backed license repository.
func Provide() domain.Repository {
	return &gormRepository{}
}

func (r *gormRepository) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.License, error) {
	return r.findOne(ctx, db, "user_id = ?", userID)
}

func (r *gormRepository) FindByProviderSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.License, error) {
	return r.findOne(ctx, db, "provider_subscription_id = ?", subscriptionID)
}

func (r *gormRepository) FindByProviderCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*domain.License, error) {
	return r.findOne(ctx, db, "provider_customer_id = ?", customerID)
}

func (r *gormRepository) findOne(ctx context.Context, db *gorm.DB, query string, arg string) (*domain.License, error) {
	var license domain.License
	err := db.WithContext(ctx).Where(query, arg).First(&license).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLicenseNotFound
		}
		return nil, err
	}
	return &license, nil
}

func (r *gormRepository) Upsert(ctx context.Context, db *gorm.DB, license *domain.License) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.License
		err := tx.Where("user_id = ?", license.UserID).First(&existing).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tx.Create(license).Error
			}
			return err
		}

		license.ID = existing.ID
		license.CreatedAt = existing.CreatedAt
		return tx.Model(&domain.License{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"email":                    license.Email,
				"plan_tier":                license.PlanTier,
				"status":                   license.Status,
				"notes_limit":              license.NotesLimit,
				"notes_used":               license.NotesUsed,
				"period_start":             license.PeriodStart,
				"period_end":               license.PeriodEnd,
				"provider_customer_id":     license.ProviderCustomerID,
				"provider_subscription_id": license.ProviderSubscriptionID,
				"updated_at":               license.UpdatedAt,
			}).Error
	})
}

// Admit rolls the billing period forward when elapsed and then performs the
// quota check-and-increment as a single conditional UPDATE. The guard in the
// WHERE clause makes two racing requests at the quota boundary resolve to
// exactly one admission regardless of what either read beforehand.
func (r *gormRepository) Admit(ctx context.Context, db *gorm.DB, userID string, now time.Time) (domain.AdmitOutcome, error) {
	var outcome domain.AdmitOutcome

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		license, err := r.FindByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}

		// Inactive rows keep their last period untouched, the same policy the
		// reset sweep applies. Reactivation arrives as a subscription event
		// carrying fresh period bounds.
		if !license.Inactive() {
			rolled, err := r.rollPeriodForward(ctx, tx, license, now)
			if err != nil {
				return err
			}
			outcome.RolledOver = rolled
		}

		result := tx.Exec(
			`UPDATE licenses
			 SET notes_used = notes_used + 1, updated_at = ?
			 WHERE user_id = ?
			   AND status IN (?, ?)
			   AND (notes_limit < 0 OR notes_used < notes_limit)`,
			now,
			userID,
			domain.BillingStatusActive,
			domain.BillingStatusTrialing,
		)
		if result.Error != nil {
			return result.Error
		}

		updated, err := r.FindByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		outcome.NotesUsed = updated.NotesUsed
		outcome.NotesLimit = updated.NotesLimit

		if result.RowsAffected == 1 {
			outcome.Admitted = true
			outcome.Reason = domain.DenyNone
			return nil
		}

		outcome.Admitted = false
		if updated.Inactive() {
			outcome.Reason = domain.DenySubscriptionInactive
		} else {
			outcome.Reason = domain.DenyQuotaExceeded
		}
		return nil
	})
	if err != nil {
		return domain.AdmitOutcome{}, err
	}
	return outcome, nil
}

// rollPeriodForward resets usage and advances the boundary by whole billing
// cycles until it covers now. The update is guarded by the previously read
// period_end, so a concurrent rollover wins at most once.
func (r *gormRepository) rollPeriodForward(ctx context.Context, tx *gorm.DB, license *domain.License, now time.Time) (bool, error) {
	if license.PeriodEnd.After(now) {
		return false, nil
	}

	start, end := license.PeriodStart, license.PeriodEnd
	for !end.After(now) {
		start = end
		end = end.Add(billingCycle)
	}

	result := tx.Exec(
		`UPDATE licenses
		 SET notes_used = 0, period_start = ?, period_end = ?, updated_at = ?
		 WHERE user_id = ? AND period_end = ?`,
		start,
		end,
		now,
		license.UserID,
		license.PeriodEnd,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *gormRepository) ApplyTransition(ctx context.Context, db *gorm.DB, userID string, tr domain.Transition, now time.Time) (*domain.License, error) {
	var applied *domain.License

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		license, err := r.FindByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if tr.ExpectedStatus != "" && license.Status != tr.ExpectedStatus {
			return domain.ErrStatusConflict
		}

		updates := map[string]any{"updated_at": now}
		if tr.Status != "" {
			if !domain.ValidStatus(tr.Status) {
				return domain.ErrInvalidStatus
			}
			updates["status"] = tr.Status
		}
		if tr.PlanTier != "" {
			if !domain.ValidTier(tr.PlanTier) {
				return domain.ErrInvalidTier
			}
			updates["plan_tier"] = tr.PlanTier
		}
		if tr.NotesLimit != nil {
			updates["notes_limit"] = *tr.NotesLimit
		}

		periodAdvanced := false
		if tr.PeriodStart != nil && tr.PeriodEnd != nil {
			if tr.PeriodStart.After(license.PeriodStart) {
				periodAdvanced = true
			}
			updates["period_start"] = *tr.PeriodStart
			updates["period_end"] = *tr.PeriodEnd
		}
		if tr.ResetUsage || periodAdvanced {
			updates["notes_used"] = 0
		}

		guard := tx.Model(&domain.License{}).Where("id = ?", license.ID)
		if tr.ExpectedStatus != "" {
			guard = guard.Where("status = ?", tr.ExpectedStatus)
		}
		result := guard.Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrStatusConflict
		}

		applied, err = r.FindByUserID(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func (r *gormRepository) ResetElapsedPeriods(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}

	reset := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []domain.License
		err := tx.Where("status IN (?, ?) AND period_end <= ?",
			domain.BillingStatusActive,
			domain.BillingStatusTrialing,
			now,
		).Order("period_end").Limit(limit).Find(&due).Error
		if err != nil {
			return err
		}

		for i := range due {
			rolled, err := r.rollPeriodForward(ctx, tx, &due[i], now)
			if err != nil {
				return err
			}
			if rolled {
				reset++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return reset, nil
}

func (r *gormRepository) CollectUsageStats(ctx context.Context, db *gorm.DB) (domain.UsageStats, error) {
	var rows []struct {
		PlanTier   domain.PlanTier
		Users      int
		NotesUsed  int64
		NotesLimit int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT plan_tier,
		        COUNT(*) AS users,
		        COALESCE(SUM(notes_used), 0) AS notes_used,
		        COALESCE(SUM(CASE WHEN notes_limit < 0 THEN 0 ELSE notes_limit END), 0) AS notes_limit
		 FROM licenses
		 WHERE status IN (?, ?)
		 GROUP BY plan_tier`,
		domain.BillingStatusActive,
		domain.BillingStatusTrialing,
	).Scan(&rows).Error
	if err != nil {
		return domain.UsageStats{}, err
	}

	stats := domain.UsageStats{
		PlanBreakdown: make(map[domain.PlanTier]domain.PlanStats, len(rows)),
	}
	for _, row := range rows {
		stats.TotalUsers += row.Users
		stats.TotalNotesUsed += row.NotesUsed
		stats.PlanBreakdown[row.PlanTier] = domain.PlanStats{
			Users:      row.Users,
			NotesUsed:  row.NotesUsed,
			NotesLimit: row.NotesLimit,
		}
	}
	return stats, nil
}
