package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/connorodea/aidentalnotes/internal/license/domain"
)

func setupLicenseTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS licenses (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL,
			plan_tier TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			notes_limit INTEGER NOT NULL,
			notes_used INTEGER NOT NULL DEFAULT 0,
			period_start DATETIME NOT NULL,
			period_end DATETIME NOT NULL,
			provider_customer_id TEXT,
			provider_subscription_id TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	).Error; err != nil {
		t.Fatalf("create licenses: %v", err)
	}
	return db
}

func insertLicense(t *testing.T, db *gorm.DB, license domain.License) {
	t.Helper()
	if license.ID == 0 {
		license.ID = 1
	}
	if license.Email == "" {
		license.Email = license.UserID + "@example.com"
	}
	if err := db.Create(&license).Error; err != nil {
		t.Fatalf("insert license: %v", err)
	}
}

func TestAdmitConsumesQuotaAtBoundary(t *testing.T) {
	db := setupLicenseTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	insertLicense(t, db, domain.License{
		UserID:      "u1",
		PlanTier:    domain.PlanStarter,
		Status:      domain.BillingStatusActive,
		NotesLimit:  100,
		NotesUsed:   99,
		PeriodStart: now.Add(-24 * time.Hour),
		PeriodEnd:   now.Add(29 * 24 * time.Hour),
	})

	repo := Provide()
	outcome, err := repo.Admit(context.Background(), db, "u1", now)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !outcome.Admitted {
		t.Fatalf("expected admission at 99/100, got denial %q", outcome.Reason)
	}
	if outcome.NotesUsed != 100 {
		t.Fatalf("notes_used = %d, want 100", outcome.NotesUsed)
	}

	outcome, err = repo.Admit(context.Background(), db, "u1", now)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if outcome.Admitted {
		t.Fatal("expected denial at 100/100")
	}
	if outcome.Reason != domain.DenyQuotaExceeded {
		t.Fatalf("reason = %q, want %q", outcome.Reason, domain.DenyQuotaExceeded)
	}
	if outcome.NotesUsed != 100 {
		t.Fatalf("denied admission mutated notes_used to %d", outcome.NotesUsed)
	}
}

func TestAdmitConcurrentRequestsAdmitExactlyOne(t *testing.T) {
	db := setupLicenseTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	insertLicense(t, db, domain.License{
		UserID:      "u1",
		PlanTier:    domain.PlanStarter,
		Status:      domain.BillingStatusActive,
		NotesLimit:  100,
		NotesUsed:   99,
		PeriodStart: now.Add(-24 * time.Hour),
		PeriodEnd:   now.Add(29 * 24 * time.Hour),
	})

	repo := Provide()
	const workers = 8

	var wg sync.WaitGroup
	admitted := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := repo.Admit(context.Background(), db, "u1", now)
			if err != nil {
				t.Errorf("admit: %v", err)
				return
			}
			admitted <- outcome.Admitted
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for ok := range admitted {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("admitted %d requests, want exactly 1", count)
	}

	var license domain.License
	if err := db.Where("user_id = ?", "u1").First(&license).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if license.NotesUsed != 100 {
		t.Fatalf("notes_used = %d, want 100", license.NotesUsed)
	}
}

func TestAdmitDeniesInactiveSubscription(t *testing.T) {
	db := setupLicenseTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i, status := range []domain.BillingStatus{domain.BillingStatusPastDue, domain.BillingStatusCanceled} {
		userID := fmt.Sprintf("u%d", i+1)
		insertLicense(t, db, domain.License{
			ID:          snowflake.ID(i + 1),
			UserID:      userID,
			PlanTier:    domain.PlanPro,
			Status:      status,
			NotesLimit:  500,
			NotesUsed:   3,
			PeriodStart: now.Add(-24 * time.Hour),
			PeriodEnd:   now.Add(29 * 24 * time.Hour),
		})

		outcome, err := Provide().Admit(context.Background(), db, userID, now)
		if err != nil {
			t.Fatalf("admit %s: %v", status, err)
		}
		if outcome.Admitted {
			t.Fatalf("expected denial for %s license", status)
		}
		if outcome.Reason != domain.DenySubscriptionInactive {
			t.Fatalf("reason = %q, want %q", outcome.Reason, domain.DenySubscriptionInactive)
		}
		if outcome.NotesUsed != 3 {
			t.Fatalf("denied admission mutated notes_used to %d", outcome.NotesUsed)
		}
	}
}

func TestAdmitUnlimitedTier(t *testing.T) {
	db := setupLicenseTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	insertLicense(t, db, domain.License{
		UserID:      "u1",
		PlanTier:    domain.PlanEnterprise,
		Status:      domain.BillingStatusActive,
		NotesLimit:  domain.UnlimitedNotes,
		NotesUsed:   100000,
		PeriodStart: now.Add(-24 * time.Hour),
		PeriodEnd:   now.Add(29 * 24 * time.Hour),
	})

	outcome, err := Provide().Admit(context.Background(), db, "u1", now)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !outcome.Admitted {
		t.Fatalf("expected unlimited admission, got denial %q", outcome.Reason)
	}
	if outcome.NotesUsed != 100001 {
		t.Fatalf("notes_used = %d, want 100001", outcome.NotesUsed)
	}
}

func TestAdmitRollsElapsedPeriodForward(t *testing.T) {
	db := setupLicenseTestDB(t)
	periodStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.Add(30 * 24 * time.Hour)
	// Two full cycles have elapsed plus a partial third.
	now := periodEnd.Add(33 * 24 * time.Hour)

	insertLicense(t, db, domain.License{
		UserID:      "u1",
		PlanTier:    domain.PlanStarter,
		Status:      domain.BillingStatusActive,
		NotesLimit:  100,
		NotesUsed:   100,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})

	outcome, err := Provide().Admit(context.Background(), db, "u1", now)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !outcome.RolledOver {
		t.Fatal("expected period rollover")
	}
	if !outcome.Admitted {
		t.Fatalf("expected admission after rollover, got denial %q", outcome.Reason)
	}
	if outcome.NotesUsed != 1 {
		t.Fatalf("notes_used = %d, want 1", outcome.NotesUsed)
	}

	var license domain.License
	if err := db.Where("user_id = ?", "u1").First(&license).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !license.PeriodEnd.After(now) {
		t.Fatalf("period_end %v not after now %v", license.PeriodEnd, now)
	}
	if !license.PeriodStart.After(periodStart) {
		t.Fatal("period_start did not advance")
	}
	if got := license.PeriodEnd.Sub(license.PeriodStart); got != 30*24*time.Hour {
		t.Fatalf("period length = %v, want 720h", got)
	}
	// Boundaries stay aligned to the original anchor.
	if license.PeriodStart.Sub(periodStart)%(30*24*time.Hour) != 0 {
		t.Fatalf("period_start %v is off the cycle grid", license.PeriodStart)
	}
}

func TestAdmitLeavesCanceledPeriodUntouched(t *testing.T) {
	db := setupLicenseTestDB(t)
	periodStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.Add(30 * 24 * time.Hour)
	now := periodEnd.Add(10 * 24 * time.Hour)

	insertLicense(t, db, domain.License{
		UserID:      "u1",
		PlanTier:    domain.PlanStarter,
		Status:      domain.BillingStatusCanceled,
		NotesLimit:  100,
		NotesUsed:   73,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})

	outcome, err := Provide().Admit(context.Background(), db, "u1", now)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if outcome.Admitted {
		t.Fatal("canceled license admitted")
	}
	if outcome.Reason != domain.DenySubscriptionInactive {
		t.Fatalf("reason = %q, want subscription_inactive", outcome.Reason)
	}
	if outcome.RolledOver {
		t.Fatal("denied admission rolled the period over")
	}

	var license domain.License
	if err := db.Where("user_id = ?", "u1").First(&license).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if license.NotesUsed != 73 {
		t.Fatalf("notes_used = %d, denial must not reset usage", license.NotesUsed)
	}
	if !license.PeriodStart.Equal(periodStart) || !license.PeriodEnd.Equal(periodEnd) {
		t.Fatalf("period moved to %v..%v", license.PeriodStart, license.PeriodEnd)
	}
}

func TestApplyTransitionHonorsExpectedStatus(t *testing.T) {
	db := setupLicenseTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	insertLicense(t, db, domain.License{
		UserID:      "u1",
		PlanTier:    domain.PlanStarter,
		Status:      domain.BillingStatusCanceled,
		NotesLimit:  100,
		NotesUsed:   10,
		PeriodStart: now.Add(-24 * time.Hour),
		PeriodEnd:   now.Add(29 * 24 * time.Hour),
	})

	_, err := Provide().ApplyTransition(context.Background(), db, "u1", domain.Transition{
		Status:         domain.BillingStatusPastDue,
		ExpectedStatus: domain.BillingStatusActive,
	}, now)
	if !errors.Is(err, domain.ErrStatusConflict) {
		t.Fatalf("expected status conflict, got %v", err)
	}

	var license domain.License
	if err := db.Where("user_id = ?", "u1").First(&license).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if license.Status != domain.BillingStatusCanceled {
		t.Fatalf("status mutated to %q", license.Status)
	}
}

func TestApplyTransitionUpgradeKeepsUsageWithinPeriod(t *testing.T) {
	db := setupLicenseTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	periodStart := now.Add(-24 * time.Hour)
	periodEnd := now.Add(29 * 24 * time.Hour)
	insertLicense(t, db, domain.License{
		UserID:      "u1",
		PlanTier:    domain.PlanStarter,
		Status:      domain.BillingStatusActive,
		NotesLimit:  100,
		NotesUsed:   50,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})

	limit := 500
	applied, err := Provide().ApplyTransition(context.Background(), db, "u1", domain.Transition{
		Status:      domain.BillingStatusActive,
		PlanTier:    domain.PlanPro,
		NotesLimit:  &limit,
		PeriodStart: &periodStart,
		PeriodEnd:   &periodEnd,
	}, now)
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if applied.PlanTier != domain.PlanPro || applied.NotesLimit != 500 {
		t.Fatalf("tier/limit = %s/%d, want pro/500", applied.PlanTier, applied.NotesLimit)
	}
	if applied.NotesUsed != 50 {
		t.Fatalf("mid-period upgrade reset notes_used to %d, want 50", applied.NotesUsed)
	}
}

func TestApplyTransitionAdvancedPeriodResetsUsage(t *testing.T) {
	db := setupLicenseTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	periodStart := now.Add(-31 * 24 * time.Hour)
	periodEnd := now.Add(-24 * time.Hour)
	insertLicense(t, db, domain.License{
		UserID:      "u1",
		PlanTier:    domain.PlanStarter,
		Status:      domain.BillingStatusActive,
		NotesLimit:  100,
		NotesUsed:   87,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})

	newStart := periodEnd
	newEnd := newStart.Add(30 * 24 * time.Hour)
	applied, err := Provide().ApplyTransition(context.Background(), db, "u1", domain.Transition{
		Status:      domain.BillingStatusActive,
		PeriodStart: &newStart,
		PeriodEnd:   &newEnd,
	}, now)
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if applied.NotesUsed != 0 {
		t.Fatalf("notes_used = %d after period advance, want 0", applied.NotesUsed)
	}
}

func TestResetElapsedPeriods(t *testing.T) {
	db := setupLicenseTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	due := domain.License{
		UserID:      "due",
		PlanTier:    domain.PlanStarter,
		Status:      domain.BillingStatusActive,
		NotesLimit:  100,
		NotesUsed:   100,
		PeriodStart: now.Add(-61 * 24 * time.Hour),
		PeriodEnd:   now.Add(-31 * 24 * time.Hour),
	}
	due.ID = snowflake.ID(1)
	insertLicense(t, db, due)

	current := domain.License{
		UserID:      "current",
		PlanTier:    domain.PlanPro,
		Status:      domain.BillingStatusActive,
		NotesLimit:  500,
		NotesUsed:   12,
		PeriodStart: now.Add(-24 * time.Hour),
		PeriodEnd:   now.Add(29 * 24 * time.Hour),
	}
	current.ID = snowflake.ID(2)
	insertLicense(t, db, current)

	canceled := domain.License{
		UserID:      "canceled",
		PlanTier:    domain.PlanStarter,
		Status:      domain.BillingStatusCanceled,
		NotesLimit:  100,
		NotesUsed:   40,
		PeriodStart: now.Add(-61 * 24 * time.Hour),
		PeriodEnd:   now.Add(-31 * 24 * time.Hour),
	}
	canceled.ID = snowflake.ID(3)
	insertLicense(t, db, canceled)

	reset, err := Provide().ResetElapsedPeriods(context.Background(), db, now, 50)
	if err != nil {
		t.Fatalf("reset elapsed periods: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset %d licenses, want 1", reset)
	}

	var reloaded domain.License
	if err := db.Where("user_id = ?", "due").First(&reloaded).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.NotesUsed != 0 {
		t.Fatalf("due license notes_used = %d, want 0", reloaded.NotesUsed)
	}
	if !reloaded.PeriodEnd.After(now) {
		t.Fatal("due license period_end did not advance past now")
	}

	var reloadedCurrent domain.License
	if err := db.Where("user_id = ?", "current").First(&reloadedCurrent).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloadedCurrent.NotesUsed != 12 {
		t.Fatalf("current license notes_used = %d, want 12", reloadedCurrent.NotesUsed)
	}
}

func TestCollectUsageStats(t *testing.T) {
	db := setupLicenseTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	rows := []domain.License{
		{UserID: "a", PlanTier: domain.PlanStarter, Status: domain.BillingStatusActive, NotesLimit: 100, NotesUsed: 10},
		{UserID: "b", PlanTier: domain.PlanStarter, Status: domain.BillingStatusActive, NotesLimit: 100, NotesUsed: 20},
		{UserID: "c", PlanTier: domain.PlanPro, Status: domain.BillingStatusTrialing, NotesLimit: 500, NotesUsed: 5},
		{UserID: "d", PlanTier: domain.PlanPro, Status: domain.BillingStatusCanceled, NotesLimit: 500, NotesUsed: 99},
	}
	for i := range rows {
		rows[i].ID = snowflake.ID(i + 1)
		rows[i].PeriodStart = now.Add(-24 * time.Hour)
		rows[i].PeriodEnd = now.Add(29 * 24 * time.Hour)
		insertLicense(t, db, rows[i])
	}

	stats, err := Provide().CollectUsageStats(context.Background(), db)
	if err != nil {
		t.Fatalf("collect stats: %v", err)
	}
	if stats.TotalUsers != 3 {
		t.Fatalf("total users = %d, want 3", stats.TotalUsers)
	}
	if stats.TotalNotesUsed != 35 {
		t.Fatalf("total notes used = %d, want 35", stats.TotalNotesUsed)
	}
	starter := stats.PlanBreakdown[domain.PlanStarter]
	if starter.Users != 2 || starter.NotesUsed != 30 || starter.NotesLimit != 200 {
		t.Fatalf("starter breakdown = %+v", starter)
	}
}
