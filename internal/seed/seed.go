package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	authdomain "github.com/connorodea/aidentalnotes/internal/auth/domain"
	"github.com/connorodea/aidentalnotes/internal/auth/password"
	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
)

const (
	defaultAdminUserID   = "admin"
	defaultAdminEmail    = "admin@aidentalnotes.local"
	defaultAdminPassword = "admin"
	defaultAdminDisplay  = "Clinic Admin"

	defaultStarterLimit = 100
	defaultPeriod       = 30 * 24 * time.Hour
)

// EnsureAdminAccount seeds a local admin user with a starter license so a
// fresh install can sign in and generate notes before any webhook arrives.
func EnsureAdminAccount(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := ensureAdminUserTx(ctx, tx, node)
		if err != nil {
			return err
		}
		return ensureStarterLicenseTx(ctx, tx, node, user)
	})
}

func ensureAdminUserTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (authdomain.User, error) {
	var user authdomain.User
	err := tx.WithContext(ctx).Where("user_id = ?", defaultAdminUserID).First(&user).Error
	if err == nil {
		if !user.IsOperator {
			user.IsOperator = true
			err = tx.WithContext(ctx).Model(&user).Update("is_operator", true).Error
		}
		return user, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return user, err
	}

	hashed, err := password.Hash(defaultAdminPassword)
	if err != nil {
		return user, err
	}
	now := time.Now().UTC()
	user = authdomain.User{
		ID:           node.Generate(),
		UserID:       defaultAdminUserID,
		Email:        strings.ToLower(defaultAdminEmail),
		DisplayName:  defaultAdminDisplay,
		PasswordHash: &hashed,
		IsOperator:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return user, err
	}
	return user, nil
}

func ensureStarterLicenseTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, user authdomain.User) error {
	var existing licensedomain.License
	err := tx.WithContext(ctx).Where("user_id = ?", user.UserID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	license := licensedomain.License{
		ID:          node.Generate(),
		UserID:      user.UserID,
		Email:       user.Email,
		PlanTier:    licensedomain.PlanStarter,
		Status:      licensedomain.BillingStatusActive,
		NotesLimit:  defaultStarterLimit,
		NotesUsed:   0,
		PeriodStart: now,
		PeriodEnd:   now.Add(defaultPeriod),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return tx.WithContext(ctx).Create(&license).Error
}
