package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/connorodea/aidentalnotes/internal/clock"
	"github.com/connorodea/aidentalnotes/internal/license/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const initialPeriod = 30 * 24 * time.Hour

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("license.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (*domain.License, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.FindByUserID(ctx, s.db, userID)
}

func (s *Service) Create(ctx context.Context, req domain.CreateLicenseRequest) (*domain.License, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	if !domain.ValidTier(req.PlanTier) {
		return nil, domain.ErrInvalidTier
	}

	now := s.clock.Now()
	license := &domain.License{
		ID:                     s.genID.Generate(),
		UserID:                 userID,
		Email:                  strings.ToLower(strings.TrimSpace(req.Email)),
		PlanTier:               req.PlanTier,
		Status:                 domain.BillingStatusActive,
		NotesLimit:             req.NotesLimit,
		NotesUsed:              0,
		PeriodStart:            now,
		PeriodEnd:              now.Add(initialPeriod),
		ProviderCustomerID:     strings.TrimSpace(req.ProviderCustomerID),
		ProviderSubscriptionID: strings.TrimSpace(req.ProviderSubscriptionID),
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	// Refreshing an existing account only changes the tier and limit. Status,
	// usage and period bounds stay with the stored row; those move through
	// verified subscription events and the period reset sweep, never here.
	existing, err := s.repo.FindByUserID(ctx, s.db, userID)
	switch {
	case err == nil:
		license.Status = existing.Status
		license.NotesUsed = existing.NotesUsed
		license.PeriodStart = existing.PeriodStart
		license.PeriodEnd = existing.PeriodEnd
		if license.Email == "" {
			license.Email = existing.Email
		}
		if license.ProviderCustomerID == "" {
			license.ProviderCustomerID = existing.ProviderCustomerID
		}
		if license.ProviderSubscriptionID == "" {
			license.ProviderSubscriptionID = existing.ProviderSubscriptionID
		}
	case errors.Is(err, domain.ErrLicenseNotFound):
	default:
		return nil, err
	}

	if err := s.repo.Upsert(ctx, s.db, license); err != nil {
		return nil, err
	}

	s.log.Info("license provisioned",
		zap.String("user_id", license.UserID),
		zap.String("plan_tier", string(license.PlanTier)),
		zap.Int("notes_limit", license.NotesLimit),
	)
	return license, nil
}

func (s *Service) UsageStatistics(ctx context.Context) (domain.UsageStats, error) {
	return s.repo.CollectUsageStats(ctx, s.db)
}
