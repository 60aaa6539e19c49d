package service

import (
	"context"
	"errors"
	"strings"

	"github.com/connorodea/aidentalnotes/internal/clock"
	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
	"github.com/connorodea/aidentalnotes/internal/observability/metrics"
	quotadomain "github.com/connorodea/aidentalnotes/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// admitRetries bounds local retries on transient storage failures before the
// caller sees a service-unavailable response.
const admitRetries = 2

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    licensedomain.Repository
	Metrics *metrics.GateMetrics     `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    licensedomain.Repository
	metrics *metrics.GateMetrics
}

func NewService(p Params) quotadomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("quota.gate"),
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Admit(ctx context.Context, userID string) (quotadomain.Decision, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return quotadomain.Decision{}, quotadomain.ErrInvalidUser
	}

	var (
		outcome licensedomain.AdmitOutcome
		err     error
	)
	for attempt := 0; attempt <= admitRetries; attempt++ {
		outcome, err = s.repo.Admit(ctx, s.db, userID, s.clock.Now())
		if err == nil || errors.Is(err, licensedomain.ErrLicenseNotFound) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		s.log.Warn("admission attempt failed",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	if err != nil {
		s.metrics.IncAdmission("error")
		return quotadomain.Decision{}, err
	}

	decision := quotadomain.Decision{
		Admitted:   outcome.Admitted,
		Reason:     outcome.Reason,
		NotesUsed:  outcome.NotesUsed,
		NotesLimit: outcome.NotesLimit,
	}
	if decision.Admitted {
		s.metrics.IncAdmission("admitted")
	} else {
		s.metrics.IncAdmission(string(outcome.Reason))
		s.log.Info("admission denied",
			zap.String("user_id", userID),
			zap.String("reason", string(outcome.Reason)),
			zap.Int("notes_used", outcome.NotesUsed),
			zap.Int("notes_limit", outcome.NotesLimit),
		)
	}
	return decision, nil
}
