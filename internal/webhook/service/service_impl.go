package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/connorodea/aidentalnotes/internal/audit/domain"
	"github.com/connorodea/aidentalnotes/internal/clock"
	"github.com/connorodea/aidentalnotes/internal/config"
	"github.com/connorodea/aidentalnotes/internal/events"
	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
	"github.com/connorodea/aidentalnotes/internal/observability/metrics"
	"github.com/connorodea/aidentalnotes/internal/webhook/adapters"
	webhookdomain "github.com/connorodea/aidentalnotes/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	Repo        webhookdomain.Repository
	LicenseRepo licensedomain.Repository
	AuditSvc    auditdomain.Service
	Outbox      *events.Outbox
	Adapters    *adapters.Registry
	Metrics     *metrics.GateMetrics     `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         config.Config
	repo        webhookdomain.Repository
	licenseRepo licensedomain.Repository
	auditSvc    auditdomain.Service
	outbox      *events.Outbox
	adapters    *adapters.Registry
	metrics     *metrics.GateMetrics
}

func NewService(p Params) webhookdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("webhook.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Cfg,
		repo:        p.Repo,
		licenseRepo: p.LicenseRepo,
		auditSvc:    p.AuditSvc,
		outbox:      p.Outbox,
		adapters:    p.Adapters,
		metrics:     p.Metrics,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return webhookdomain.ErrInvalidProvider
	}
	adapter := s.adapters.Adapter(provider)
	if adapter == nil {
		return webhookdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return webhookdomain.ErrInvalidPayload
	}

	// Signature first: an unverifiable delivery must not touch any state.
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.metrics.IncWebhookEvent("rejected")
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, webhookdomain.ErrEventIgnored) {
			return nil
		}
		s.log.Warn("webhook payload rejected",
			zap.String("provider", provider),
			zap.Error(err),
		)
		return err
	}

	now := s.clock.Now()
	received := webhookdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		CustomerID:      event.CustomerID,
		SubscriptionID:  event.SubscriptionID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return webhookdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			// Redelivery of an applied event acknowledges as a no-op.
			s.metrics.IncWebhookEvent("duplicate")
			return webhookdomain.ErrEventAlreadyProcessed
		}
	}

	return s.applyEvent(ctx, stored, event, now)
}

// applyEvent runs the license transition and the processed marker in one
// transaction, so a replay can never re-apply a transition that committed.
func (s *Service) applyEvent(ctx context.Context, stored *webhookdomain.EventRecord, event *webhookdomain.SubscriptionEvent, now time.Time) error {
	var applied *licensedomain.License

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		license, err := s.resolveLicense(ctx, tx, event)
		if err != nil {
			return err
		}

		transition, err := s.buildTransition(event)
		if err != nil {
			return err
		}

		applied, err = s.licenseRepo.ApplyTransition(ctx, tx, license.UserID, transition, now)
		if err != nil {
			return err
		}

		if err := s.repo.MarkProcessed(ctx, tx, stored.ID, now); err != nil {
			return err
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			UserID:    applied.UserID,
			Type:      events.EventLicenseUpdated,
			DedupeKey: stored.Provider + ":" + stored.ProviderEventID,
			Payload: map[string]any{
				"event_type": stored.EventType,
				"plan_tier":  string(applied.PlanTier),
				"status":     string(applied.Status),
			},
		})
	})
	if err != nil {
		if errors.Is(err, licensedomain.ErrLicenseNotFound) {
			s.log.Warn("webhook event references unknown account",
				zap.String("provider", stored.Provider),
				zap.String("provider_event_id", stored.ProviderEventID),
				zap.String("subscription_id", event.SubscriptionID),
			)
			return webhookdomain.ErrUnknownAccount
		}
		s.metrics.IncWebhookEvent("failed")
		return err
	}

	s.metrics.IncWebhookEvent("applied")
	s.writeAuditLog(ctx, stored, applied)
	return nil
}

func (s *Service) resolveLicense(ctx context.Context, tx *gorm.DB, event *webhookdomain.SubscriptionEvent) (*licensedomain.License, error) {
	if event.SubscriptionID != "" {
		license, err := s.licenseRepo.FindByProviderSubscriptionID(ctx, tx, event.SubscriptionID)
		if err == nil {
			return license, nil
		}
		if !errors.Is(err, licensedomain.ErrLicenseNotFound) {
			return nil, err
		}
	}
	if event.CustomerID != "" {
		return s.licenseRepo.FindByProviderCustomerID(ctx, tx, event.CustomerID)
	}
	return nil, licensedomain.ErrLicenseNotFound
}

func (s *Service) buildTransition(event *webhookdomain.SubscriptionEvent) (licensedomain.Transition, error) {
	transition := licensedomain.Transition{Status: event.Status}

	switch event.Type {
	case webhookdomain.EventTypeSubscriptionCreated, webhookdomain.EventTypeSubscriptionUpdated:
		if event.PlanTier != "" {
			transition.PlanTier = event.PlanTier
			limit, ok := s.cfg.LimitForTier(string(event.PlanTier))
			if !ok {
				return licensedomain.Transition{}, webhookdomain.ErrInvalidEvent
			}
			transition.NotesLimit = &limit
		}
		if !event.PeriodStart.IsZero() && !event.PeriodEnd.IsZero() {
			start, end := event.PeriodStart, event.PeriodEnd
			transition.PeriodStart = &start
			transition.PeriodEnd = &end
		}
	case webhookdomain.EventTypeSubscriptionDeleted:
		transition.Status = licensedomain.BillingStatusCanceled
	case webhookdomain.EventTypePaymentFailed:
		transition.Status = licensedomain.BillingStatusPastDue
	default:
		return licensedomain.Transition{}, webhookdomain.ErrInvalidEvent
	}

	return transition, nil
}

func (s *Service) writeAuditLog(ctx context.Context, stored *webhookdomain.EventRecord, applied *licensedomain.License) {
	if s.auditSvc == nil || applied == nil {
		return
	}
	targetID := stored.ProviderEventID
	metadata := map[string]any{
		"provider":          stored.Provider,
		"provider_event_id": stored.ProviderEventID,
		"event_type":        stored.EventType,
		"user_id":           applied.UserID,
		"plan_tier":         string(applied.PlanTier),
		"status":            string(applied.Status),
		"received_at":       stored.ReceivedAt.UTC().Format(time.RFC3339),
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeSystem), "", "license.transition", "webhook_event", &targetID, metadata); err != nil {
		s.log.Warn("audit log write failed", zap.Error(err))
	}
}
