// Package scheduler runs periodic maintenance over license periods and the
// webhook dedup window.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/connorodea/aidentalnotes/internal/clock"
	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
	"github.com/connorodea/aidentalnotes/internal/observability/metrics"
	webhookdomain "github.com/connorodea/aidentalnotes/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config controls the maintenance worker loop.
type Config struct {
	BatchSize     int
	PollInterval  time.Duration
	RetentionDays int
}

func DefaultConfig() Config {
	return Config{
		BatchSize:     50,
		PollInterval:  time.Minute,
		RetentionDays: 30,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = defaults.RetentionDays
	}
	return c
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	LicenseRepo licensedomain.Repository
	WebhookRepo webhookdomain.Repository
	Metrics     *metrics.GateMetrics     `optional:"true"`
	Config      Config                   `optional:"true"`
}

// Worker rolls elapsed billing periods forward and purges webhook events
// past the dedup retention window.
type Worker struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	licenseRepo licensedomain.Repository
	webhookRepo webhookdomain.Repository
	metrics     *metrics.GateMetrics
	cfg         Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:          p.DB,
		log:         p.Log.Named("scheduler"),
		clock:       p.Clock,
		licenseRepo: p.LicenseRepo,
		webhookRepo: p.WebhookRepo,
		metrics:     p.Metrics,
		cfg:         p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("maintenance run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	if w.db == nil || w.licenseRepo == nil || w.webhookRepo == nil {
		return errors.New("scheduler_unavailable")
	}

	now := w.clock.Now()

	reset, err := w.licenseRepo.ResetElapsedPeriods(ctx, w.db, now, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	if reset > 0 {
		w.metrics.AddPeriodResets(reset)
		w.log.Info("billing periods rolled forward", zap.Int("licenses", reset))
	}

	cutoff := now.AddDate(0, 0, -w.cfg.RetentionDays)
	purged, err := w.webhookRepo.PurgeOlderThan(ctx, w.db, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		w.log.Info("webhook events purged", zap.Int64("events", purged))
	}

	return nil
}
