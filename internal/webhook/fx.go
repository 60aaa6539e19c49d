package webhook

import (
	"github.com/connorodea/aidentalnotes/internal/config"
	"github.com/connorodea/aidentalnotes/internal/webhook/adapters"
	"github.com/connorodea/aidentalnotes/internal/webhook/adapters/stripe"
	"github.com/connorodea/aidentalnotes/internal/webhook/repository"
	"github.com/connorodea/aidentalnotes/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) *adapters.Registry {
		registry := adapters.NewRegistry()
		registry.Register("stripe", stripe.New(cfg.StripeWebhookSecret, cfg.WebhookTolerance))
		return registry
	}),
	fx.Provide(service.NewService),
)
