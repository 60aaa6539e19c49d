package auth

import (
	"github.com/connorodea/aidentalnotes/internal/auth/token"
	"github.com/connorodea/aidentalnotes/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(func(cfg config.Config) (*token.Manager, error) {
		return token.NewManager(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTExpiration)
	}),
)
