package audit

import (
	"github.com/connorodea/aidentalnotes/internal/audit/repository"
	"github.com/connorodea/aidentalnotes/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
