package license

import (
	"github.com/connorodea/aidentalnotes/internal/license/repository"
	"github.com/connorodea/aidentalnotes/internal/license/service"
	"go.uber.org/fx"
)

var Module = fx.Module("license.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
