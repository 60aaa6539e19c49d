package quota

import (
	"github.com/connorodea/aidentalnotes/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.gate",
	fx.Provide(service.NewService),
)
