package note

import (
	notedomain "github.com/connorodea/aidentalnotes/internal/note/domain"
	"github.com/connorodea/aidentalnotes/internal/note/providers"
	"github.com/connorodea/aidentalnotes/internal/note/service"
	"go.uber.org/fx"
)

var Module = fx.Module("note.service",
	fx.Provide(func() notedomain.Transcriber { return providers.UnconfiguredTranscriber{} }),
	fx.Provide(func() notedomain.Generator { return providers.UnconfiguredGenerator{} }),
	fx.Provide(service.NewService),
)
