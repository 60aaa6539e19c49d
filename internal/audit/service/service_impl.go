package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/connorodea/aidentalnotes/internal/audit/domain"
	"github.com/connorodea/aidentalnotes/internal/auditcontext"
	"github.com/connorodea/aidentalnotes/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) AuditLog(ctx context.Context, actorType string, actorID string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return nil
	}

	entry := &domain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  strings.TrimSpace(actorType),
		Action:     action,
		TargetType: strings.TrimSpace(targetType),
		TargetID:   targetID,
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  s.clock.Now(),
	}
	if entry.ActorType == "" {
		entry.ActorType = string(domain.ActorTypeSystem)
	}
	if actorID = strings.TrimSpace(actorID); actorID != "" {
		entry.ActorID = &actorID
	}
	for key, value := range metadata {
		if strings.TrimSpace(key) == "" {
			continue
		}
		entry.Metadata[key] = value
	}

	if ip := auditcontext.IPAddressFromContext(ctx); ip != "" {
		entry.IPAddress = &ip
	}
	if ua := auditcontext.UserAgentFromContext(ctx); ua != "" {
		entry.UserAgent = &ua
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		entry.Metadata["request_id"] = requestID
	}

	return s.repo.Insert(ctx, s.db, entry)
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	return s.repo.List(ctx, s.db, filter)
}
