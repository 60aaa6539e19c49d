package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/connorodea/aidentalnotes/internal/audit/domain"
	"github.com/connorodea/aidentalnotes/internal/auth/token"
	"github.com/connorodea/aidentalnotes/internal/cache"
	"github.com/connorodea/aidentalnotes/internal/config"
	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
	notedomain "github.com/connorodea/aidentalnotes/internal/note/domain"
	"github.com/connorodea/aidentalnotes/internal/observability/logger"
	"github.com/connorodea/aidentalnotes/internal/observability/metrics"
	"github.com/connorodea/aidentalnotes/internal/observability/tracing"
	quotadomain "github.com/connorodea/aidentalnotes/internal/quota/domain"
	webhookdomain "github.com/connorodea/aidentalnotes/internal/webhook/domain"
)

// licenseCacheTTL bounds staleness of the read-only entitlement endpoint.
const licenseCacheTTL = 5 * time.Second

// Server holds the HTTP handler dependencies.
type Server struct {
	db  *gorm.DB
	cfg config.Config
	log *zap.Logger

	tokenMgr   *token.Manager
	licenseSvc licensedomain.Service
	quotaSvc   quotadomain.Service
	noteSvc    notedomain.Service
	webhookSvc webhookdomain.Service
	auditSvc   auditdomain.Service

	limiter      *rateLimiter
	licenseCache *cache.TTLCache[string, *licensedomain.License]
}

// Params collects the server dependencies from the fx graph.
type Params struct {
	fx.In

	DB         *gorm.DB
	Cfg        config.Config
	Log        *zap.Logger
	TokenMgr   *token.Manager
	LicenseSvc licensedomain.Service
	QuotaSvc   quotadomain.Service
	NoteSvc    notedomain.Service
	WebhookSvc webhookdomain.Service
	AuditSvc   auditdomain.Service
}

func NewServer(p Params) *Server {
	return &Server{
		db:           p.DB,
		cfg:          p.Cfg,
		log:          p.Log.Named("server"),
		tokenMgr:     p.TokenMgr,
		licenseSvc:   p.LicenseSvc,
		quotaSvc:     p.QuotaSvc,
		noteSvc:      p.NoteSvc,
		webhookSvc:   p.WebhookSvc,
		auditSvc:     p.AuditSvc,
		limiter:      newRateLimiter(p.Cfg.RateLimitRequests, p.Cfg.RateLimitWindow),
		licenseCache: cache.NewTTLCache[string, *licensedomain.License](),
	}
}

// NewEngine builds the gin engine with logging and metrics middleware.
func NewEngine(cfg config.Config, log *zap.Logger, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Logger:    log.Named("http"),
		SkipPaths: []string{"/health", "/metrics"},
	}))
	engine.Use(tracing.GinMiddleware())
	engine.Use(metrics.GinMiddleware(httpMetrics))
	return engine
}

// RegisterRoutes mounts all HTTP routes on the engine.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", s.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.POST("/auth/token", s.CreateToken)
	engine.POST("/webhooks/:provider", s.HandleWebhook)

	authed := engine.Group("/", s.AuthRequired())
	authed.POST("/notes", s.GenerateNote)
	authed.POST("/notes/audio", s.GenerateNoteFromAudio)
	authed.GET("/license", s.GetLicense)
	authed.GET("/usage", s.GetUsage)
	admin := authed.Group("/admin", s.OperatorRequired())
	admin.POST("/licenses", s.ProvisionLicense)
	admin.GET("/stats", s.UsageStatistics)
	admin.GET("/audit-logs", s.ListAuditLogs)
	if s.cfg.Environment != "production" {
		authed.POST("/test/cleanup", s.TestCleanup)
	}
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("http server shutting down")
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server, engine *gin.Engine) {
		s.RegisterRoutes(engine)
	}),
	fx.Invoke(RunHTTP),
)
