package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/connorodea/aidentalnotes/internal/audit"
	"github.com/connorodea/aidentalnotes/internal/auth"
	"github.com/connorodea/aidentalnotes/internal/clock"
	"github.com/connorodea/aidentalnotes/internal/config"
	"github.com/connorodea/aidentalnotes/internal/events"
	"github.com/connorodea/aidentalnotes/internal/license"
	"github.com/connorodea/aidentalnotes/internal/migration"
	"github.com/connorodea/aidentalnotes/internal/note"
	"github.com/connorodea/aidentalnotes/internal/observability"
	"github.com/connorodea/aidentalnotes/internal/quota"
	"github.com/connorodea/aidentalnotes/internal/scheduler"
	"github.com/connorodea/aidentalnotes/internal/seed"
	"github.com/connorodea/aidentalnotes/internal/server"
	"github.com/connorodea/aidentalnotes/internal/webhook"
	"github.com/connorodea/aidentalnotes/pkg/db"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,
		events.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			if !cfg.IsProduction() {
				return seed.EnsureAdminAccount(conn)
			}
			return nil
		}),

		auth.Module,
		audit.Module,
		license.Module,
		quota.Module,
		webhook.Module,
		note.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}
