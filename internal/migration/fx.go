package migration

import (
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply migrates postgres databases and seeds the default organization.
// Other dialects are migrated by their callers.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if conn.Dialector.Name() != "postgres" {
		log.Info("skipping sql migrations", zap.String("dialect", conn.Dialector.Name()))
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}

	if err := RunMigrations(sqlDB); err != nil {
		return err
	}

	if cfg.Bootstrap.EnsureDefaultOrgAndUser {
		return seed.EnsureMainOrgAndAdmin(conn, cfg.DefaultOrgID, seed.Admin{
			Email:    cfg.Bootstrap.AdminEmail,
			Password: cfg.Bootstrap.AdminPassword,
		})
	}
	_, err = seed.EnsureMainOrg(conn, cfg.DefaultOrgID)
	return err
}
