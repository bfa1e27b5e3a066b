package migration

import (
	"github.com/smallbiznis/boxoffice/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
		if err := Migrate(conn); err != nil {
			return err
		}
		created, err := seed.EnsureScreeningConfig(conn)
		if err != nil {
			return err
		}
		if created {
			log.Named("migrations").Info("seeded default screening config")
		}
		return nil
	}),
)
