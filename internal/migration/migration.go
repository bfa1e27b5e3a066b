package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/boxoffice/internal/audit/domain"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
	orderdomain "github.com/smallbiznis/boxoffice/internal/order/domain"
	paymentdomain "github.com/smallbiznis/boxoffice/internal/payment/domain"
	screeningdomain "github.com/smallbiznis/boxoffice/internal/screening/domain"
	"gorm.io/gorm"
)

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&inventorydomain.TicketTier{},
		&inventorydomain.TicketHold{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&orderdomain.HoldClaim{},
		&orderdomain.Ticket{},
		&paymentdomain.EventRecord{},
		&screeningdomain.Submission{},
		&screeningdomain.Review{},
		&screeningdomain.Score{},
		&screeningdomain.ConfigRecord{},
		&screeningdomain.VenueRequiredGenre{},
		&screeningdomain.ArtistGenre{},
		&auditdomain.AuditLog{},
	}
}

// Migrate applies the versioned SQL migrations on postgres and falls back to
// AutoMigrate for the embedded and mysql dialects.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		return conn.AutoMigrate(Models()...)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}
