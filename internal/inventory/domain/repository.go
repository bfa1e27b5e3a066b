package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository runs inside whatever transaction the caller passes as db.
type Repository interface {
	InsertTier(ctx context.Context, db *gorm.DB, tier *TicketTier) error
	FindTier(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TicketTier, error)
	LockTier(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TicketTier, error)
	UpdateTierCounters(ctx context.Context, db *gorm.DB, tier *TicketTier) error
	ListTiersByEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) ([]TicketTier, error)
	ListTierIDs(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error)

	InsertHold(ctx context.Context, db *gorm.DB, hold *TicketHold) error
	FindHold(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TicketHold, error)
	LockHold(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TicketHold, error)
	DeleteHold(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	ListExpiredHolds(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]TicketHold, error)
	CountHolds(ctx context.Context, db *gorm.DB, tierID snowflake.ID, now time.Time) (HoldCounts, error)

	// CountIssuedTickets counts tickets of the tier that still occupy a seat.
	CountIssuedTickets(ctx context.Context, db *gorm.DB, tierID snowflake.ID) (int64, error)
}
