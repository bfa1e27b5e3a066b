package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
	dbpkg "github.com/smallbiznis/boxoffice/pkg/db"
	"gorm.io/gorm"
)

const tierColumns = `id, event_id, name, price_cents, fee_flat_cents, fee_percent_bps, currency,
	total_tickets, available_inventory, reserved_inventory, sold_inventory, created_at, updated_at`

const holdColumns = `id, tier_id, quantity, user_id, fingerprint, expires_at, created_at`

type repo struct{}

func Provide() inventorydomain.Repository {
	return &repo{}
}

func (r *repo) InsertTier(ctx context.Context, db *gorm.DB, tier *inventorydomain.TicketTier) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ticket_tiers (`+tierColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tier.ID,
		tier.EventID,
		tier.Name,
		tier.PriceCents,
		tier.FeeFlatCents,
		tier.FeePercentBps,
		tier.Currency,
		tier.TotalTickets,
		tier.AvailableInventory,
		tier.ReservedInventory,
		tier.SoldInventory,
		tier.CreatedAt,
		tier.UpdatedAt,
	).Error
}

func (r *repo) FindTier(ctx context.Context, db *gorm.DB, id snowflake.ID) (*inventorydomain.TicketTier, error) {
	return r.findTier(ctx, db, id, "")
}

// LockTier reads the tier with an exclusive row lock held until the
// surrounding transaction ends.
func (r *repo) LockTier(ctx context.Context, db *gorm.DB, id snowflake.ID) (*inventorydomain.TicketTier, error) {
	return r.findTier(ctx, db, id, dbpkg.ForUpdate(db))
}

func (r *repo) findTier(ctx context.Context, db *gorm.DB, id snowflake.ID, suffix string) (*inventorydomain.TicketTier, error) {
	var tier inventorydomain.TicketTier
	err := db.WithContext(ctx).Raw(
		`SELECT `+tierColumns+` FROM ticket_tiers WHERE id = ?`+suffix,
		id,
	).Scan(&tier).Error
	if err != nil {
		return nil, err
	}
	if tier.ID == 0 {
		return nil, nil
	}
	return &tier, nil
}

func (r *repo) UpdateTierCounters(ctx context.Context, db *gorm.DB, tier *inventorydomain.TicketTier) error {
	return db.WithContext(ctx).Exec(
		`UPDATE ticket_tiers
		 SET total_tickets = ?, available_inventory = ?, reserved_inventory = ?, sold_inventory = ?, updated_at = ?
		 WHERE id = ?`,
		tier.TotalTickets,
		tier.AvailableInventory,
		tier.ReservedInventory,
		tier.SoldInventory,
		tier.UpdatedAt,
		tier.ID,
	).Error
}

func (r *repo) ListTiersByEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) ([]inventorydomain.TicketTier, error) {
	var items []inventorydomain.TicketTier
	err := db.WithContext(ctx).Raw(
		`SELECT `+tierColumns+` FROM ticket_tiers WHERE event_id = ? ORDER BY price_cents ASC, id ASC`,
		eventID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListTierIDs(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM ticket_tiers WHERE id > ? ORDER BY id ASC LIMIT ?`,
		afterID,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) InsertHold(ctx context.Context, db *gorm.DB, hold *inventorydomain.TicketHold) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ticket_holds (`+holdColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hold.ID,
		hold.TierID,
		hold.Quantity,
		hold.UserID,
		hold.Fingerprint,
		hold.ExpiresAt,
		hold.CreatedAt,
	).Error
}

func (r *repo) FindHold(ctx context.Context, db *gorm.DB, id snowflake.ID) (*inventorydomain.TicketHold, error) {
	return r.findHold(ctx, db, id, "")
}

func (r *repo) LockHold(ctx context.Context, db *gorm.DB, id snowflake.ID) (*inventorydomain.TicketHold, error) {
	return r.findHold(ctx, db, id, dbpkg.ForUpdate(db))
}

func (r *repo) findHold(ctx context.Context, db *gorm.DB, id snowflake.ID, suffix string) (*inventorydomain.TicketHold, error) {
	var hold inventorydomain.TicketHold
	err := db.WithContext(ctx).Raw(
		`SELECT `+holdColumns+` FROM ticket_holds WHERE id = ?`+suffix,
		id,
	).Scan(&hold).Error
	if err != nil {
		return nil, err
	}
	if hold.ID == 0 {
		return nil, nil
	}
	return &hold, nil
}

// DeleteHold returns the number of rows removed; zero means another caller
// already consumed the hold.
func (r *repo) DeleteHold(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM ticket_holds WHERE id = ?`, id)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) ListExpiredHolds(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]inventorydomain.TicketHold, error) {
	var items []inventorydomain.TicketHold
	err := db.WithContext(ctx).Raw(
		`SELECT `+holdColumns+` FROM ticket_holds
		 WHERE expires_at <= ?
		 ORDER BY expires_at ASC, id ASC
		 LIMIT ?`,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountHolds(ctx context.Context, db *gorm.DB, tierID snowflake.ID, now time.Time) (inventorydomain.HoldCounts, error) {
	var row struct {
		Active       int64
		Expired      int64
		ExpiredUnits int64
		Units        int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0) AS expired,
			COALESCE(SUM(CASE WHEN expires_at <= ? THEN quantity ELSE 0 END), 0) AS expired_units,
			COALESCE(SUM(quantity), 0) AS units
		 FROM ticket_holds WHERE tier_id = ?`,
		now,
		now,
		now,
		tierID,
	).Scan(&row).Error
	if err != nil {
		return inventorydomain.HoldCounts{}, err
	}
	return inventorydomain.HoldCounts{
		Active:       row.Active,
		Expired:      row.Expired,
		ExpiredUnits: row.ExpiredUnits,
		Units:        row.Units,
	}, nil
}

func (r *repo) CountIssuedTickets(ctx context.Context, db *gorm.DB, tierID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM tickets WHERE tier_id = ? AND status IN ('valid', 'used')`,
		tierID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
