package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TicketTier is a priced slice of an event's capacity. Its three counters
// always partition TotalTickets.
type TicketTier struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	EventID            snowflake.ID `json:"event_id" gorm:"column:event_id;not null;index"`
	Name               string       `json:"name" gorm:"type:text;not null"`
	PriceCents         int64        `json:"price_cents" gorm:"not null;check:chk_ticket_tiers_price,price_cents >= 0"`
	FeeFlatCents       int64        `json:"fee_flat_cents" gorm:"not null;default:0;check:chk_ticket_tiers_fee_flat,fee_flat_cents >= 0"`
	FeePercentBps      int32        `json:"fee_percent_bps" gorm:"not null;default:0;check:chk_ticket_tiers_fee_bps,fee_percent_bps >= 0"`
	Currency           string       `json:"currency" gorm:"type:text;not null;default:'USD'"`
	TotalTickets       int32        `json:"total_tickets" gorm:"not null;check:chk_ticket_tiers_balance,available_inventory + reserved_inventory + sold_inventory = total_tickets"`
	AvailableInventory int32        `json:"available_inventory" gorm:"not null;check:chk_ticket_tiers_available,available_inventory >= 0"`
	ReservedInventory  int32        `json:"reserved_inventory" gorm:"not null;default:0;check:chk_ticket_tiers_reserved,reserved_inventory >= 0"`
	SoldInventory      int32        `json:"sold_inventory" gorm:"not null;default:0;check:chk_ticket_tiers_sold,sold_inventory >= 0"`
	CreatedAt          time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time    `json:"updated_at" gorm:"not null"`
}

func (TicketTier) TableName() string { return "ticket_tiers" }

// Counts returns the tier's stored counters.
func (t TicketTier) Counts() InventoryCounts {
	return InventoryCounts{
		Total:     t.TotalTickets,
		Available: t.AvailableInventory,
		Reserved:  t.ReservedInventory,
		Sold:      t.SoldInventory,
	}
}

// WithCounts returns a copy of the tier carrying c.
func (t TicketTier) WithCounts(c InventoryCounts) TicketTier {
	t.TotalTickets = c.Total
	t.AvailableInventory = c.Available
	t.ReservedInventory = c.Reserved
	t.SoldInventory = c.Sold
	return t
}

// TicketHold reserves Quantity units of a tier until ExpiresAt.
type TicketHold struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	TierID      snowflake.ID `json:"tier_id" gorm:"column:tier_id;not null;index"`
	Quantity    int32        `json:"quantity" gorm:"not null;check:chk_ticket_holds_quantity,quantity > 0"`
	UserID      *string      `json:"user_id,omitempty" gorm:"column:user_id;type:text"`
	Fingerprint string       `json:"fingerprint" gorm:"type:text;not null;default:''"`
	ExpiresAt   time.Time    `json:"expires_at" gorm:"not null;index"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
}

func (TicketHold) TableName() string { return "ticket_holds" }

// Expired reports whether the hold is past its deadline at now.
func (h TicketHold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// InventoryCounts is one snapshot of a tier's counters.
type InventoryCounts struct {
	Total     int32 `json:"total"`
	Available int32 `json:"available"`
	Reserved  int32 `json:"reserved"`
	Sold      int32 `json:"sold"`
}

// Validate checks non-negativity and that the three states sum to Total.
func (c InventoryCounts) Validate() error {
	if c.Total < 0 || c.Available < 0 || c.Reserved < 0 || c.Sold < 0 {
		return ErrInventoryInvariant
	}
	if int64(c.Available)+int64(c.Reserved)+int64(c.Sold) != int64(c.Total) {
		return ErrInventoryInvariant
	}
	return nil
}

// TierSummary is the read-only aggregate exposed per tier.
type TierSummary struct {
	TierID            string    `json:"tier_id"`
	EventID           string    `json:"event_id"`
	Name              string    `json:"name"`
	PriceCents        int64     `json:"price_cents"`
	Currency          string    `json:"currency"`
	Total             int32     `json:"total"`
	Available         int32     `json:"available"`
	Reserved          int32     `json:"reserved"`
	Sold              int32     `json:"sold"`
	ActiveHolds       int64     `json:"active_holds"`
	PendingHolds      int64     `json:"pending_holds"`
	PendingHoldsUnits int64     `json:"pending_hold_units"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TierDrift compares stored counters with the values derived from issued tickets.
type TierDrift struct {
	TierID   string          `json:"tier_id"`
	Stored   InventoryCounts `json:"stored"`
	Expected InventoryCounts `json:"expected"`
	Drifted  bool            `json:"drifted"`
	// Fields lists the counters that differ.
	Fields []string `json:"fields,omitempty"`
}

// HoldCounts aggregates the holds of one tier at a point in time.
type HoldCounts struct {
	Active       int64
	Expired      int64
	ExpiredUnits int64
	Units        int64
}

// UnitFeeCents is the per-ticket fee: the flat part plus the percentage of
// the price, rounded half up to a whole cent.
func (t TicketTier) UnitFeeCents() int64 {
	return t.FeeFlatCents + (t.PriceCents*int64(t.FeePercentBps)+5000)/10000
}
