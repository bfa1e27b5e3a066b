package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	CreateTier(ctx context.Context, req CreateTierRequest) (*TicketTier, error)
	GetTier(ctx context.Context, id snowflake.ID) (*TicketTier, error)
	IncreaseCapacity(ctx context.Context, tierID snowflake.ID, delta int32) (*TicketTier, error)
	GetTierSummary(ctx context.Context, tierID snowflake.ID) (*TierSummary, error)
	ListEventTierSummaries(ctx context.Context, eventID snowflake.ID) ([]TierSummary, error)

	CreateHold(ctx context.Context, req CreateHoldRequest) (*TicketHold, error)
	GetHold(ctx context.Context, id snowflake.ID) (*TicketHold, error)
	// LockHoldTx reads the hold with a row lock held by the caller's transaction.
	LockHoldTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*TicketHold, error)
	// ReleaseHold returns false when the hold no longer exists.
	ReleaseHold(ctx context.Context, id snowflake.ID) (bool, error)
	// ConvertHoldToSale returns false when the hold no longer exists.
	ConvertHoldToSale(ctx context.Context, id snowflake.ID) (bool, error)
	// ConvertHoldToSaleTx converts within the caller's transaction and returns
	// the hold that was consumed.
	ConvertHoldToSaleTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*TicketHold, bool, error)

	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]TicketHold, error)
	ExpireHolds(ctx context.Context, limit int) (int, error)

	DiffTierInventory(ctx context.Context, tierID snowflake.ID) (*TierDrift, error)
	RecalculateTierInventory(ctx context.Context, tierID snowflake.ID) (*TierDrift, error)
	ListTierIDs(ctx context.Context, afterID snowflake.ID, limit int) ([]snowflake.ID, error)
}

type CreateTierRequest struct {
	EventID       string `json:"event_id"`
	Name          string `json:"name"`
	TotalTickets  int32  `json:"total_tickets"`
	PriceCents    int64  `json:"price_cents"`
	FeeFlatCents  int64  `json:"fee_flat_cents"`
	FeePercentBps int32  `json:"fee_percent_bps"`
	Currency      string `json:"currency"`
}

type CreateHoldRequest struct {
	TierID      snowflake.ID
	Quantity    int32
	UserID      *string
	Fingerprint string
	// Duration overrides the configured hold duration when positive.
	Duration time.Duration
}

// HoldRateLimiter throttles hold creation per client fingerprint.
type HoldRateLimiter interface {
	AllowHold(ctx context.Context, fingerprint string) (bool, error)
}

var (
	ErrInvalidEvent       = errors.New("invalid_event")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidTotal       = errors.New("invalid_total_tickets")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidFee         = errors.New("invalid_fee")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidCapacity    = errors.New("invalid_capacity_delta")
	ErrInvalidID          = errors.New("invalid_id")
	ErrTierNotFound       = errors.New("tier_not_found")
	ErrHoldNotFound       = errors.New("hold_not_found")
	ErrRateLimited        = errors.New("rate_limited")
	ErrInventoryInvariant = errors.New("inventory_invariant_violation")

	ErrInsufficientInventory = errors.New("insufficient_inventory")
)

// InsufficientInventoryError is the expected sold-out outcome of CreateHold.
type InsufficientInventoryError struct {
	Requested int32
	Available int32
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient_inventory: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}
