package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boxoffice/internal/clock"
	"github.com/smallbiznis/boxoffice/internal/config"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
	"github.com/smallbiznis/boxoffice/internal/observability/logger"
	"github.com/smallbiznis/boxoffice/internal/observability/metrics"
	dbpkg "github.com/smallbiznis/boxoffice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultExpiredBatch = 100
	maxFeePercentBps    = 10_000

	releaseReasonReleased = "released"
	releaseReasonExpired  = "expired"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     inventorydomain.Repository
	Checkout *config.CheckoutConfigHolder
	Metrics  *metrics.Metrics                `optional:"true"`
	Limiter  inventorydomain.HoldRateLimiter `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     inventorydomain.Repository
	checkout *config.CheckoutConfigHolder
	metrics  *metrics.Metrics
	limiter  inventorydomain.HoldRateLimiter
}

func New(p Params) inventorydomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("inventory.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		checkout: p.Checkout,
		metrics:  p.Metrics,
		limiter:  p.Limiter,
	}
}

func (s *Service) CreateTier(ctx context.Context, req inventorydomain.CreateTierRequest) (*inventorydomain.TicketTier, error) {
	eventID, err := parseID(req.EventID)
	if err != nil || eventID == 0 {
		return nil, inventorydomain.ErrInvalidEvent
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, inventorydomain.ErrInvalidName
	}
	if req.TotalTickets < 0 {
		return nil, inventorydomain.ErrInvalidTotal
	}
	if req.PriceCents < 0 {
		return nil, inventorydomain.ErrInvalidPrice
	}
	if req.FeeFlatCents < 0 || req.FeePercentBps < 0 || req.FeePercentBps > maxFeePercentBps {
		return nil, inventorydomain.ErrInvalidFee
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return nil, inventorydomain.ErrInvalidCurrency
	}

	now := s.clock.Now()
	tier := &inventorydomain.TicketTier{
		ID:                 s.genID.Generate(),
		EventID:            eventID,
		Name:               name,
		PriceCents:         req.PriceCents,
		FeeFlatCents:       req.FeeFlatCents,
		FeePercentBps:      req.FeePercentBps,
		Currency:           currency,
		TotalTickets:       req.TotalTickets,
		AvailableInventory: req.TotalTickets,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.InsertTier(ctx, s.db, tier); err != nil {
		return nil, err
	}

	s.log.Info("tier created",
		zap.String("tier_id", tier.ID.String()),
		zap.String("event_id", tier.EventID.String()),
		zap.Int32("total_tickets", tier.TotalTickets),
	)
	return tier, nil
}

func (s *Service) GetTier(ctx context.Context, id snowflake.ID) (*inventorydomain.TicketTier, error) {
	if id == 0 {
		return nil, inventorydomain.ErrInvalidID
	}
	tier, err := s.repo.FindTier(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, inventorydomain.ErrTierNotFound
	}
	return tier, nil
}

// IncreaseCapacity grows a tier; new units become available immediately.
func (s *Service) IncreaseCapacity(ctx context.Context, tierID snowflake.ID, delta int32) (*inventorydomain.TicketTier, error) {
	if tierID == 0 {
		return nil, inventorydomain.ErrInvalidID
	}
	if delta <= 0 {
		return nil, inventorydomain.ErrInvalidCapacity
	}

	var updated inventorydomain.TicketTier
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tier, err := s.lockTier(ctx, tx, tierID)
		if err != nil {
			return err
		}
		next := tier.Counts()
		next.Total += delta
		next.Available += delta
		updated, err = s.writeCounters(ctx, tx, *tier, next)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tier capacity increased",
		zap.String("tier_id", tierID.String()),
		zap.Int32("delta", delta),
		zap.Int32("total_tickets", updated.TotalTickets),
	)
	return &updated, nil
}

func (s *Service) GetTierSummary(ctx context.Context, tierID snowflake.ID) (*inventorydomain.TierSummary, error) {
	tier, err := s.GetTier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	summary, err := s.summarize(ctx, *tier)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Service) ListEventTierSummaries(ctx context.Context, eventID snowflake.ID) ([]inventorydomain.TierSummary, error) {
	if eventID == 0 {
		return nil, inventorydomain.ErrInvalidEvent
	}
	tiers, err := s.repo.ListTiersByEvent(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]inventorydomain.TierSummary, 0, len(tiers))
	for _, tier := range tiers {
		summary, err := s.summarize(ctx, tier)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *Service) summarize(ctx context.Context, tier inventorydomain.TicketTier) (inventorydomain.TierSummary, error) {
	holds, err := s.repo.CountHolds(ctx, s.db, tier.ID, s.clock.Now())
	if err != nil {
		return inventorydomain.TierSummary{}, err
	}
	return inventorydomain.TierSummary{
		TierID:            tier.ID.String(),
		EventID:           tier.EventID.String(),
		Name:              tier.Name,
		PriceCents:        tier.PriceCents,
		Currency:          tier.Currency,
		Total:             tier.TotalTickets,
		Available:         tier.AvailableInventory,
		Reserved:          tier.ReservedInventory,
		Sold:              tier.SoldInventory,
		ActiveHolds:       holds.Active,
		PendingHolds:      holds.Expired,
		PendingHoldsUnits: holds.ExpiredUnits,
		UpdatedAt:         tier.UpdatedAt,
	}, nil
}

// CreateHold reserves units under an exclusive lock on the tier row. A
// shortfall returns *InsufficientInventoryError and writes nothing.
func (s *Service) CreateHold(ctx context.Context, req inventorydomain.CreateHoldRequest) (*inventorydomain.TicketHold, error) {
	if req.TierID == 0 {
		return nil, inventorydomain.ErrInvalidID
	}
	checkout := s.checkout.Get()
	if req.Quantity <= 0 || req.Quantity > checkout.MaxHoldQuantity {
		s.metrics.RecordHoldDenied(ctx, "invalid_quantity")
		return nil, inventorydomain.ErrInvalidQuantity
	}
	duration := req.Duration
	if duration <= 0 {
		duration = checkout.HoldDuration
	}
	fingerprint := strings.TrimSpace(req.Fingerprint)
	var userID *string
	if req.UserID != nil && strings.TrimSpace(*req.UserID) != "" {
		trimmed := strings.TrimSpace(*req.UserID)
		userID = &trimmed
	}

	if s.limiter != nil && fingerprint != "" {
		allowed, err := s.limiter.AllowHold(ctx, fingerprint)
		switch {
		case err != nil:
			s.log.Warn("hold rate limiter unavailable", zap.Error(err))
		case !allowed:
			s.metrics.RecordRateLimitDenied(ctx, "create_hold", "fingerprint")
			s.metrics.RecordHoldDenied(ctx, "rate_limited")
			return nil, inventorydomain.ErrRateLimited
		}
	}

	var hold *inventorydomain.TicketHold
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tier, err := s.lockTier(ctx, tx, req.TierID)
		if err != nil {
			return err
		}
		current := tier.Counts()
		if current.Available < req.Quantity {
			return &inventorydomain.InsufficientInventoryError{
				Requested: req.Quantity,
				Available: current.Available,
			}
		}

		next := current
		next.Available -= req.Quantity
		next.Reserved += req.Quantity
		if _, err := s.writeCounters(ctx, tx, *tier, next); err != nil {
			return err
		}

		now := s.clock.Now()
		hold = &inventorydomain.TicketHold{
			ID:          s.genID.Generate(),
			TierID:      tier.ID,
			Quantity:    req.Quantity,
			UserID:      userID,
			Fingerprint: fingerprint,
			ExpiresAt:   now.Add(duration),
			CreatedAt:   now,
		}
		return s.repo.InsertHold(ctx, tx, hold)
	})
	if err != nil {
		if errors.Is(err, inventorydomain.ErrInsufficientInventory) {
			s.metrics.RecordHoldDenied(ctx, "insufficient_inventory")
			logger.WithContext(ctx, s.log).Debug("hold denied",
				zap.String("tier_id", req.TierID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.metrics.RecordHoldCreated(ctx, hold.Quantity)
	logger.WithContext(ctx, s.log).Info("hold created",
		zap.String("hold_id", hold.ID.String()),
		zap.String("tier_id", hold.TierID.String()),
		zap.Int32("quantity", hold.Quantity),
		zap.Time("expires_at", hold.ExpiresAt),
	)
	return hold, nil
}

func (s *Service) GetHold(ctx context.Context, id snowflake.ID) (*inventorydomain.TicketHold, error) {
	if id == 0 {
		return nil, inventorydomain.ErrInvalidID
	}
	hold, err := s.repo.FindHold(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		return nil, inventorydomain.ErrHoldNotFound
	}
	return hold, nil
}

func (s *Service) LockHoldTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*inventorydomain.TicketHold, error) {
	if id == 0 {
		return nil, inventorydomain.ErrInvalidID
	}
	hold, err := s.repo.LockHold(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		return nil, inventorydomain.ErrHoldNotFound
	}
	return hold, nil
}

func (s *Service) ReleaseHold(ctx context.Context, id snowflake.ID) (bool, error) {
	return s.releaseHold(ctx, id, releaseReasonReleased)
}

func (s *Service) releaseHold(ctx context.Context, id snowflake.ID, reason string) (bool, error) {
	if id == 0 {
		return false, inventorydomain.ErrInvalidID
	}
	var (
		hold     *inventorydomain.TicketHold
		consumed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		hold, consumed, err = s.consumeHold(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return false, err
	}
	if !consumed {
		return false, nil
	}

	s.metrics.RecordHoldReleased(ctx, reason, hold.Quantity)
	logger.WithContext(ctx, s.log).Info("hold released",
		zap.String("hold_id", hold.ID.String()),
		zap.String("tier_id", hold.TierID.String()),
		zap.Int32("quantity", hold.Quantity),
		zap.String("reason", reason),
	)
	return true, nil
}

func (s *Service) ConvertHoldToSale(ctx context.Context, id snowflake.ID) (bool, error) {
	if id == 0 {
		return false, inventorydomain.ErrInvalidID
	}
	var (
		hold     *inventorydomain.TicketHold
		consumed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		hold, consumed, err = s.ConvertHoldToSaleTx(ctx, tx, id)
		return err
	})
	if err != nil || !consumed {
		return false, err
	}

	s.metrics.RecordHoldConverted(ctx, hold.Quantity)
	logger.WithContext(ctx, s.log).Info("hold converted",
		zap.String("hold_id", hold.ID.String()),
		zap.String("tier_id", hold.TierID.String()),
		zap.Int32("quantity", hold.Quantity),
	)
	return true, nil
}

func (s *Service) ConvertHoldToSaleTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*inventorydomain.TicketHold, bool, error) {
	if id == 0 {
		return nil, false, inventorydomain.ErrInvalidID
	}
	return s.consumeHold(ctx, tx, id, true)
}

// consumeHold deletes the hold and moves its units out of reserved. Locks are
// taken hold first, then tier. Losing a race to another consumer is a no-op.
func (s *Service) consumeHold(ctx context.Context, tx *gorm.DB, id snowflake.ID, toSold bool) (*inventorydomain.TicketHold, bool, error) {
	hold, err := s.repo.LockHold(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	if hold == nil {
		return nil, false, nil
	}
	deleted, err := s.repo.DeleteHold(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	if deleted == 0 {
		return nil, false, nil
	}

	tier, err := s.lockTier(ctx, tx, hold.TierID)
	if err != nil {
		if errors.Is(err, inventorydomain.ErrTierNotFound) {
			return nil, false, fmt.Errorf("%w: hold %s references missing tier %s",
				inventorydomain.ErrInventoryInvariant, hold.ID, hold.TierID)
		}
		return nil, false, err
	}

	next := tier.Counts()
	next.Reserved -= hold.Quantity
	if toSold {
		next.Sold += hold.Quantity
	} else {
		next.Available += hold.Quantity
	}
	if _, err := s.writeCounters(ctx, tx, *tier, next); err != nil {
		return nil, false, err
	}
	return hold, true, nil
}

func (s *Service) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]inventorydomain.TicketHold, error) {
	if limit <= 0 {
		limit = defaultExpiredBatch
	}
	return s.repo.ListExpiredHolds(ctx, s.db, now, limit)
}

// ExpireHolds releases up to limit holds whose deadline has passed. Holds
// consumed concurrently are skipped.
func (s *Service) ExpireHolds(ctx context.Context, limit int) (int, error) {
	holds, err := s.ListExpiredHolds(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}

	released := 0
	var errs []error
	for _, hold := range holds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := s.releaseHold(ctx, hold.ID, releaseReasonExpired)
		if err != nil {
			s.log.Error("expire hold failed", zap.String("hold_id", hold.ID.String()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if ok {
			released++
		}
	}
	return released, errors.Join(errs...)
}

func (s *Service) DiffTierInventory(ctx context.Context, tierID snowflake.ID) (*inventorydomain.TierDrift, error) {
	tier, err := s.GetTier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	return s.diff(ctx, s.db, *tier)
}

// RecalculateTierInventory rebuilds sold from tickets that still hold a seat
// and derives available from it. Reserved is left to the holds.
func (s *Service) RecalculateTierInventory(ctx context.Context, tierID snowflake.ID) (*inventorydomain.TierDrift, error) {
	if tierID == 0 {
		return nil, inventorydomain.ErrInvalidID
	}
	var drift *inventorydomain.TierDrift
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tier, err := s.lockTier(ctx, tx, tierID)
		if err != nil {
			return err
		}
		drift, err = s.diff(ctx, tx, *tier)
		if err != nil {
			return err
		}
		if !drift.Drifted {
			return nil
		}
		_, err = s.writeCounters(ctx, tx, *tier, drift.Expected)
		return err
	})
	if err != nil {
		return nil, err
	}

	if drift.Drifted {
		s.metrics.RecordInventoryDrift(ctx, "recalculate")
		s.log.Warn("tier inventory recalculated",
			zap.String("tier_id", drift.TierID),
			zap.Strings("fields", drift.Fields),
			zap.Int32("stored_sold", drift.Stored.Sold),
			zap.Int32("expected_sold", drift.Expected.Sold),
			zap.Int32("stored_available", drift.Stored.Available),
			zap.Int32("expected_available", drift.Expected.Available),
		)
	}
	return drift, nil
}

func (s *Service) diff(ctx context.Context, db *gorm.DB, tier inventorydomain.TicketTier) (*inventorydomain.TierDrift, error) {
	issued, err := s.repo.CountIssuedTickets(ctx, db, tier.ID)
	if err != nil {
		return nil, err
	}
	stored := tier.Counts()
	expected := stored
	expected.Sold = int32(issued)
	expected.Available = stored.Total - expected.Sold - stored.Reserved

	drift := &inventorydomain.TierDrift{
		TierID:   tier.ID.String(),
		Stored:   stored,
		Expected: expected,
	}
	if stored.Available != expected.Available {
		drift.Fields = append(drift.Fields, "available")
	}
	if stored.Sold != expected.Sold {
		drift.Fields = append(drift.Fields, "sold")
	}
	drift.Drifted = len(drift.Fields) > 0
	return drift, nil
}

func (s *Service) ListTierIDs(ctx context.Context, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		limit = defaultExpiredBatch
	}
	return s.repo.ListTierIDs(ctx, s.db, afterID, limit)
}

func (s *Service) lockTier(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*inventorydomain.TicketTier, error) {
	start := time.Now()
	tier, err := s.repo.LockTier(ctx, tx, id)
	metrics.Scheduler().ObserveDBLockWait(metrics.LockResourceTicketTier, time.Since(start))
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, inventorydomain.ErrTierNotFound
	}
	if err := tier.Counts().Validate(); err != nil {
		s.log.Error("stored tier counters violate invariant",
			zap.String("tier_id", tier.ID.String()),
			zap.Any("counts", tier.Counts()),
		)
		return nil, err
	}
	return tier, nil
}

// writeCounters validates next before touching the row; a violating write
// aborts the transaction instead of being clamped.
func (s *Service) writeCounters(ctx context.Context, tx *gorm.DB, tier inventorydomain.TicketTier, next inventorydomain.InventoryCounts) (inventorydomain.TicketTier, error) {
	if err := next.Validate(); err != nil {
		s.log.Error("inventory write rejected",
			zap.String("tier_id", tier.ID.String()),
			zap.Any("current", tier.Counts()),
			zap.Any("next", next),
		)
		return inventorydomain.TicketTier{}, err
	}
	updated := tier.WithCounts(next)
	updated.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateTierCounters(ctx, tx, &updated); err != nil {
		if dbpkg.IsCheckViolation(err) {
			return inventorydomain.TicketTier{}, fmt.Errorf("%w: %v", inventorydomain.ErrInventoryInvariant, err)
		}
		return inventorydomain.TicketTier{}, err
	}
	return updated, nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
