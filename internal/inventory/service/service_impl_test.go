package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/boxoffice/internal/clock"
	"github.com/smallbiznis/boxoffice/internal/config"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
	"github.com/smallbiznis/boxoffice/internal/inventory/repository"
	orderdomain "github.com/smallbiznis/boxoffice/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:inventory_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&inventorydomain.TicketTier{},
		&inventorydomain.TicketHold{},
		&orderdomain.Ticket{},
	))
	return db
}

type testEnv struct {
	db    *gorm.DB
	svc   *Service
	clock *clock.FakeClock
	node  *snowflake.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
		Checkout: config.NewStaticCheckoutConfigHolder(config.CheckoutConfig{
			HoldDuration:    540 * time.Second,
			CheckoutTimer:   600 * time.Second,
			MaxHoldQuantity: 10,
		}),
	}).(*Service)

	return &testEnv{db: db, svc: svc, clock: clk, node: node}
}

func (e *testEnv) createTier(t *testing.T, total int32) *inventorydomain.TicketTier {
	t.Helper()
	tier, err := e.svc.CreateTier(context.Background(), inventorydomain.CreateTierRequest{
		EventID:      e.node.Generate().String(),
		Name:         "General Admission",
		TotalTickets: total,
		PriceCents:   2500,
	})
	require.NoError(t, err)
	return tier
}

func (e *testEnv) counts(t *testing.T, tierID snowflake.ID) inventorydomain.InventoryCounts {
	t.Helper()
	tier, err := e.svc.GetTier(context.Background(), tierID)
	require.NoError(t, err)
	return tier.Counts()
}

func (e *testEnv) holdCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&inventorydomain.TicketHold{}).Count(&count).Error)
	return count
}

func TestCreateHoldAndConvertConservesUnits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tier := env.createTier(t, 10)

	hold, err := env.svc.CreateHold(ctx, inventorydomain.CreateHoldRequest{TierID: tier.ID, Quantity: 4, Fingerprint: "fp-1"})
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now().Add(540*time.Second), hold.ExpiresAt)
	assert.Equal(t, inventorydomain.InventoryCounts{Total: 10, Available: 6, Reserved: 4, Sold: 0}, env.counts(t, tier.ID))

	converted, err := env.svc.ConvertHoldToSale(ctx, hold.ID)
	require.NoError(t, err)
	assert.True(t, converted)
	assert.Equal(t, inventorydomain.InventoryCounts{Total: 10, Available: 6, Reserved: 0, Sold: 4}, env.counts(t, tier.ID))
	assert.Equal(t, int64(0), env.holdCount(t))
}

func TestConvertAndReleaseAreIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tier := env.createTier(t, 10)

	hold, err := env.svc.CreateHold(ctx, inventorydomain.CreateHoldRequest{TierID: tier.ID, Quantity: 3})
	require.NoError(t, err)

	released, err := env.svc.ReleaseHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.True(t, released)
	after := env.counts(t, tier.ID)
	assert.Equal(t, inventorydomain.InventoryCounts{Total: 10, Available: 10}, after)

	released, err = env.svc.ReleaseHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.False(t, released)

	converted, err := env.svc.ConvertHoldToSale(ctx, hold.ID)
	require.NoError(t, err)
	assert.False(t, converted)
	assert.Equal(t, after, env.counts(t, tier.ID))
}

func TestCreateHoldInsufficientInventoryLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tier := env.createTier(t, 5)

	_, err := env.svc.CreateHold(ctx, inventorydomain.CreateHoldRequest{TierID: tier.ID, Quantity: 6})
	require.Error(t, err)
	assert.True(t, errors.Is(err, inventorydomain.ErrInsufficientInventory))

	var shortErr *inventorydomain.InsufficientInventoryError
	require.True(t, errors.As(err, &shortErr))
	assert.Equal(t, int32(6), shortErr.Requested)
	assert.Equal(t, int32(5), shortErr.Available)

	assert.Equal(t, inventorydomain.InventoryCounts{Total: 5, Available: 5}, env.counts(t, tier.ID))
	assert.Equal(t, int64(0), env.holdCount(t))
}

func TestCreateHoldValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tier := env.createTier(t, 20)

	for _, qty := range []int32{0, -1, 11} {
		_, err := env.svc.CreateHold(ctx, inventorydomain.CreateHoldRequest{TierID: tier.ID, Quantity: qty})
		assert.ErrorIs(t, err, inventorydomain.ErrInvalidQuantity, "quantity %d", qty)
	}

	_, err := env.svc.CreateHold(ctx, inventorydomain.CreateHoldRequest{TierID: env.node.Generate(), Quantity: 1})
	assert.ErrorIs(t, err, inventorydomain.ErrTierNotFound)
	assert.Equal(t, int64(0), env.holdCount(t))
}

func TestConcurrentHoldsDoNotOversell(t *testing.T) {
	env := newTestEnv(t)
	tier := env.createTier(t, 5)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		shortfall atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := env.svc.CreateHold(context.Background(), inventorydomain.CreateHoldRequest{
				TierID:      tier.ID,
				Quantity:    3,
				Fingerprint: fmt.Sprintf("fp-%d", i),
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, inventorydomain.ErrInsufficientInventory):
				shortfall.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(1), shortfall.Load())
	assert.Equal(t, inventorydomain.InventoryCounts{Total: 5, Available: 2, Reserved: 3}, env.counts(t, tier.ID))
}

func TestExpireHoldsReleasesOnlyExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tier := env.createTier(t, 10)

	short, err := env.svc.CreateHold(ctx, inventorydomain.CreateHoldRequest{TierID: tier.ID, Quantity: 2})
	require.NoError(t, err)
	long, err := env.svc.CreateHold(ctx, inventorydomain.CreateHoldRequest{TierID: tier.ID, Quantity: 3, Duration: time.Hour})
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)

	expired, err := env.svc.ListExpiredHolds(ctx, env.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, short.ID, expired[0].ID)

	summary, err := env.svc.GetTierSummary(ctx, tier.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.ActiveHolds)
	assert.Equal(t, int64(1), summary.PendingHolds)
	assert.Equal(t, int64(2), summary.PendingHoldsUnits)

	released, err := env.svc.ExpireHolds(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Equal(t, inventorydomain.InventoryCounts{Total: 10, Available: 7, Reserved: 3}, env.counts(t, tier.ID))

	_, err = env.svc.GetHold(ctx, short.ID)
	assert.ErrorIs(t, err, inventorydomain.ErrHoldNotFound)
	_, err = env.svc.GetHold(ctx, long.ID)
	assert.NoError(t, err)
}

func TestReleaseAbortsWhenCountersWouldGoNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tier := env.createTier(t, 10)

	// a hold whose units were never reserved
	orphan := &inventorydomain.TicketHold{
		ID:        env.node.Generate(),
		TierID:    tier.ID,
		Quantity:  3,
		ExpiresAt: env.clock.Now().Add(time.Minute),
		CreatedAt: env.clock.Now(),
	}
	require.NoError(t, env.svc.repo.InsertHold(ctx, env.db, orphan))

	released, err := env.svc.ReleaseHold(ctx, orphan.ID)
	assert.False(t, released)
	assert.ErrorIs(t, err, inventorydomain.ErrInventoryInvariant)

	assert.Equal(t, inventorydomain.InventoryCounts{Total: 10, Available: 10}, env.counts(t, tier.ID))
	_, err = env.svc.GetHold(ctx, orphan.ID)
	assert.NoError(t, err, "hold delete must roll back")
}

func TestRecalculateTierInventoryFromTickets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tier := env.createTier(t, 10)

	_, err := env.svc.CreateHold(ctx, inventorydomain.CreateHoldRequest{TierID: tier.ID, Quantity: 2})
	require.NoError(t, err)

	now := env.clock.Now()
	statuses := []orderdomain.TicketStatus{
		orderdomain.TicketStatusValid,
		orderdomain.TicketStatusValid,
		orderdomain.TicketStatusUsed,
		orderdomain.TicketStatusRefunded,
	}
	for i, status := range statuses {
		require.NoError(t, env.db.Create(&orderdomain.Ticket{
			ID:          env.node.Generate(),
			OrderID:     1,
			OrderItemID: 1,
			TierID:      tier.ID,
			Code:        fmt.Sprintf("CODE-%d", i),
			Status:      status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}).Error)
	}

	drift, err := env.svc.DiffTierInventory(ctx, tier.ID)
	require.NoError(t, err)
	assert.True(t, drift.Drifted)
	assert.Equal(t, []string{"available", "sold"}, drift.Fields)
	assert.Equal(t, inventorydomain.InventoryCounts{Total: 10, Available: 8, Reserved: 2}, drift.Stored)
	assert.Equal(t, inventorydomain.InventoryCounts{Total: 10, Available: 5, Reserved: 2, Sold: 3}, drift.Expected)

	// diff alone does not write
	assert.Equal(t, drift.Stored, env.counts(t, tier.ID))

	drift, err = env.svc.RecalculateTierInventory(ctx, tier.ID)
	require.NoError(t, err)
	assert.True(t, drift.Drifted)
	assert.Equal(t, drift.Expected, env.counts(t, tier.ID))

	drift, err = env.svc.RecalculateTierInventory(ctx, tier.ID)
	require.NoError(t, err)
	assert.False(t, drift.Drifted)
}

func TestIncreaseCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tier := env.createTier(t, 4)

	_, err := env.svc.IncreaseCapacity(ctx, tier.ID, 0)
	assert.ErrorIs(t, err, inventorydomain.ErrInvalidCapacity)

	updated, err := env.svc.IncreaseCapacity(ctx, tier.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, inventorydomain.InventoryCounts{Total: 10, Available: 10}, updated.Counts())
	assert.Equal(t, updated.Counts(), env.counts(t, tier.ID))
}

type denyLimiter struct{ calls int }

func (l *denyLimiter) AllowHold(context.Context, string) (bool, error) {
	l.calls++
	return false, nil
}

func TestCreateHoldRateLimited(t *testing.T) {
	env := newTestEnv(t)
	limiter := &denyLimiter{}
	env.svc.limiter = limiter
	tier := env.createTier(t, 5)

	_, err := env.svc.CreateHold(context.Background(), inventorydomain.CreateHoldRequest{TierID: tier.ID, Quantity: 1, Fingerprint: "fp"})
	assert.ErrorIs(t, err, inventorydomain.ErrRateLimited)
	assert.Equal(t, 1, limiter.calls)
	assert.Equal(t, inventorydomain.InventoryCounts{Total: 5, Available: 5}, env.counts(t, tier.ID))
}

func TestInventoryCountsValidate(t *testing.T) {
	assert.NoError(t, inventorydomain.InventoryCounts{Total: 10, Available: 6, Reserved: 4}.Validate())
	assert.ErrorIs(t, inventorydomain.InventoryCounts{Total: 10, Available: 6, Reserved: 3}.Validate(), inventorydomain.ErrInventoryInvariant)
	assert.ErrorIs(t, inventorydomain.InventoryCounts{Total: 0, Available: -1, Reserved: 1}.Validate(), inventorydomain.ErrInventoryInvariant)
}

func TestUnitFeeCents(t *testing.T) {
	tier := inventorydomain.TicketTier{PriceCents: 2500, FeeFlatCents: 100, FeePercentBps: 350}
	// 2500 * 3.5% = 87.5 -> 88
	assert.Equal(t, int64(188), tier.UnitFeeCents())
}
