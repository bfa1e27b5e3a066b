package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/boxoffice/internal/clock"
	"github.com/smallbiznis/boxoffice/internal/config"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
	inventoryrepo "github.com/smallbiznis/boxoffice/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/boxoffice/internal/inventory/service"
	orderdomain "github.com/smallbiznis/boxoffice/internal/order/domain"
	screeningdomain "github.com/smallbiznis/boxoffice/internal/screening/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

type stubScreening struct {
	screeningdomain.Service
	calls int
	limit int
}

func (s *stubScreening) RefreshHotScores(_ context.Context, limit int) (int, error) {
	s.calls++
	s.limit = limit
	return 4, nil
}

type schedulerEnv struct {
	db        *gorm.DB
	clock     *clock.FakeClock
	node      *snowflake.Node
	inventory inventorydomain.Service
	screening *stubScreening
	sched     *Scheduler
}

func newSchedulerEnv(t *testing.T, cfg Config) *schedulerEnv {
	t.Helper()
	useTestRegistry(t)

	dsn := fmt.Sprintf("file:scheduler_%d?mode=memory&cache=shared", dbSeq.Add(1))
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

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC))

	inventory := inventoryservice.New(inventoryservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  inventoryrepo.Provide(),
		Checkout: config.NewStaticCheckoutConfigHolder(config.CheckoutConfig{
			HoldDuration:    540 * time.Second,
			CheckoutTimer:   600 * time.Second,
			MaxHoldQuantity: 10,
		}),
	})
	screening := &stubScreening{}

	sched, err := New(Params{
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		InventorySvc: inventory,
		ScreeningSvc: screening,
		Config:       cfg,
	})
	require.NoError(t, err)

	return &schedulerEnv{db: db, clock: clk, node: node, inventory: inventory, screening: screening, sched: sched}
}

func (e *schedulerEnv) createTier(t *testing.T, total int32) *inventorydomain.TicketTier {
	t.Helper()
	tier, err := e.inventory.CreateTier(context.Background(), inventorydomain.CreateTierRequest{
		EventID:      e.node.Generate().String(),
		Name:         "Floor",
		TotalTickets: total,
		PriceCents:   2500,
	})
	require.NoError(t, err)
	return tier
}

func (e *schedulerEnv) counts(t *testing.T, id snowflake.ID) inventorydomain.InventoryCounts {
	t.Helper()
	tier, err := e.inventory.GetTier(context.Background(), id)
	require.NoError(t, err)
	return tier.Counts()
}

func TestExpireHoldsJobReleasesOnlyExpiredHolds(t *testing.T) {
	env := newSchedulerEnv(t, Config{ExpireHoldsBatch: 2})
	ctx := context.Background()
	tier := env.createTier(t, 20)

	for i := 0; i < 3; i++ {
		_, err := env.inventory.CreateHold(ctx, inventorydomain.CreateHoldRequest{
			TierID:      tier.ID,
			Quantity:    2,
			Fingerprint: fmt.Sprintf("fp-%d", i),
		})
		require.NoError(t, err)
	}
	env.clock.Advance(5 * time.Minute)
	_, err := env.inventory.CreateHold(ctx, inventorydomain.CreateHoldRequest{
		TierID:      tier.ID,
		Quantity:    1,
		Fingerprint: "late",
	})
	require.NoError(t, err)

	// only the first three holds are past 540s
	env.clock.Advance(5 * time.Minute)
	require.NoError(t, env.sched.ExpireHoldsJob(ctx))

	assert.Equal(t, inventorydomain.InventoryCounts{Total: 20, Available: 19, Reserved: 1, Sold: 0}, env.counts(t, tier.ID))

	var remaining int64
	require.NoError(t, env.db.Model(&inventorydomain.TicketHold{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestReconcileJobRepairsDriftedTiers(t *testing.T) {
	env := newSchedulerEnv(t, Config{ReconcileBatch: 1})
	ctx := context.Background()
	clean := env.createTier(t, 10)
	drifted := env.createTier(t, 10)

	require.NoError(t, env.db.Exec(
		`UPDATE ticket_tiers SET available_inventory = 7, sold_inventory = 3 WHERE id = ?`,
		drifted.ID,
	).Error)

	require.NoError(t, env.sched.ReconcileInventoryJob(ctx))

	assert.Equal(t, inventorydomain.InventoryCounts{Total: 10, Available: 10}, env.counts(t, drifted.ID))
	assert.Equal(t, inventorydomain.InventoryCounts{Total: 10, Available: 10}, env.counts(t, clean.ID))
}

func TestRunOnceHonoursEnabledJobs(t *testing.T) {
	env := newSchedulerEnv(t, Config{EnabledJobs: []string{JobRefreshHotScores}, HotScoreBatch: 25})

	require.NoError(t, env.sched.RunOnce(context.Background()))
	assert.Equal(t, 1, env.screening.calls)
	assert.Equal(t, 25, env.screening.limit)
}

func TestRunOnceRunsEveryJobByDefault(t *testing.T) {
	env := newSchedulerEnv(t, Config{})
	tier := env.createTier(t, 5)
	_, err := env.inventory.CreateHold(context.Background(), inventorydomain.CreateHoldRequest{
		TierID:      tier.ID,
		Quantity:    5,
		Fingerprint: "fp",
	})
	require.NoError(t, err)
	env.clock.Advance(10 * time.Minute)

	require.NoError(t, env.sched.RunOnce(context.Background()))
	assert.Equal(t, 1, env.screening.calls)
	assert.Equal(t, inventorydomain.InventoryCounts{Total: 5, Available: 5}, env.counts(t, tier.ID))
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
