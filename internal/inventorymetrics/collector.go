package inventorymetrics

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
)

const tierPageSize = 200

// Collector snapshots every tier's counters into a private registry that is
// pushed as a whole, so tiers never leak into the scraped default registry.
type Collector struct {
	inventory inventorydomain.Service
	registry  *prometheus.Registry

	tickets      *prometheus.GaugeVec
	pendingHolds *prometheus.GaugeVec
	activeHolds  *prometheus.GaugeVec
	tiers        prometheus.Gauge
}

func NewCollector(inventory inventorydomain.Service) *Collector {
	c := &Collector{
		inventory: inventory,
		registry:  prometheus.NewRegistry(),
		tickets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "boxoffice_tier_tickets",
			Help: "Tickets per tier by inventory state.",
		}, []string{"event_id", "tier_id", "state"}),
		pendingHolds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "boxoffice_tier_pending_holds",
			Help: "Expired holds not yet swept, per tier.",
		}, []string{"event_id", "tier_id"}),
		activeHolds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "boxoffice_tier_active_holds",
			Help: "Unexpired holds per tier.",
		}, []string{"event_id", "tier_id"}),
		tiers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boxoffice_tiers",
			Help: "Tiers included in the last snapshot.",
		}),
	}
	c.registry.MustRegister(c.tickets, c.pendingHolds, c.activeHolds, c.tiers)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Collect rebuilds the snapshot. Tiers deleted since the last run disappear
// because every vector is reset first.
func (c *Collector) Collect(ctx context.Context) (int, error) {
	c.tickets.Reset()
	c.pendingHolds.Reset()
	c.activeHolds.Reset()

	var (
		after snowflake.ID
		count int
	)
	for {
		ids, err := c.inventory.ListTierIDs(ctx, after, tierPageSize)
		if err != nil {
			return count, err
		}
		for _, id := range ids {
			summary, err := c.inventory.GetTierSummary(ctx, id)
			if err != nil {
				return count, err
			}
			c.observe(summary)
			count++
		}
		if len(ids) < tierPageSize {
			break
		}
		after = ids[len(ids)-1]
	}
	c.tiers.Set(float64(count))
	return count, nil
}

func (c *Collector) observe(summary *inventorydomain.TierSummary) {
	if summary == nil {
		return
	}
	c.tickets.WithLabelValues(summary.EventID, summary.TierID, "available").Set(float64(summary.Available))
	c.tickets.WithLabelValues(summary.EventID, summary.TierID, "reserved").Set(float64(summary.Reserved))
	c.tickets.WithLabelValues(summary.EventID, summary.TierID, "sold").Set(float64(summary.Sold))
	c.pendingHolds.WithLabelValues(summary.EventID, summary.TierID).Set(float64(summary.PendingHolds))
	c.activeHolds.WithLabelValues(summary.EventID, summary.TierID).Set(float64(summary.ActiveHolds))
}
