package inventorymetrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pushgateway replaces the job's group on a Prometheus Pushgateway with each
// snapshot, so tiers that disappear stop being reported.
type Pushgateway struct {
	url      string
	job      string
	grouping map[string]string
}

func NewPushgateway(endpoint, job string, grouping map[string]string) (*Pushgateway, error) {
	job = strings.TrimSpace(job)
	if job == "" {
		return nil, fmt.Errorf("%w: pushgateway job is required", ErrExportDisabled)
	}
	labels := make(map[string]string, len(grouping))
	for k, v := range grouping {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			labels[k] = v
		}
	}
	return &Pushgateway{url: endpoint, job: job, grouping: labels}, nil
}

func (p *Pushgateway) Send(ctx context.Context, g prometheus.Gatherer) error {
	pusher := push.New(p.url, p.job).Gatherer(g)
	for k, v := range p.grouping {
		pusher = pusher.Grouping(k, v)
	}
	return pusher.PushContext(ctx)
}
