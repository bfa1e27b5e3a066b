package inventorymetrics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/boxoffice/internal/config"
	"go.uber.org/zap"
)

const (
	exporterRemoteWrite = "prometheus_remote_write"
	exporterPushgateway = "prometheus_pushgateway"
)

var ErrExportDisabled = errors.New("inventory_metrics_export_disabled")

// Sink ships one gathered inventory snapshot to a metrics backend.
type Sink interface {
	Send(ctx context.Context, g prometheus.Gatherer) error
}

// NewSink picks the backend named by METRICS_EXPORT_EXPORTER.
func NewSink(cfg config.Config) (Sink, error) {
	export := cfg.MetricsExport
	if !export.Enabled {
		return nil, ErrExportDisabled
	}
	endpoint := strings.TrimSpace(export.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrExportDisabled)
	}

	switch name := strings.ToLower(strings.TrimSpace(export.Exporter)); name {
	case exporterRemoteWrite:
		return NewRemoteWrite(endpoint, export.AuthToken)
	case exporterPushgateway:
		return NewPushgateway(endpoint, cfg.AppName, map[string]string{"environment": cfg.Environment})
	case "":
		return nil, fmt.Errorf("%w: exporter is required", ErrExportDisabled)
	default:
		return nil, fmt.Errorf("%w: unknown exporter %q", ErrExportDisabled, name)
	}
}

// provideSink turns a configuration problem into a disabled export so a bad
// metrics setting never blocks startup.
func provideSink(cfg config.Config, logger *zap.Logger) Sink {
	sink, err := NewSink(cfg)
	if err == nil {
		return sink
	}
	if cfg.MetricsExport.Enabled {
		logger.Warn("inventory metrics export disabled", zap.Error(err))
	}
	return nil
}
