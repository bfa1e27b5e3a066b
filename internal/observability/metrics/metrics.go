package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	holdsCreated    metric.Int64Counter
	holdsDenied     metric.Int64Counter
	holdsReleased   metric.Int64Counter
	holdsConverted  metric.Int64Counter
	ticketsIssued   metric.Int64Counter
	paymentEvents   metric.Int64Counter
	reviewsRecorded metric.Int64Counter
	inventoryDrift  metric.Int64Counter
	rateLimitDenied metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "boxoffice"
	}
	meter := provider.Meter(name)

	counters := []struct {
		name   string
		target *metric.Int64Counter
	}{
		{"boxoffice_holds_created_total", nil},
		{"boxoffice_holds_denied_total", nil},
		{"boxoffice_holds_released_total", nil},
		{"boxoffice_holds_converted_total", nil},
		{"boxoffice_tickets_issued_total", nil},
		{"boxoffice_payment_events_total", nil},
		{"boxoffice_reviews_recorded_total", nil},
		{"boxoffice_inventory_drift_total", nil},
		{"boxoffice_rate_limit_denied_total", nil},
	}

	m := &Metrics{}
	counters[0].target = &m.holdsCreated
	counters[1].target = &m.holdsDenied
	counters[2].target = &m.holdsReleased
	counters[3].target = &m.holdsConverted
	counters[4].target = &m.ticketsIssued
	counters[5].target = &m.paymentEvents
	counters[6].target = &m.reviewsRecorded
	counters[7].target = &m.inventoryDrift
	counters[8].target = &m.rateLimitDenied

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	return m, nil
}

// NewNop returns instruments backed by a no-op provider.
func NewNop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordHoldCreated counts units reserved by a successful hold.
func (m *Metrics) RecordHoldCreated(ctx context.Context, quantity int32) {
	if m == nil {
		return
	}
	m.holdsCreated.Add(ctx, int64(quantity))
}

// RecordHoldDenied counts hold attempts rejected for the given reason.
func (m *Metrics) RecordHoldDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.holdsDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordHoldReleased counts units returned to available stock.
func (m *Metrics) RecordHoldReleased(ctx context.Context, reason string, quantity int32) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.holdsReleased.Add(ctx, int64(quantity), metric.WithAttributes(attrs...))
}

// RecordHoldConverted counts units moved from reserved to sold.
func (m *Metrics) RecordHoldConverted(ctx context.Context, quantity int32) {
	if m == nil {
		return
	}
	m.holdsConverted.Add(ctx, int64(quantity))
}

// RecordTicketsIssued counts materialized tickets.
func (m *Metrics) RecordTicketsIssued(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ticketsIssued.Add(ctx, int64(count))
}

// RecordPaymentEvent increments payment event counts.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReview counts review upserts.
func (m *Metrics) RecordReview(ctx context.Context, contextType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("context_type", strings.TrimSpace(contextType)))
	m.reviewsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInventoryDrift counts tiers whose stored counters disagreed with tickets.
func (m *Metrics) RecordInventoryDrift(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source_type", strings.TrimSpace(source)))
	m.inventoryDrift.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":     {},
	"status_code":  {},
	"provider":     {},
	"event_type":   {},
	"source_type":  {},
	"context_type": {},
	"reason":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
