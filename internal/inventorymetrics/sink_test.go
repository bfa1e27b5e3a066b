package inventorymetrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/boxoffice/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSinkRejectsBadConfig(t *testing.T) {
	cases := map[string]config.MetricsExportConfig{
		"disabled":         {Exporter: exporterRemoteWrite, Endpoint: "http://x"},
		"missing endpoint": {Enabled: true, Exporter: exporterRemoteWrite},
		"missing exporter": {Enabled: true, Endpoint: "http://x"},
		"unknown exporter": {Enabled: true, Exporter: "statsd", Endpoint: "http://x"},
		"bad url":          {Enabled: true, Exporter: exporterRemoteWrite, Endpoint: "not a url"},
	}
	for name, export := range cases {
		t.Run(name, func(t *testing.T) {
			sink, err := NewSink(config.Config{AppName: "boxoffice", MetricsExport: export})
			assert.Nil(t, sink)
			assert.ErrorIs(t, err, ErrExportDisabled)
		})
	}

	_, err := NewPushgateway("http://pushgateway:9091", " ", nil)
	assert.ErrorIs(t, err, ErrExportDisabled)
}

func TestNewSinkSelectsExporter(t *testing.T) {
	sink, err := NewSink(config.Config{MetricsExport: config.MetricsExportConfig{
		Enabled: true, Exporter: "Prometheus_Remote_Write", Endpoint: "http://metrics.local/api/v1/write",
	}})
	require.NoError(t, err)
	assert.IsType(t, &RemoteWrite{}, sink)

	sink, err = NewSink(config.Config{AppName: "boxoffice", Environment: "staging", MetricsExport: config.MetricsExportConfig{
		Enabled: true, Exporter: exporterPushgateway, Endpoint: "http://pushgateway:9091",
	}})
	require.NoError(t, err)
	require.IsType(t, &Pushgateway{}, sink)
	assert.Equal(t, map[string]string{"environment": "staging"}, sink.(*Pushgateway).grouping)
}

func TestProvideSinkWarnsOnlyWhenEnabled(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	assert.Nil(t, provideSink(config.Config{}, zap.New(core)))
	assert.Equal(t, 0, logs.Len())

	cfg := config.Config{MetricsExport: config.MetricsExportConfig{Enabled: true, Exporter: exporterRemoteWrite}}
	assert.Nil(t, provideSink(cfg, zap.New(core)))
	assert.Equal(t, 1, logs.FilterMessage("inventory metrics export disabled").Len())
}

func TestToTimeSeries(t *testing.T) {
	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "tickets"}, []string{"tier_id", "state"})
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pushes_total"})
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "latency_seconds"})
	registry.MustRegister(gauge, counter, histogram)

	gauge.WithLabelValues("7", "sold").Set(3)
	counter.Add(2)
	histogram.Observe(0.5)

	families, err := registry.Gather()
	require.NoError(t, err)

	series := toTimeSeries(families, 1234)
	require.Len(t, series, 2)

	byName := map[string]prompb.TimeSeries{}
	for _, s := range series {
		byName[s.Labels[0].Value] = s
	}

	tickets := byName["tickets"]
	require.Len(t, tickets.Samples, 1)
	assert.Equal(t, prompb.Sample{Value: 3, Timestamp: 1234}, tickets.Samples[0])
	assert.Equal(t, []prompb.Label{
		{Name: "__name__", Value: "tickets"},
		{Name: "state", Value: "sold"},
		{Name: "tier_id", Value: "7"},
	}, tickets.Labels)
	assert.Equal(t, float64(2), byName["pushes_total"].Samples[0].Value)
}

func TestRemoteWriteSend(t *testing.T) {
	var (
		received prompb.WriteRequest
		headers  http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		raw, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		require.NoError(t, received.Unmarshal(raw))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "boxoffice_tiers"})
	registry.MustRegister(gauge)
	gauge.Set(4)

	rw, err := NewRemoteWrite(srv.URL, " secret ")
	require.NoError(t, err)
	rw.now = func() time.Time { return time.UnixMilli(5000) }

	require.NoError(t, rw.Send(context.Background(), registry))

	assert.Equal(t, "snappy", headers.Get("Content-Encoding"))
	assert.Equal(t, "application/x-protobuf", headers.Get("Content-Type"))
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	require.Len(t, received.Timeseries, 1)
	assert.Equal(t, float64(4), received.Timeseries[0].Samples[0].Value)
	assert.Equal(t, int64(5000), received.Timeseries[0].Samples[0].Timestamp)
}

func TestRemoteWriteSendFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rw, err := NewRemoteWrite(srv.URL, "")
	require.NoError(t, err)

	// an empty registry has nothing to send
	require.NoError(t, rw.Send(context.Background(), prometheus.NewRegistry()))
	assert.Equal(t, 0, calls)

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{Name: "boxoffice_tiers"}))
	err = rw.Send(context.Background(), registry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, 1, calls)
}
