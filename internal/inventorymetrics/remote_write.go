package inventorymetrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	obstracing "github.com/smallbiznis/boxoffice/internal/observability/tracing"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

const sendTimeout = 5 * time.Second

// RemoteWrite posts snapshots to a Prometheus remote_write endpoint.
type RemoteWrite struct {
	url    string
	token  string
	client *http.Client
	now    func() time.Time
}

func NewRemoteWrite(endpoint, token string) (*RemoteWrite, error) {
	u, err := url.ParseRequestURI(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid endpoint %q", ErrExportDisabled, endpoint)
	}
	return &RemoteWrite{
		url:    u.String(),
		token:  strings.TrimSpace(token),
		client: obstracing.WrapHTTPClient(&http.Client{Timeout: sendTimeout}),
		now:    time.Now,
	}, nil
}

func (r *RemoteWrite) Send(ctx context.Context, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}
	series := toTimeSeries(families, r.now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	raw, err := proto.Marshal(protoadapt.MessageV2Of(&prompb.WriteRequest{Timeseries: series}))
	if err != nil {
		return fmt.Errorf("encode write request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(snappy.Encode(nil, raw)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("remote write: %s", resp.Status)
	}
	return nil
}

// toTimeSeries keeps gauges and counters. Each series carries one sample
// stamped ts, with labels sorted by name as remote_write requires.
func toTimeSeries(families []*dto.MetricFamily, ts int64) []prompb.TimeSeries {
	var out []prompb.TimeSeries
	for _, family := range families {
		for _, m := range family.GetMetric() {
			value, ok := sampleValue(family.GetType(), m)
			if !ok {
				continue
			}
			labels := []prompb.Label{{Name: "__name__", Value: family.GetName()}}
			for _, lp := range m.GetLabel() {
				labels = append(labels, prompb.Label{Name: lp.GetName(), Value: lp.GetValue()})
			}
			slices.SortFunc(labels, func(a, b prompb.Label) int {
				return strings.Compare(a.Name, b.Name)
			})
			out = append(out, prompb.TimeSeries{
				Labels:  labels,
				Samples: []prompb.Sample{{Value: value, Timestamp: ts}},
			})
		}
	}
	return out
}

func sampleValue(kind dto.MetricType, m *dto.Metric) (float64, bool) {
	switch {
	case kind == dto.MetricType_GAUGE && m.GetGauge() != nil:
		return m.GetGauge().GetValue(), true
	case kind == dto.MetricType_COUNTER && m.GetCounter() != nil:
		return m.GetCounter().GetValue(), true
	default:
		return 0, false
	}
}
