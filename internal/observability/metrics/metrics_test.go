package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("provider", "stripe"),
		attribute.String("user_id", "456"),
		attribute.String("reason", "expired"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "user_id" {
			t.Fatalf("expected user_id to be dropped")
		}
	}
}

func TestNopMetricsAcceptRecords(t *testing.T) {
	m := NewNop()
	if m == nil {
		t.Fatalf("expected nop metrics")
	}
	ctx := context.Background()
	m.RecordHoldCreated(ctx, 2)
	m.RecordHoldReleased(ctx, "expired", 2)
	m.RecordTicketsIssued(ctx, 3)

	var nilMetrics *Metrics
	nilMetrics.RecordHoldDenied(ctx, "insufficient_inventory")
}
