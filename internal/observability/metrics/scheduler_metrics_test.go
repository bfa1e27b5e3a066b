package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/boxoffice/internal/authorization"
	"gorm.io/gorm"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"deadline", fmt.Errorf("expire: %w", context.DeadlineExceeded), ErrorClass{ErrorTypeTimeout, ReasonDeadlineExceeded, true}},
		{"forbidden", authorization.ErrForbidden, ErrorClass{ErrorTypeAuthz, ReasonForbidden, false}},
		{"lock_timeout", &pgconn.PgError{Code: "55P03"}, ErrorClass{ErrorTypeDB, ReasonDBLockTimeout, true}},
		{"serialization", &pgconn.PgError{Code: "40001"}, ErrorClass{ErrorTypeDB, ReasonSerializationFailure, true}},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, ErrorClass{ErrorTypeDB, ReasonDeadlock, true}},
		{"unique_pg", &pgconn.PgError{Code: "23505"}, ErrorClass{ErrorTypeDB, ReasonUniqueViolation, false}},
		{"unique_gorm", gorm.ErrDuplicatedKey, ErrorClass{ErrorTypeDB, ReasonUniqueViolation, false}},
		{"gorm", gorm.ErrInvalidTransaction, ErrorClass{ErrorTypeDB, ReasonUnknown, true}},
		{"business", errors.New("sold_out"), ErrorClass{ErrorTypeBusiness, ReasonUnknown, false}},
		{"nil", nil, ErrorClass{ErrorTypeUnknown, ReasonUnknown, false}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyError(tc.err); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "boxoffice",
		Environment: "test",
	})

	metrics.AddBatchProcessed("expire_holds", "ticket_hold", 3)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("expire_holds", "ticket_hold"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestIncInventoryDrift(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{Environment: "test"})

	metrics.IncInventoryDrift("sold")
	metrics.IncInventoryDrift("sold")
	metrics.IncInventoryDrift("available")

	if got := testutil.ToFloat64(metrics.inventoryDrift.WithLabelValues("sold")); got != 2 {
		t.Fatalf("expected sold drift 2, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.inventoryDrift.WithLabelValues("available")); got != 1 {
		t.Fatalf("expected available drift 1, got %v", got)
	}
}
