package metrics

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/boxoffice/internal/authorization"
	"gorm.io/gorm"
)

// Error types label log lines; reasons label the job error counter.
const (
	ErrorTypeTimeout  = "deadline_exceeded"
	ErrorTypeAuthz    = "authorization"
	ErrorTypeDB       = "db"
	ErrorTypeBusiness = "business_rule"
	ErrorTypeUnknown  = "unknown"

	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonDeadlock             = "deadlock"
	ReasonUniqueViolation      = "unique_violation"
	ReasonForbidden            = "forbidden"
	ReasonUnknown              = "unknown"

	// ReasonLockHeld labels a run skipped because another replica holds the
	// job lease.
	ReasonLockHeld = "singleton_lock_held"
)

var pgReasons = map[string]string{
	"55P03": ReasonDBLockTimeout,
	"40001": ReasonSerializationFailure,
	"40P01": ReasonDeadlock,
	"23505": ReasonUniqueViolation,
}

var gormFailures = []error{
	gorm.ErrInvalidDB,
	gorm.ErrInvalidTransaction,
	gorm.ErrInvalidField,
	gorm.ErrInvalidData,
	gorm.ErrMissingWhereClause,
	gorm.ErrUnsupportedDriver,
	gorm.ErrInvalidValue,
	gorm.ErrNotImplemented,
	gorm.ErrDuplicatedKey,
}

// ErrorClass is the bounded-cardinality view of a job failure.
type ErrorClass struct {
	Type      string
	Reason    string
	Retryable bool
}

func ClassifyError(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorClass{Type: ErrorTypeUnknown, Reason: ReasonUnknown}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorClass{Type: ErrorTypeTimeout, Reason: ReasonDeadlineExceeded, Retryable: true}
	case isAuthorizationError(err):
		return ErrorClass{Type: ErrorTypeAuthz, Reason: ReasonForbidden}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		reason, ok := pgReasons[pgErr.Code]
		if !ok {
			reason = ReasonUnknown
		}
		return ErrorClass{Type: ErrorTypeDB, Reason: reason, Retryable: reason != ReasonUniqueViolation}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrorClass{Type: ErrorTypeDB, Reason: ReasonUniqueViolation}
	}
	for _, target := range gormFailures {
		if errors.Is(err, target) {
			return ErrorClass{Type: ErrorTypeDB, Reason: ReasonUnknown, Retryable: true}
		}
	}
	return ErrorClass{Type: ErrorTypeBusiness, Reason: ReasonUnknown}
}

func isAuthorizationError(err error) bool {
	return errors.Is(err, authorization.ErrForbidden) ||
		errors.Is(err, authorization.ErrInvalidActor) ||
		errors.Is(err, authorization.ErrInvalidObject) ||
		errors.Is(err, authorization.ErrInvalidAction)
}
