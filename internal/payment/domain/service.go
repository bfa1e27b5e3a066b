package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service is the provider-facing entry point for payment webhooks.
type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (IngestOutcome, error)
}

// PaymentAdapter verifies and parses one provider's webhook payloads. Parse
// returns ErrEventIgnored for event types the ledger does not track.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

type AdapterConfig struct {
	WebhookSecret string
	// SignatureTolerance bounds the accepted signature age; zero uses the
	// adapter default.
	SignatureTolerance time.Duration
}

type Repository interface {
	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*EventRecord, error)
	// InsertEvent reports false when the provider event was already recorded.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
	// RecordFailure counts a failed processing attempt and keeps its error.
	RecordFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error
}

var (
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_provider_config")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrInvalidOrder     = errors.New("invalid_order_reference")
	ErrInvalidCurrency  = errors.New("invalid_currency")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrEventIgnored     = errors.New("event_ignored")
)
