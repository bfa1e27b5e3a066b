package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is one provider delivery in the payment ledger. The
// (provider, provider_event_id) pair is unique so redeliveries land on the
// same row; processed_at is set once the order has been updated.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider        string         `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	OrderID         snowflake.ID   `json:"order_id" gorm:"column:order_id;not null;index"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	Attempts        int32          `json:"attempts" gorm:"not null;default:0"`
	LastError       *string        `json:"last_error,omitempty" gorm:"type:text"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// Canonical event types every adapter maps provider events onto.
const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
	EventTypeRefunded         = "refunded"
)

// PaymentEvent is a verified provider event, normalized.
type PaymentEvent struct {
	Provider          string
	ProviderEventID   string
	ProviderPaymentID string
	Type              string
	OrderID           snowflake.ID
	Amount            int64
	Currency          string
	OccurredAt        time.Time
}

// IngestOutcome tells the provider-facing handler what a delivery did.
type IngestOutcome string

const (
	// OutcomeProcessed means the order was updated.
	OutcomeProcessed IngestOutcome = "processed"
	// OutcomeDuplicate means the event had already been applied.
	OutcomeDuplicate IngestOutcome = "duplicate"
	// OutcomeIgnored means the delivery was acknowledged without an order
	// change: unhandled event type, unknown order or a refund of an unpaid
	// order.
	OutcomeIgnored IngestOutcome = "ignored"
)
