package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusRefunded OrderStatus = "refunded"
)

const (
	FailureReasonHoldExpired    = "hold_expired"
	FailureReasonAmountMismatch = "amount_mismatch"
	FailureReasonPaymentFailed  = "payment_failed"
	// FailureReasonSuperseded marks a declined order whose holds were
	// claimed by a newer order. A late payment for it must be refunded.
	FailureReasonSuperseded = "superseded"
)

type Order struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID            *string      `json:"user_id,omitempty" gorm:"column:user_id;type:text;index"`
	Email             string       `json:"email" gorm:"type:text;not null;default:''"`
	Fingerprint       string       `json:"-" gorm:"type:text;not null;default:''"`
	Status            OrderStatus  `json:"status" gorm:"type:text;not null;index"`
	FailureReason     *string      `json:"failure_reason,omitempty" gorm:"type:text"`
	Currency          string       `json:"currency" gorm:"type:text;not null"`
	SubtotalCents     int64        `json:"subtotal_cents" gorm:"not null;check:chk_orders_subtotal,subtotal_cents >= 0"`
	FeeCents          int64        `json:"fee_cents" gorm:"not null;check:chk_orders_fee,fee_cents >= 0"`
	TotalCents        int64        `json:"total_cents" gorm:"not null;check:chk_orders_total,total_cents = subtotal_cents + fee_cents"`
	PaymentProvider   *string      `json:"payment_provider,omitempty" gorm:"type:text"`
	ProviderPaymentID *string      `json:"provider_payment_id,omitempty" gorm:"type:text"`
	PaidAt            *time.Time   `json:"paid_at,omitempty"`
	RefundedAt        *time.Time   `json:"refunded_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// OrderItem snapshots the tier price and fee at checkout.
type OrderItem struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OrderID           snowflake.ID `json:"order_id" gorm:"column:order_id;not null;index"`
	TierID            snowflake.ID `json:"tier_id" gorm:"column:tier_id;not null"`
	HoldID            snowflake.ID `json:"hold_id" gorm:"column:hold_id;not null;index"`
	Quantity          int32        `json:"quantity" gorm:"not null;check:chk_order_items_quantity,quantity > 0"`
	UnitPriceCents    int64        `json:"unit_price_cents" gorm:"not null"`
	UnitFeeCents      int64        `json:"unit_fee_cents" gorm:"not null"`
	LineSubtotalCents int64        `json:"line_subtotal_cents" gorm:"not null"`
	LineFeeCents      int64        `json:"line_fee_cents" gorm:"not null"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// HoldClaim binds a hold to the one order allowed to convert it.
type HoldClaim struct {
	HoldID    snowflake.ID `json:"hold_id" gorm:"column:hold_id;primaryKey;autoIncrement:false"`
	OrderID   snowflake.ID `json:"order_id" gorm:"column:order_id;not null;index"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (HoldClaim) TableName() string { return "hold_claims" }

// KeepsClaims reports whether the order may still be paid and so keeps its
// holds claimed.
func (o Order) KeepsClaims() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusPaid:
		return true
	case OrderStatusFailed:
		return o.FailureReason != nil && *o.FailureReason == FailureReasonPaymentFailed
	}
	return false
}

type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusRefunded  TicketStatus = "refunded"
	TicketStatusCancelled TicketStatus = "cancelled"
)

// Ticket is one admission unit. Tickets in valid or used status count as sold.
type Ticket struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OrderID     snowflake.ID `json:"order_id" gorm:"column:order_id;not null;index"`
	OrderItemID snowflake.ID `json:"order_item_id" gorm:"column:order_item_id;not null"`
	TierID      snowflake.ID `json:"tier_id" gorm:"column:tier_id;not null;index"`
	Code        string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Status      TicketStatus `json:"status" gorm:"type:text;not null"`
	RedeemedAt  *time.Time   `json:"redeemed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Ticket) TableName() string { return "tickets" }

// Totals recomputes order amounts from its items.
func Totals(items []OrderItem) (subtotal, fee int64) {
	for _, item := range items {
		subtotal += item.LineSubtotalCents
		fee += item.LineFeeCents
	}
	return subtotal, fee
}

// ValidateTotals checks that stored amounts equal the item sums.
func (o Order) ValidateTotals(items []OrderItem) error {
	subtotal, fee := Totals(items)
	if o.SubtotalCents != subtotal || o.FeeCents != fee || o.TotalCents != subtotal+fee {
		return ErrTotalsMismatch
	}
	for _, item := range items {
		if item.LineSubtotalCents != item.UnitPriceCents*int64(item.Quantity) ||
			item.LineFeeCents != item.UnitFeeCents*int64(item.Quantity) {
			return ErrTotalsMismatch
		}
	}
	return nil
}
