package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderView, error)
	GetOrder(ctx context.Context, id snowflake.ID) (*OrderView, error)
	// ConfirmPayment converts the order's holds and issues tickets once; a
	// repeated confirmation returns the paid order unchanged.
	ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*OrderView, error)
	FailPayment(ctx context.Context, id snowflake.ID, reason string) (*OrderView, error)
	RefundOrder(ctx context.Context, id snowflake.ID) (*OrderView, error)

	GetTicket(ctx context.Context, code string) (*Ticket, error)
	RedeemTicket(ctx context.Context, code string) (*Ticket, error)
	CancelTicket(ctx context.Context, code string) (*Ticket, error)
	TicketQRCode(ctx context.Context, code string, size int) ([]byte, error)
	OrderTicketsPDF(ctx context.Context, id snowflake.ID) ([]byte, error)
}

type CreateOrderRequest struct {
	HoldIDs     []string `json:"hold_ids"`
	Email       string   `json:"email"`
	UserID      *string  `json:"-"`
	Fingerprint string   `json:"-"`
}

type ConfirmPaymentRequest struct {
	OrderID           snowflake.ID
	AmountCents       int64
	Currency          string
	Provider          string
	ProviderPaymentID string
}

type OrderView struct {
	Order   Order       `json:"order"`
	Items   []OrderItem `json:"items"`
	Tickets []Ticket    `json:"tickets,omitempty"`
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidHold       = errors.New("invalid_hold")
	ErrInvalidOwner      = errors.New("invalid_owner")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidCode       = errors.New("invalid_ticket_code")
	ErrHoldNotFound      = errors.New("hold_not_found")
	ErrHoldExpired       = errors.New("hold_expired")
	ErrHoldNotOwned      = errors.New("hold_not_owned")
	ErrHoldInUse         = errors.New("hold_in_use")
	ErrMixedCurrency     = errors.New("mixed_currency")
	ErrTotalsMismatch    = errors.New("order_totals_mismatch")
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrInvalidTransition = errors.New("invalid_order_transition")
	ErrTicketNotFound    = errors.New("ticket_not_found")
	ErrTicketNotValid    = errors.New("ticket_not_valid")
)
