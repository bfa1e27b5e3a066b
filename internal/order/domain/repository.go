package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertOrder(ctx context.Context, db *gorm.DB, order *Order) error
	InsertItems(ctx context.Context, db *gorm.DB, items []OrderItem) error
	FindOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	LockOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	UpdateOrder(ctx context.Context, db *gorm.DB, order *Order) error
	ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderItem, error)
	FindHoldClaims(ctx context.Context, db *gorm.DB, holdIDs []snowflake.ID) ([]HoldClaim, error)
	LockHoldClaims(ctx context.Context, db *gorm.DB, holdIDs []snowflake.ID) ([]HoldClaim, error)
	InsertHoldClaims(ctx context.Context, db *gorm.DB, claims []HoldClaim) error
	DeleteHoldClaims(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error

	InsertTickets(ctx context.Context, db *gorm.DB, tickets []Ticket) error
	ListTickets(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Ticket, error)
	FindTicketByCode(ctx context.Context, db *gorm.DB, code string) (*Ticket, error)
	LockTicketByCode(ctx context.Context, db *gorm.DB, code string) (*Ticket, error)
	UpdateTicketStatus(ctx context.Context, db *gorm.DB, ticket *Ticket) error
	RefundValidTickets(ctx context.Context, db *gorm.DB, orderID snowflake.ID, at time.Time) (int64, error)
}
