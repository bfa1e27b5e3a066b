package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/boxoffice/internal/order/domain"
	dbpkg "github.com/smallbiznis/boxoffice/pkg/db"
	"gorm.io/gorm"
)

const orderColumns = `id, user_id, email, fingerprint, status, failure_reason, currency,
	subtotal_cents, fee_cents, total_cents, payment_provider, provider_payment_id,
	paid_at, refunded_at, created_at, updated_at`

const itemColumns = `id, order_id, tier_id, hold_id, quantity, unit_price_cents, unit_fee_cents,
	line_subtotal_cents, line_fee_cents, created_at`

const ticketColumns = `id, order_id, order_item_id, tier_id, code, status, redeemed_at, created_at, updated_at`

type repo struct{}

func Provide() orderdomain.Repository {
	return &repo{}
}

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, order *orderdomain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.UserID,
		order.Email,
		order.Fingerprint,
		order.Status,
		order.FailureReason,
		order.Currency,
		order.SubtotalCents,
		order.FeeCents,
		order.TotalCents,
		order.PaymentProvider,
		order.ProviderPaymentID,
		order.PaidAt,
		order.RefundedAt,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []orderdomain.OrderItem) error {
	for _, item := range items {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO order_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.OrderID,
			item.TierID,
			item.HoldID,
			item.Quantity,
			item.UnitPriceCents,
			item.UnitFeeCents,
			item.LineSubtotalCents,
			item.LineFeeCents,
			item.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.Order, error) {
	return r.findOrder(ctx, db, id, "")
}

func (r *repo) LockOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.Order, error) {
	return r.findOrder(ctx, db, id, dbpkg.ForUpdate(db))
}

func (r *repo) findOrder(ctx context.Context, db *gorm.DB, id snowflake.ID, suffix string) (*orderdomain.Order, error) {
	var order orderdomain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`+suffix,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) UpdateOrder(ctx context.Context, db *gorm.DB, order *orderdomain.Order) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, failure_reason = ?, payment_provider = ?, provider_payment_id = ?,
		     paid_at = ?, refunded_at = ?, updated_at = ?
		 WHERE id = ?`,
		order.Status,
		order.FailureReason,
		order.PaymentProvider,
		order.ProviderPaymentID,
		order.PaidAt,
		order.RefundedAt,
		order.UpdatedAt,
		order.ID,
	).Error
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]orderdomain.OrderItem, error) {
	var items []orderdomain.OrderItem
	err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM order_items WHERE order_id = ? ORDER BY hold_id ASC`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindHoldClaims(ctx context.Context, db *gorm.DB, holdIDs []snowflake.ID) ([]orderdomain.HoldClaim, error) {
	return r.findHoldClaims(ctx, db, holdIDs, "")
}

func (r *repo) LockHoldClaims(ctx context.Context, db *gorm.DB, holdIDs []snowflake.ID) ([]orderdomain.HoldClaim, error) {
	return r.findHoldClaims(ctx, db, holdIDs, dbpkg.ForUpdate(db))
}

func (r *repo) findHoldClaims(ctx context.Context, db *gorm.DB, holdIDs []snowflake.ID, suffix string) ([]orderdomain.HoldClaim, error) {
	if len(holdIDs) == 0 {
		return nil, nil
	}
	var claims []orderdomain.HoldClaim
	err := db.WithContext(ctx).Raw(
		`SELECT hold_id, order_id, created_at FROM hold_claims
		 WHERE hold_id IN ? ORDER BY hold_id ASC`+suffix,
		holdIDs,
	).Scan(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// InsertHoldClaims fails with a duplicate key error when a hold is already
// claimed.
func (r *repo) InsertHoldClaims(ctx context.Context, db *gorm.DB, claims []orderdomain.HoldClaim) error {
	for _, claim := range claims {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO hold_claims (hold_id, order_id, created_at) VALUES (?, ?, ?)`,
			claim.HoldID,
			claim.OrderID,
			claim.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) DeleteHoldClaims(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM hold_claims WHERE order_id = ?`, orderID).Error
}

func (r *repo) InsertTickets(ctx context.Context, db *gorm.DB, tickets []orderdomain.Ticket) error {
	for _, ticket := range tickets {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO tickets (`+ticketColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ticket.ID,
			ticket.OrderID,
			ticket.OrderItemID,
			ticket.TierID,
			ticket.Code,
			ticket.Status,
			ticket.RedeemedAt,
			ticket.CreatedAt,
			ticket.UpdatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) ListTickets(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]orderdomain.Ticket, error) {
	var tickets []orderdomain.Ticket
	err := db.WithContext(ctx).Raw(
		`SELECT `+ticketColumns+` FROM tickets WHERE order_id = ? ORDER BY id ASC`,
		orderID,
	).Scan(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *repo) FindTicketByCode(ctx context.Context, db *gorm.DB, code string) (*orderdomain.Ticket, error) {
	return r.findTicket(ctx, db, code, "")
}

func (r *repo) LockTicketByCode(ctx context.Context, db *gorm.DB, code string) (*orderdomain.Ticket, error) {
	return r.findTicket(ctx, db, code, dbpkg.ForUpdate(db))
}

func (r *repo) findTicket(ctx context.Context, db *gorm.DB, code, suffix string) (*orderdomain.Ticket, error) {
	var ticket orderdomain.Ticket
	err := db.WithContext(ctx).Raw(
		`SELECT `+ticketColumns+` FROM tickets WHERE code = ?`+suffix,
		code,
	).Scan(&ticket).Error
	if err != nil {
		return nil, err
	}
	if ticket.ID == 0 {
		return nil, nil
	}
	return &ticket, nil
}

func (r *repo) UpdateTicketStatus(ctx context.Context, db *gorm.DB, ticket *orderdomain.Ticket) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tickets SET status = ?, redeemed_at = ?, updated_at = ? WHERE id = ?`,
		ticket.Status,
		ticket.RedeemedAt,
		ticket.UpdatedAt,
		ticket.ID,
	).Error
}

func (r *repo) RefundValidTickets(ctx context.Context, db *gorm.DB, orderID snowflake.ID, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tickets SET status = ?, updated_at = ? WHERE order_id = ? AND status = ?`,
		orderdomain.TicketStatusRefunded,
		at,
		orderID,
		orderdomain.TicketStatusValid,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
