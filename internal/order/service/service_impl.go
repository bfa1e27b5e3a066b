package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/boxoffice/internal/clock"
	"github.com/smallbiznis/boxoffice/internal/events"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
	"github.com/smallbiznis/boxoffice/internal/observability/logger"
	"github.com/smallbiznis/boxoffice/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/boxoffice/internal/order/domain"
	"github.com/smallbiznis/boxoffice/internal/order/render"
	dbpkg "github.com/smallbiznis/boxoffice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      orderdomain.Repository
	Inventory inventorydomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
	Publisher events.Publisher `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      orderdomain.Repository
	inventory inventorydomain.Service
	metrics   *metrics.Metrics
	publisher events.Publisher
}

func New(p Params) orderdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("order.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		inventory: p.Inventory,
		metrics:   p.Metrics,
		publisher: p.Publisher,
	}
}

var errHoldMissing = errors.New("hold missing at confirmation")

func (s *Service) CreateOrder(ctx context.Context, req orderdomain.CreateOrderRequest) (*orderdomain.OrderView, error) {
	holdIDs, err := parseHoldIDs(req.HoldIDs)
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return nil, orderdomain.ErrInvalidEmail
	}
	var userID *string
	if req.UserID != nil && strings.TrimSpace(*req.UserID) != "" {
		trimmed := strings.TrimSpace(*req.UserID)
		userID = &trimmed
	}
	fingerprint := strings.TrimSpace(req.Fingerprint)
	if userID == nil && fingerprint == "" {
		return nil, orderdomain.ErrInvalidOwner
	}

	now := s.clock.Now()
	orderID := s.genID.Generate()
	items := make([]orderdomain.OrderItem, 0, len(holdIDs))
	currency := ""
	for _, holdID := range holdIDs {
		hold, err := s.inventory.GetHold(ctx, holdID)
		if err != nil {
			if errors.Is(err, inventorydomain.ErrHoldNotFound) {
				return nil, orderdomain.ErrHoldNotFound
			}
			return nil, err
		}
		if hold.Expired(now) {
			return nil, orderdomain.ErrHoldExpired
		}
		if !ownsHold(*hold, userID, fingerprint) {
			return nil, orderdomain.ErrHoldNotOwned
		}

		tier, err := s.inventory.GetTier(ctx, hold.TierID)
		if err != nil {
			return nil, err
		}
		if currency == "" {
			currency = tier.Currency
		} else if currency != tier.Currency {
			return nil, orderdomain.ErrMixedCurrency
		}

		unitFee := tier.UnitFeeCents()
		items = append(items, orderdomain.OrderItem{
			ID:                s.genID.Generate(),
			OrderID:           orderID,
			TierID:            tier.ID,
			HoldID:            hold.ID,
			Quantity:          hold.Quantity,
			UnitPriceCents:    tier.PriceCents,
			UnitFeeCents:      unitFee,
			LineSubtotalCents: tier.PriceCents * int64(hold.Quantity),
			LineFeeCents:      unitFee * int64(hold.Quantity),
			CreatedAt:         now,
		})
	}

	subtotal, fee := orderdomain.Totals(items)
	order := orderdomain.Order{
		ID:            orderID,
		UserID:        userID,
		Email:         email,
		Fingerprint:   fingerprint,
		Status:        orderdomain.OrderStatusPending,
		Currency:      currency,
		SubtotalCents: subtotal,
		FeeCents:      fee,
		TotalCents:    subtotal + fee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := order.ValidateTotals(items); err != nil {
		return nil, err
	}

	claims := make([]orderdomain.HoldClaim, 0, len(holdIDs))
	for _, holdID := range holdIDs {
		claims = append(claims, orderdomain.HoldClaim{HoldID: holdID, OrderID: orderID, CreatedAt: now})
	}

	var superseded []*orderdomain.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		superseded, err = s.takeOverClaims(ctx, tx, holdIDs, now)
		if err != nil {
			return err
		}
		if err := s.repo.InsertOrder(ctx, tx, &order); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return err
		}
		if err := s.repo.InsertHoldClaims(ctx, tx, claims); err != nil {
			if dbpkg.IsDuplicateKeyErr(err) {
				return orderdomain.ErrHoldInUse
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx, s.log)
	for _, prior := range superseded {
		log.Info("declined order superseded",
			zap.String("order_id", prior.ID.String()),
			zap.String("superseded_by", order.ID.String()),
		)
		events.PublishBestEffort(ctx, s.publisher, s.log, events.RoutingOrderFailed, orderEvent(&orderdomain.OrderView{Order: *prior}))
	}
	log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.Int("items", len(items)),
		zap.Int64("total_cents", order.TotalCents),
	)
	return &orderdomain.OrderView{Order: order, Items: items}, nil
}

// takeOverClaims frees holdIDs for a new order. Claims of pending or paid
// orders fail with ErrHoldInUse; declined orders lose their claims and are
// marked superseded. Locks follow ConfirmPayment's order: orders, then holds,
// then claims.
func (s *Service) takeOverClaims(ctx context.Context, tx *gorm.DB, holdIDs []snowflake.ID, now time.Time) ([]*orderdomain.Order, error) {
	seen, err := s.repo.FindHoldClaims(ctx, tx, holdIDs)
	if err != nil {
		return nil, err
	}
	owners := make(map[snowflake.ID]*orderdomain.Order)
	for _, ownerID := range claimOwners(seen) {
		owner, err := s.repo.LockOrder(ctx, tx, ownerID)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			continue
		}
		if owner.Status == orderdomain.OrderStatusPending || owner.Status == orderdomain.OrderStatusPaid {
			return nil, orderdomain.ErrHoldInUse
		}
		owners[ownerID] = owner
	}

	for _, holdID := range holdIDs {
		if _, err := s.inventory.LockHoldTx(ctx, tx, holdID); err != nil {
			if errors.Is(err, inventorydomain.ErrHoldNotFound) {
				return nil, orderdomain.ErrHoldNotFound
			}
			return nil, err
		}
	}

	current, err := s.repo.LockHoldClaims(ctx, tx, holdIDs)
	if err != nil {
		return nil, err
	}
	var superseded []*orderdomain.Order
	for _, ownerID := range claimOwners(current) {
		owner, ok := owners[ownerID]
		if !ok {
			// claimed after the first read
			return nil, orderdomain.ErrHoldInUse
		}
		if owner.KeepsClaims() {
			if err := s.markFailed(ctx, tx, owner, orderdomain.FailureReasonSuperseded, now); err != nil {
				return nil, err
			}
			superseded = append(superseded, owner)
			continue
		}
		if err := s.repo.DeleteHoldClaims(ctx, tx, ownerID); err != nil {
			return nil, err
		}
	}
	return superseded, nil
}

func (s *Service) GetOrder(ctx context.Context, id snowflake.ID) (*orderdomain.OrderView, error) {
	if id == 0 {
		return nil, orderdomain.ErrInvalidID
	}
	return s.loadView(ctx, s.db, id)
}

func (s *Service) loadView(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.OrderView, error) {
	order, err := s.repo.FindOrder(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	items, err := s.repo.ListItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	tickets, err := s.repo.ListTickets(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return &orderdomain.OrderView{Order: *order, Items: items, Tickets: tickets}, nil
}

// ConfirmPayment runs in one transaction: lock the order, convert every hold
// in ascending hold id order, issue one ticket per unit and mark it paid. A
// missing hold rolls the conversions back and fails the order.
func (s *Service) ConfirmPayment(ctx context.Context, req orderdomain.ConfirmPaymentRequest) (*orderdomain.OrderView, error) {
	if req.OrderID == 0 {
		return nil, orderdomain.ErrInvalidID
	}
	if req.AmountCents < 0 {
		return nil, orderdomain.ErrInvalidAmount
	}
	log := logger.WithContext(ctx, s.log).With(zap.String("order_id", req.OrderID.String()))

	var (
		issued       []orderdomain.Ticket
		failedReason string
		refundReason string
		alreadyDone  bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.LockOrder(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrOrderNotFound
		}
		switch order.Status {
		case orderdomain.OrderStatusPaid:
			alreadyDone = true
			return nil
		case orderdomain.OrderStatusRefunded:
			alreadyDone = true
			log.Warn("payment confirmation for refunded order ignored")
			return nil
		case orderdomain.OrderStatusFailed:
			if !order.KeepsClaims() {
				alreadyDone = true
				refundReason = "order_closed"
				return nil
			}
		}

		now := s.clock.Now()
		currency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if req.AmountCents != order.TotalCents || (currency != "" && currency != order.Currency) {
			failedReason = orderdomain.FailureReasonAmountMismatch
			refundReason = failedReason
			return s.markFailed(ctx, tx, order, failedReason, now)
		}

		items, err := s.repo.ListItems(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if err := order.ValidateTotals(items); err != nil {
			return err
		}

		tickets := make([]orderdomain.Ticket, 0)
		for _, item := range items {
			hold, ok, err := s.inventory.ConvertHoldToSaleTx(ctx, tx, item.HoldID)
			if err != nil {
				return err
			}
			if !ok {
				return errHoldMissing
			}
			if hold.TierID != item.TierID || hold.Quantity != item.Quantity {
				return inventorydomain.ErrInventoryInvariant
			}
			for i := int32(0); i < item.Quantity; i++ {
				tickets = append(tickets, orderdomain.Ticket{
					ID:          s.genID.Generate(),
					OrderID:     order.ID,
					OrderItemID: item.ID,
					TierID:      item.TierID,
					Code:        newTicketCode(),
					Status:      orderdomain.TicketStatusValid,
					CreatedAt:   now,
					UpdatedAt:   now,
				})
			}
		}
		if err := s.repo.InsertTickets(ctx, tx, tickets); err != nil {
			return err
		}

		provider := strings.TrimSpace(req.Provider)
		paymentID := strings.TrimSpace(req.ProviderPaymentID)
		order.Status = orderdomain.OrderStatusPaid
		order.FailureReason = nil
		order.PaymentProvider = &provider
		order.ProviderPaymentID = &paymentID
		order.PaidAt = &now
		order.UpdatedAt = now
		if err := s.repo.UpdateOrder(ctx, tx, order); err != nil {
			return err
		}
		issued = tickets
		return nil
	})

	if errors.Is(err, errHoldMissing) {
		failedReason = orderdomain.FailureReasonHoldExpired
		refundReason = failedReason
		err = s.failAndRelease(ctx, req.OrderID, failedReason)
	}
	if err != nil {
		return nil, err
	}
	if refundReason != "" {
		// the provider has captured money the order cannot keep
		log.Warn("payment confirmed but not applied, refund required",
			zap.String("reason", refundReason),
			zap.String("provider_payment_id", req.ProviderPaymentID),
		)
		events.PublishBestEffort(ctx, s.publisher, s.log, events.RoutingRefundRequired, refundRequiredEvent{
			OrderID:           req.OrderID.String(),
			Reason:            refundReason,
			Provider:          strings.TrimSpace(req.Provider),
			ProviderPaymentID: strings.TrimSpace(req.ProviderPaymentID),
			AmountCents:       req.AmountCents,
			Currency:          strings.ToUpper(strings.TrimSpace(req.Currency)),
		})
	}

	view, err := s.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	switch {
	case alreadyDone:
		if refundReason == "" {
			log.Info("payment confirmation already applied", zap.String("status", string(view.Order.Status)))
		}
	case failedReason != "":
		log.Warn("order failed at payment confirmation", zap.String("reason", failedReason))
		events.PublishBestEffort(ctx, s.publisher, s.log, events.RoutingOrderFailed, orderEvent(view))
	default:
		s.metrics.RecordTicketsIssued(ctx, len(issued))
		log.Info("order paid", zap.Int("tickets", len(issued)))
		events.PublishBestEffort(ctx, s.publisher, s.log, events.RoutingOrderPaid, orderEvent(view))
	}
	return view, nil
}

// failAndRelease marks a still-pending order failed and gives its remaining
// holds back to inventory.
func (s *Service) failAndRelease(ctx context.Context, orderID snowflake.ID, reason string) error {
	var items []orderdomain.OrderItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrOrderNotFound
		}
		if order.Status != orderdomain.OrderStatusPending && order.Status != orderdomain.OrderStatusFailed {
			return nil
		}
		items, err = s.repo.ListItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		return s.markFailed(ctx, tx, order, reason, s.clock.Now())
	})
	if err != nil {
		return err
	}

	for _, item := range items {
		if _, err := s.inventory.ReleaseHold(ctx, item.HoldID); err != nil {
			s.log.Error("release hold of failed order",
				zap.String("order_id", orderID.String()),
				zap.String("hold_id", item.HoldID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// markFailed closes the order. Only a declined payment keeps the holds
// claimed so the buyer can retry.
func (s *Service) markFailed(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, reason string, now time.Time) error {
	order.Status = orderdomain.OrderStatusFailed
	order.FailureReason = &reason
	order.UpdatedAt = now
	if err := s.repo.UpdateOrder(ctx, tx, order); err != nil {
		return err
	}
	if order.KeepsClaims() {
		return nil
	}
	return s.repo.DeleteHoldClaims(ctx, tx, order.ID)
}

// FailPayment records a declined payment. Holds stay in place so the buyer
// can retry until they expire.
func (s *Service) FailPayment(ctx context.Context, id snowflake.ID, reason string) (*orderdomain.OrderView, error) {
	if id == 0 {
		return nil, orderdomain.ErrInvalidID
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = orderdomain.FailureReasonPaymentFailed
	}

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.LockOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrOrderNotFound
		}
		if order.Status != orderdomain.OrderStatusPending {
			return nil
		}
		changed = true
		return s.markFailed(ctx, tx, order, reason, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	view, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if changed {
		logger.WithContext(ctx, s.log).Info("order payment failed",
			zap.String("order_id", id.String()),
			zap.String("reason", reason),
		)
		events.PublishBestEffort(ctx, s.publisher, s.log, events.RoutingOrderFailed, orderEvent(view))
	}
	return view, nil
}

// RefundOrder voids the order's unused tickets; tier counters follow from the
// ticket statuses on recalculation.
func (s *Service) RefundOrder(ctx context.Context, id snowflake.ID) (*orderdomain.OrderView, error) {
	if id == 0 {
		return nil, orderdomain.ErrInvalidID
	}

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.LockOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrOrderNotFound
		}
		switch order.Status {
		case orderdomain.OrderStatusRefunded:
			return nil
		case orderdomain.OrderStatusPaid:
		default:
			return orderdomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		if _, err := s.repo.RefundValidTickets(ctx, tx, id, now); err != nil {
			return err
		}
		order.Status = orderdomain.OrderStatusRefunded
		order.RefundedAt = &now
		order.UpdatedAt = now
		changed = true
		return s.repo.UpdateOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	view, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if changed {
		for _, tierID := range tierIDs(view.Items) {
			if _, err := s.inventory.RecalculateTierInventory(ctx, tierID); err != nil {
				s.log.Warn("recalculate tier after refund failed",
					zap.String("tier_id", tierID.String()),
					zap.Error(err),
				)
			}
		}
		logger.WithContext(ctx, s.log).Info("order refunded", zap.String("order_id", id.String()))
		events.PublishBestEffort(ctx, s.publisher, s.log, events.RoutingOrderRefunded, orderEvent(view))
	}
	return view, nil
}

func (s *Service) GetTicket(ctx context.Context, code string) (*orderdomain.Ticket, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, orderdomain.ErrInvalidCode
	}
	ticket, err := s.repo.FindTicketByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, orderdomain.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *Service) RedeemTicket(ctx context.Context, code string) (*orderdomain.Ticket, error) {
	return s.transitionTicket(ctx, code, orderdomain.TicketStatusUsed)
}

func (s *Service) CancelTicket(ctx context.Context, code string) (*orderdomain.Ticket, error) {
	ticket, err := s.transitionTicket(ctx, code, orderdomain.TicketStatusCancelled)
	if err != nil {
		return nil, err
	}
	if _, err := s.inventory.RecalculateTierInventory(ctx, ticket.TierID); err != nil {
		s.log.Warn("recalculate tier after cancel failed",
			zap.String("tier_id", ticket.TierID.String()),
			zap.Error(err),
		)
	}
	return ticket, nil
}

// transitionTicket moves a valid ticket to next; any other current status is rejected.
func (s *Service) transitionTicket(ctx context.Context, code string, next orderdomain.TicketStatus) (*orderdomain.Ticket, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, orderdomain.ErrInvalidCode
	}
	var out *orderdomain.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := s.repo.LockTicketByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if ticket == nil {
			return orderdomain.ErrTicketNotFound
		}
		if ticket.Status != orderdomain.TicketStatusValid {
			return orderdomain.ErrTicketNotValid
		}
		now := s.clock.Now()
		ticket.Status = next
		ticket.UpdatedAt = now
		if next == orderdomain.TicketStatusUsed {
			ticket.RedeemedAt = &now
		}
		if err := s.repo.UpdateTicketStatus(ctx, tx, ticket); err != nil {
			return err
		}
		out = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("ticket status changed",
		zap.String("ticket_id", out.ID.String()),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}

func (s *Service) TicketQRCode(ctx context.Context, code string, size int) ([]byte, error) {
	ticket, err := s.GetTicket(ctx, code)
	if err != nil {
		return nil, err
	}
	return render.QRCode(ticket.Code, size)
}

func (s *Service) OrderTicketsPDF(ctx context.Context, id snowflake.ID) ([]byte, error) {
	view, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if view.Order.Status != orderdomain.OrderStatusPaid {
		return nil, orderdomain.ErrInvalidTransition
	}

	doc := render.TicketDocument{
		OrderID:   view.Order.ID.String(),
		Email:     view.Order.Email,
		Currency:  view.Order.Currency,
		Total:     view.Order.TotalCents,
		TierNames: map[string]string{},
	}
	if view.Order.PaidAt != nil {
		doc.PaidAt = view.Order.PaidAt.Format(time.RFC1123)
	}
	for _, tierID := range tierIDs(view.Items) {
		tier, err := s.inventory.GetTier(ctx, tierID)
		if err != nil {
			return nil, err
		}
		doc.TierNames[tierID.String()] = tier.Name
	}
	for _, ticket := range view.Tickets {
		doc.Tickets = append(doc.Tickets, render.TicketLine{
			Code:   ticket.Code,
			TierID: ticket.TierID.String(),
			Status: string(ticket.Status),
		})
	}
	return render.TicketsPDF(doc)
}

type orderEventData struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	TotalCents    int64  `json:"total_cents"`
	Currency      string `json:"currency"`
	Tickets       int    `json:"tickets"`
}

type refundRequiredEvent struct {
	OrderID           string `json:"order_id"`
	Reason            string `json:"reason"`
	Provider          string `json:"provider"`
	ProviderPaymentID string `json:"provider_payment_id"`
	AmountCents       int64  `json:"amount_cents"`
	Currency          string `json:"currency"`
}

func orderEvent(view *orderdomain.OrderView) orderEventData {
	data := orderEventData{
		OrderID:    view.Order.ID.String(),
		Status:     string(view.Order.Status),
		TotalCents: view.Order.TotalCents,
		Currency:   view.Order.Currency,
		Tickets:    len(view.Tickets),
	}
	if view.Order.FailureReason != nil {
		data.FailureReason = *view.Order.FailureReason
	}
	return data
}

func ownsHold(hold inventorydomain.TicketHold, userID *string, fingerprint string) bool {
	if hold.UserID != nil {
		return userID != nil && *userID == *hold.UserID
	}
	return fingerprint != "" && hold.Fingerprint == fingerprint
}

func parseHoldIDs(raw []string) ([]snowflake.ID, error) {
	if len(raw) == 0 {
		return nil, orderdomain.ErrInvalidHold
	}
	seen := make(map[snowflake.ID]struct{}, len(raw))
	out := make([]snowflake.ID, 0, len(raw))
	for _, value := range raw {
		id, err := snowflake.ParseString(strings.TrimSpace(value))
		if err != nil || id == 0 {
			return nil, orderdomain.ErrInvalidHold
		}
		if _, ok := seen[id]; ok {
			return nil, orderdomain.ErrInvalidHold
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func claimOwners(claims []orderdomain.HoldClaim) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(claims))
	out := make([]snowflake.ID, 0, len(claims))
	for _, claim := range claims {
		if _, ok := seen[claim.OrderID]; ok {
			continue
		}
		seen[claim.OrderID] = struct{}{}
		out = append(out, claim.OrderID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func tierIDs(items []orderdomain.OrderItem) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(items))
	out := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.TierID]; ok {
			continue
		}
		seen[item.TierID] = struct{}{}
		out = append(out, item.TierID)
	}
	return out
}

func newTicketCode() string {
	return ulid.Make().String()
}
