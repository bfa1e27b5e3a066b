package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boxoffice/internal/clock"
	"github.com/smallbiznis/boxoffice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/boxoffice/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/boxoffice/internal/order/domain"
	paymentdomain "github.com/smallbiznis/boxoffice/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	OrderSvc   orderdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	orderSvc   orderdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		orderSvc:   p.OrderSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// ProcessEvent records the provider event in the ledger and applies it to its
// order once. Redeliveries of an applied event report OutcomeDuplicate without
// touching the order. A processing error is counted on the ledger row and
// returned so the provider retries.
func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent, payload []byte) (paymentdomain.IngestOutcome, error) {
	if event == nil {
		return "", paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return "", paymentdomain.ErrInvalidProvider
	}
	if !json.Valid(payload) {
		return "", paymentdomain.ErrInvalidPayload
	}
	if err := validateEvent(event); err != nil {
		return "", err
	}

	record := &paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		OrderID:         event.OrderID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      s.clock.Now().UTC(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return "", err
	}
	if !inserted {
		record, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return "", err
		}
		if record == nil {
			return "", paymentdomain.ErrInvalidEvent
		}
		if record.ProcessedAt != nil {
			return paymentdomain.OutcomeDuplicate, nil
		}
	}

	outcome, err := s.apply(ctx, event)
	if err != nil {
		// the failure is recorded even if the request context is gone
		if ferr := s.repo.RecordFailure(context.WithoutCancel(ctx), s.db, record.ID, err.Error()); ferr != nil {
			s.log.Warn("failed to record payment event failure",
				zap.String("provider_event_id", event.ProviderEventID),
				zap.Error(ferr),
			)
		}
		return "", err
	}
	if err := s.repo.MarkProcessed(ctx, s.db, record.ID, s.clock.Now().UTC()); err != nil {
		return "", err
	}
	if inserted {
		s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.Type)
	}
	return outcome, nil
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if event.OrderID == 0 {
		return paymentdomain.ErrInvalidOrder
	}
	event.Currency = strings.ToUpper(strings.TrimSpace(event.Currency))
	if event.OccurredAt.IsZero() {
		return paymentdomain.ErrInvalidEvent
	}
	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded:
		if event.Currency == "" {
			return paymentdomain.ErrInvalidCurrency
		}
		if event.Amount <= 0 {
			return paymentdomain.ErrInvalidAmount
		}
	case paymentdomain.EventTypeRefunded:
		if event.Amount <= 0 {
			return paymentdomain.ErrInvalidAmount
		}
	case paymentdomain.EventTypePaymentFailed:
	default:
		return paymentdomain.ErrInvalidEvent
	}
	return nil
}

func (s *Service) apply(ctx context.Context, event *paymentdomain.PaymentEvent) (paymentdomain.IngestOutcome, error) {
	log := logger.WithContext(ctx, s.log).With(
		zap.String("provider", event.Provider),
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("order_id", event.OrderID.String()),
	)

	var err error
	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded:
		var view *orderdomain.OrderView
		view, err = s.orderSvc.ConfirmPayment(ctx, orderdomain.ConfirmPaymentRequest{
			OrderID:           event.OrderID,
			AmountCents:       event.Amount,
			Currency:          event.Currency,
			Provider:          event.Provider,
			ProviderPaymentID: event.ProviderPaymentID,
		})
		if err == nil {
			log.Info("payment applied", zap.String("order_status", string(view.Order.Status)))
		}
	case paymentdomain.EventTypePaymentFailed:
		_, err = s.orderSvc.FailPayment(ctx, event.OrderID, orderdomain.FailureReasonPaymentFailed)
		if err == nil {
			log.Info("payment failure applied")
		}
	case paymentdomain.EventTypeRefunded:
		_, err = s.orderSvc.RefundOrder(ctx, event.OrderID)
		if errors.Is(err, orderdomain.ErrInvalidTransition) {
			log.Warn("refund for order that was never paid")
			return paymentdomain.OutcomeIgnored, nil
		}
		if err == nil {
			log.Info("refund applied")
		}
	default:
		return "", paymentdomain.ErrInvalidEvent
	}

	// events for orders this system does not know are acknowledged so the
	// provider stops redelivering them
	if errors.Is(err, orderdomain.ErrOrderNotFound) {
		log.Warn("payment event references unknown order")
		return paymentdomain.OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}
	return paymentdomain.OutcomeProcessed, nil
}
