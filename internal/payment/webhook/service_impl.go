package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/smallbiznis/boxoffice/internal/config"
	"github.com/smallbiznis/boxoffice/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/boxoffice/internal/payment/domain"
	paymentservice "github.com/smallbiznis/boxoffice/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var errPaymentServiceUnavailable = errors.New("payment_service_unavailable")

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc *paymentservice.Service
	Adapters   *adapters.Registry
	Cfg        config.Config
}

type Service struct {
	log        *zap.Logger
	paymentSvc *paymentservice.Service
	adapters   map[string]paymentdomain.PaymentAdapter
}

// NewService builds one adapter per configured provider. Providers without
// usable credentials stay unreachable and answer provider_not_found.
func NewService(p Params) paymentdomain.Service {
	log := p.Log.Named("payment.webhook")
	configs := map[string]paymentdomain.AdapterConfig{
		"stripe": {WebhookSecret: p.Cfg.Payment.StripeWebhookSecret},
	}

	built := map[string]paymentdomain.PaymentAdapter{}
	for _, provider := range p.Adapters.Providers() {
		adapter, err := p.Adapters.Build(provider, configs[provider])
		if err != nil {
			log.Warn("payment provider disabled", zap.String("provider", provider), zap.Error(err))
			continue
		}
		built[provider] = adapter
	}

	return &Service{
		log:        log,
		paymentSvc: p.PaymentSvc,
		adapters:   built,
	}
}

// IngestWebhook verifies, parses and applies one provider delivery.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (paymentdomain.IngestOutcome, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "", paymentdomain.ErrInvalidProvider
	}
	adapter, ok := s.adapters[provider]
	if !ok {
		return "", paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return "", paymentdomain.ErrInvalidPayload
	}
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return "", err
	}

	event, err := adapter.Parse(ctx, payload)
	switch {
	case errors.Is(err, paymentdomain.ErrEventIgnored):
		return paymentdomain.OutcomeIgnored, nil
	case errors.Is(err, paymentdomain.ErrInvalidOrder):
		s.log.Warn("payment webhook missing order reference", zap.String("provider", provider))
		return "", err
	case err != nil:
		return "", err
	}

	if s.paymentSvc == nil {
		return "", errPaymentServiceUnavailable
	}
	event.Provider = provider
	outcome, err := s.paymentSvc.ProcessEvent(ctx, event, payload)
	if err != nil {
		return "", err
	}
	if outcome == paymentdomain.OutcomeDuplicate {
		s.log.Debug("payment event redelivered",
			zap.String("provider", provider),
			zap.String("provider_event_id", event.ProviderEventID),
		)
	}
	return outcome, nil
}
