package payment

import (
	"github.com/smallbiznis/boxoffice/internal/payment/adapters"
	"github.com/smallbiznis/boxoffice/internal/payment/adapters/stripe"
	"github.com/smallbiznis/boxoffice/internal/payment/repository"
	paymentservice "github.com/smallbiznis/boxoffice/internal/payment/service"
	"github.com/smallbiznis/boxoffice/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(),
		)
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
