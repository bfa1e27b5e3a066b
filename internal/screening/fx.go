package screening

import (
	"github.com/smallbiznis/boxoffice/internal/screening/repository"
	"github.com/smallbiznis/boxoffice/internal/screening/service"
	"go.uber.org/fx"
)

var Module = fx.Module("screening.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(service.StartConfigSync),
)
