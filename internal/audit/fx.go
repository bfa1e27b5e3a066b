// Package audit keeps the trail of privileged changes made through the API.
package audit

import (
	"github.com/smallbiznis/boxoffice/internal/audit/repository"
	"github.com/smallbiznis/boxoffice/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
