package billing_fx

import (
	"go.uber.org/fx"

	"spreadchecker/internal/services"
)

var Module = fx.Provide(
	services.NewLifecycleService,
	services.NewAccessService,
	services.NewSweepService,
)
