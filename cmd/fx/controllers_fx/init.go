package controllers_fx

import (
	"os"

	"go.uber.org/fx"

	"spreadchecker/internal/api/controllers"
)

var Module = fx.Options(
	fx.Provide(provideSweepConfig),
	fx.Provide(controllers.NewBillingController),
	fx.Provide(controllers.NewWebhookController),
	fx.Provide(controllers.NewMemberController),
	fx.Provide(controllers.NewSweepController),
)

func provideSweepConfig() controllers.SweepConfig {
	return controllers.SweepConfig{
		Secret: os.Getenv("INTERNAL_SWEEP_TOKEN"),
	}
}
