package checkout_fx

import (
	"os"

	"go.uber.org/fx"

	"spreadchecker/internal/services"
)

var Module = fx.Options(
	fx.Provide(provideCheckoutConfig),
	fx.Provide(services.NewCheckoutService),
)

func provideCheckoutConfig() services.CheckoutConfig {
	return services.CheckoutConfig{
		SuccessURL: os.Getenv("CHECKOUT_SUCCESS_URL"),
		CancelURL:  os.Getenv("CHECKOUT_CANCEL_URL"),
	}
}
