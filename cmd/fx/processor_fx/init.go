package processor_fx

import (
	"log"
	"os"

	"go.uber.org/fx"

	"spreadchecker/internal/processor"
)

var Module = fx.Provide(provideProcessorClient)

func provideProcessorClient() processor.Client {
	client, err := processor.NewStripeClient(processor.StripeConfig{
		SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SeatProductRef: os.Getenv("STRIPE_SEAT_PRODUCT"),
	})
	if err != nil {
		log.Fatalf("Error initializing payment processor client: %v", err)
	}
	return client
}
