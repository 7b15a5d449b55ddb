package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"spreadchecker/pkg/utils"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// SeatProductRef is the dashboard product the per-seat recurring price
	// hangs off when seat quantities change mid-subscription.
	SeatProductRef string
	// CallTimeout bounds every processor call. On expiry the outcome is
	// unknown, not failed.
	CallTimeout time.Duration
}

type stripeClient struct {
	cfg StripeConfig
}

func NewStripeClient(cfg StripeConfig) (Client, error) {
	if cfg.SecretKey == "" || cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("missing stripe credentials")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	stripe.Key = cfg.SecretKey
	return &stripeClient{cfg: cfg}, nil
}

func (s *stripeClient) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	c, err := customer.New(params)
	if err != nil {
		return "", s.wrapErr(ctx, "create customer", err)
	}
	return c.ID, nil
}

func (s *stripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	mode := stripe.CheckoutSessionModePayment
	for _, item := range p.LineItems {
		if item.Interval != "" {
			mode = stripe.CheckoutSessionModeSubscription
		}
	}

	params := &stripe.CheckoutSessionParams{
		Customer:            stripe.String(p.CustomerRef),
		Mode:                stripe.String(string(mode)),
		SuccessURL:          stripe.String(p.SuccessURL),
		CancelURL:           stripe.String(p.CancelURL),
		PaymentMethodTypes:  stripe.StringSlice([]string{"card"}),
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	for _, item := range p.LineItems {
		priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(string(stripe.CurrencyGBP)),
			UnitAmount: stripe.Int64(item.AmountPence),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name:        stripe.String(item.Name),
				Description: stripe.String(item.Description),
			},
		}
		if item.Interval != "" {
			priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String(item.Interval),
			}
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: priceData,
			Quantity:  stripe.Int64(item.Quantity),
		})
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, s.wrapErr(ctx, "create checkout session", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *stripeClient) UpdateSubscription(ctx context.Context, subscriptionRef string, p UpdateSubscriptionParams) (*Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.CancelAtPeriodEnd != nil {
		params.CancelAtPeriodEnd = stripe.Bool(*p.CancelAtPeriodEnd)
	}
	if p.Comment != "" {
		params.CancellationDetails = &stripe.SubscriptionCancellationDetailsParams{
			Comment: stripe.String(p.Comment),
		}
	}

	if p.SeatQuantity != nil || p.UnitAmountPence != nil {
		// Repricing replaces the single seat item in place; proration is
		// ours, not Stripe's.
		current, err := s.retrieve(ctx, subscriptionRef)
		if err != nil {
			return nil, err
		}
		if len(current.Items.Data) == 0 {
			return nil, fmt.Errorf("%w: subscription %s has no items", utils.ErrProcessor, subscriptionRef)
		}
		item := &stripe.SubscriptionItemsParams{
			ID: stripe.String(current.Items.Data[0].ID),
		}
		if p.SeatQuantity != nil {
			item.Quantity = stripe.Int64(*p.SeatQuantity)
		}
		if p.UnitAmountPence != nil {
			interval := p.Interval
			if interval == "" {
				interval = "month"
			}
			item.PriceData = &stripe.SubscriptionItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyGBP)),
				Product:    stripe.String(s.cfg.SeatProductRef),
				UnitAmount: stripe.Int64(*p.UnitAmountPence),
				Recurring: &stripe.SubscriptionItemPriceDataRecurringParams{
					Interval: stripe.String(interval),
				},
			}
		}
		params.Items = []*stripe.SubscriptionItemsParams{item}
		params.ProrationBehavior = stripe.String("none")
	}

	sub, err := subscription.Update(subscriptionRef, params)
	if err != nil {
		return nil, s.wrapErr(ctx, "update subscription", err)
	}
	return toSubscription(sub), nil
}

func (s *stripeClient) CancelSubscription(ctx context.Context, subscriptionRef string, comment string) (*Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	params.SetIdempotencyKey("cancel:" + subscriptionRef)
	if comment != "" {
		params.CancellationDetails = &stripe.SubscriptionCancelCancellationDetailsParams{
			Comment: stripe.String(comment),
		}
	}

	sub, err := subscription.Cancel(subscriptionRef, params)
	if err != nil {
		return nil, s.wrapErr(ctx, "cancel subscription", err)
	}
	return toSubscription(sub), nil
}

func (s *stripeClient) RetrieveSubscription(ctx context.Context, subscriptionRef string) (*Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	sub, err := s.retrieve(ctx, subscriptionRef)
	if err != nil {
		return nil, err
	}
	return toSubscription(sub), nil
}

func (s *stripeClient) retrieve(ctx context.Context, subscriptionRef string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := subscription.Get(subscriptionRef, params)
	if err != nil {
		return nil, s.wrapErr(ctx, "retrieve subscription", err)
	}
	return sub, nil
}

// ConstructEvent verifies the webhook signature and normalises the Stripe
// event into the processor contract's shape.
func (s *stripeClient) ConstructEvent(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: webhook signature verification failed: %v", utils.ErrProcessor, err)
	}

	out := &Event{ID: event.ID, Type: EventIgnored}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: parse checkout session event: %v", utils.ErrProcessor, err)
		}
		out.Type = EventCheckoutCompleted
		out.SessionID = sess.ID
		out.Metadata = sess.Metadata
		if sess.Subscription != nil {
			out.SubscriptionRef = sess.Subscription.ID
		}
	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: parse subscription event: %v", utils.ErrProcessor, err)
		}
		out.Type = EventSubscriptionUpdated
		out.SubscriptionRef = sub.ID
		out.Metadata = sub.Metadata
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: parse subscription event: %v", utils.ErrProcessor, err)
		}
		out.Type = EventSubscriptionDeleted
		out.SubscriptionRef = sub.ID
		out.Metadata = sub.Metadata
	case "invoice.payment_failed":
		// Only the subscription ref is needed; decode minimally instead of
		// tracking the full invoice shape across API versions.
		var inv struct {
			Subscription string `json:"subscription"`
		}
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: parse invoice event: %v", utils.ErrProcessor, err)
		}
		out.Type = EventPaymentFailed
		out.SubscriptionRef = inv.Subscription
	}

	return out, nil
}

func (s *stripeClient) wrapErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %v", utils.ErrProcessorUnknownOutcome, op, err)
	}
	return fmt.Errorf("%w: %s: %v", utils.ErrProcessor, op, err)
}

func toSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	// Billing periods live on the subscription items.
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0)
		out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0)
	}
	return out
}
