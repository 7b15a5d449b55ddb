// Package processor abstracts the external payment processor. The billing
// services only see this contract; the Stripe-backed client lives behind it.
package processor

import (
	"context"
	"time"
)

// Event types delivered asynchronously by the processor.
const (
	EventCheckoutCompleted   = "checkout.completed"
	EventSubscriptionUpdated = "subscription.updated"
	EventSubscriptionDeleted = "subscription.deleted"
	EventPaymentFailed       = "payment.failed"
	EventIgnored             = "ignored"
)

// LineItem describes one priced item on a checkout session. Interval empty
// means a one-off payment; "month"/"year" makes it recurring.
type LineItem struct {
	Name        string
	Description string
	AmountPence int64
	Quantity    int64
	Interval    string
}

type CheckoutSessionParams struct {
	CustomerRef    string
	SuccessURL     string
	CancelURL      string
	LineItems      []LineItem
	Metadata       map[string]string
	IdempotencyKey string
}

type Session struct {
	ID  string
	URL string
}

// SubscriptionStatusCanceled is the processor's terminal subscription status.
const SubscriptionStatusCanceled = "canceled"

// Subscription is the slice of the processor's subscription object the
// lifecycle logic needs.
type Subscription struct {
	ID                 string
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

type UpdateSubscriptionParams struct {
	SeatQuantity      *int64
	UnitAmountPence   *int64
	Interval          string
	CancelAtPeriodEnd *bool
	Comment           string
	Metadata          map[string]string
	IdempotencyKey    string
}

// Event is a verified asynchronous confirmation. Metadata round-trips the
// values set at session creation; replays carry the same ID.
type Event struct {
	ID              string
	Type            string
	SessionID       string
	SubscriptionRef string
	Metadata        map[string]string
}

// Client is the processor contract. Mutating calls must honour ctx deadlines
// and carry the idempotency key so a caller-side retry after a timeout cannot
// double-charge.
type Client interface {
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*Session, error)
	UpdateSubscription(ctx context.Context, subscriptionRef string, params UpdateSubscriptionParams) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionRef string, comment string) (*Subscription, error)
	RetrieveSubscription(ctx context.Context, subscriptionRef string) (*Subscription, error)
	ConstructEvent(payload []byte, signature string) (*Event, error)
}
