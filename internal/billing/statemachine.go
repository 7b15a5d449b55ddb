package billing

import (
	"errors"
	"time"
)

type SubscriptionStatus string

const (
	StatusTrialing  SubscriptionStatus = "trialing"
	StatusActive    SubscriptionStatus = "active"
	StatusCanceling SubscriptionStatus = "canceling"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// AnnualGraceDays is the grace window granted on the first cancellation of an
// annual plan. Monthly plans keep access until the paid period ends instead.
const AnnualGraceDays = 30

// TrialDays is the free trial length from signup.
const TrialDays = 60

var (
	ErrAlreadyCancelled   = errors.New("subscription already cancelled")
	ErrNoSubscriptionType = errors.New("subscription has no billing period")
	ErrInvalidTransition  = errors.New("invalid subscription state transition")
)

// State is the snapshot of a company's subscription that cancellation
// decisions are made from.
type State struct {
	Status          SubscriptionStatus
	Type            BillingPeriod // empty while trialing
	GracePeriodUsed bool
}

// CancellationPlan is the decided outcome of a cancellation request. The
// caller applies the processor side first, then the internal record.
type CancellationPlan struct {
	// LockImmediately denies access in the same call, with no grace window.
	LockImmediately bool
	// CancelProcessorNow cancels the processor subscription synchronously.
	CancelProcessorNow bool
	// DeferToPeriodEnd flags the processor subscription to cancel at the
	// current period end instead of immediately.
	DeferToPeriodEnd bool
	// ScheduledEnd is when access lapses for non-immediate cancellations.
	ScheduledEnd *time.Time
	// ConsumesGrace marks the one-per-customer grace period as used.
	ConsumesGrace bool
}

// PlanCancellation decides what a cancellation request does. The branch order
// is a business rule and must stay as-is: trials override everything, then a
// consumed grace period forces an immediate lock, and only then does the
// billing period pick the grace window. periodEnd is the processor's current
// period end; it is only consulted on the monthly first-cancellation path.
func PlanCancellation(st State, now, periodEnd time.Time) (CancellationPlan, error) {
	if st.Status == StatusCancelled {
		return CancellationPlan{}, ErrAlreadyCancelled
	}

	if st.Status == StatusTrialing {
		return CancellationPlan{LockImmediately: true}, nil
	}

	if st.GracePeriodUsed {
		return CancellationPlan{
			LockImmediately:    true,
			CancelProcessorNow: true,
		}, nil
	}

	switch st.Type {
	case PeriodMonthly:
		end := periodEnd
		return CancellationPlan{
			DeferToPeriodEnd: true,
			ScheduledEnd:     &end,
			ConsumesGrace:    true,
		}, nil
	case PeriodAnnual:
		// No refund, but a fixed grace window: annual periods are too long
		// for "rest of period" to make sense as a courtesy.
		end := now.AddDate(0, 0, AnnualGraceDays)
		return CancellationPlan{
			CancelProcessorNow: true,
			ScheduledEnd:       &end,
			ConsumesGrace:      true,
		}, nil
	default:
		return CancellationPlan{}, ErrNoSubscriptionType
	}
}

// CanTransition reports whether a status change is a legal edge. There is no
// canceling→active edge: reactivation re-enters through a fresh checkout
// confirmation, the same as cancelled→active.
func CanTransition(from, to SubscriptionStatus) bool {
	switch from {
	case StatusTrialing:
		return to == StatusActive || to == StatusCancelled
	case StatusActive:
		return to == StatusCanceling || to == StatusCancelled
	case StatusCanceling:
		return to == StatusCancelled
	case StatusCancelled:
		return to == StatusActive
	}
	return false
}
