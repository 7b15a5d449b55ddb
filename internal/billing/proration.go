package billing

import (
	"errors"
	"time"
)

var (
	ErrPeriodElapsed = errors.New("billing period already elapsed")
	ErrEmptyPeriod   = errors.New("billing period is empty")
)

// MinimumChargePence is the floor for one-off prorated payments. Charges
// below it are bumped up so the processor does not reject them.
const MinimumChargePence = 100

// Prorate computes the partial-period charge (ex VAT) for a paid change made
// mid-cycle. Whole days are counted with a ceiling, so a change on the first
// day of the period costs the full price and a change at the exact period end
// costs nothing. A clock past periodEnd means the caller is working off stale
// subscription data; that is rejected rather than producing a negative charge.
func Prorate(fullPeriodPricePence int64, periodStart, periodEnd, now time.Time) (int64, error) {
	if now.After(periodEnd) {
		return 0, ErrPeriodElapsed
	}
	totalDays := ceilDays(periodEnd.Sub(periodStart))
	if totalDays <= 0 {
		return 0, ErrEmptyPeriod
	}
	daysRemaining := ceilDays(periodEnd.Sub(now))
	if daysRemaining <= 0 {
		return 0, nil
	}
	if daysRemaining > totalDays {
		daysRemaining = totalDays
	}
	return (fullPeriodPricePence*daysRemaining + totalDays/2) / totalDays, nil
}

func ceilDays(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	return int64((d + day - 1) / day)
}
