package utils

import "time"

// UK time (GMT/BST); billing periods and VAT are UK-scoped.
var ukLoc = func() *time.Location {
	if loc, err := time.LoadLocation("Europe/London"); err == nil {
		return loc
	}
	return time.UTC
}()

// DB columns store unix seconds.
func NowUnixSeconds() int64 { return time.Now().Unix() }

// FromUnixSecondsUK converts an epoch value in seconds to UK time.
// Returns zero time if t<=0 to let callers decide how to render.
func FromUnixSecondsUK(t int64) time.Time {
	if t <= 0 {
		return time.Time{}
	}
	return time.Unix(t, 0).In(ukLoc)
}

func FormatRFC3339UK(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(ukLoc).Format(time.RFC3339)
}

// DaysUntil counts whole days from now until the epoch-seconds deadline,
// rounding any part day up. Non-positive results mean the deadline passed.
func DaysUntil(deadline int64, now time.Time) int {
	remaining := time.Unix(deadline, 0).Sub(now)
	if remaining <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	return int((remaining + day - 1) / day)
}
