package response_models

type AccessStatus struct {
	Granted            bool   `json:"granted"`
	Reason             string `json:"reason"`
	TrialDaysRemaining *int   `json:"trial_days_remaining,omitempty"`
}

type CheckoutResponse struct {
	RedirectURL string `json:"redirect_url"`
	SessionID   string `json:"session_id,omitempty"`
}

type CancellationResponse struct {
	AccountLocked bool   `json:"account_locked"`
	DaysRemaining *int   `json:"days_remaining,omitempty"`
	Message       string `json:"message"`
}

// SeatUpdateResponse: reductions and trial-time changes apply directly and
// carry the new price; paid increases return a redirect to the prorated
// checkout instead.
type SeatUpdateResponse struct {
	NewPricePence int64  `json:"new_price_pence,omitempty"`
	EffectiveDate string `json:"effective_date,omitempty"`
	RedirectURL   string `json:"redirect_url,omitempty"`
	RequiresPayment bool `json:"requires_payment"`
}

type AddonResponse struct {
	AddonType           string `json:"addon_type"`
	RecurringPricePence int64  `json:"recurring_price_pence"`
	SeatCountAtPurchase int    `json:"seat_count_at_purchase"`
}

type PricingQuote struct {
	TotalSeats        int   `json:"total_seats"`
	PerSeatPence      int64 `json:"per_seat_pence"`
	MonthlyTotalPence int64 `json:"monthly_total_pence"`
	AnnualTotalPence  int64 `json:"annual_total_pence"`
}
