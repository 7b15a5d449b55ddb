package billing

// All amounts are pence (minor units, GBP).

type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodAnnual  BillingPeriod = "annual"
)

type AddonType string

const (
	AddonCompanyFinder AddonType = "company_finder"
	AddonClientData    AddonType = "client_data"
)

// Seat tier boundaries. Cliff pricing: the whole seat count is charged at
// the tier rate, not just the seats above the boundary.
const (
	tierStandardMaxSeats = 14
	tierTeamMaxSeats     = 29

	tierStandardPencePerSeat = 3000 // £30
	tierTeamPencePerSeat     = 2700 // £27
	tierEnterprisePerSeat    = 2400 // £24
)

const (
	addonMonthlyPencePerSeat = 500  // £5/seat/month
	addonAnnualPencePerSeat  = 3240 // £3/seat/month billed yearly with the 10% annual discount
)

// PriceForSeats returns the per-seat rate and the monthly total for a seat
// count. Callers must pass the new candidate total, never a delta: the tier
// is decided by where the whole allocation lands.
func PriceForSeats(totalSeats int) (perSeatPence, monthlyTotalPence int64) {
	switch {
	case totalSeats <= tierStandardMaxSeats:
		perSeatPence = tierStandardPencePerSeat
	case totalSeats <= tierTeamMaxSeats:
		perSeatPence = tierTeamPencePerSeat
	default:
		perSeatPence = tierEnterprisePerSeat
	}
	return perSeatPence, perSeatPence * int64(totalSeats)
}

// AnnualTotal applies the flat 10% annual discount to a monthly total.
// The discount stacks multiplicatively with the seat-tier discount.
func AnnualTotal(monthlyTotalPence int64) int64 {
	return monthlyTotalPence * 12 * 9 / 10
}

// PeriodTotal returns the recurring charge for one billing period of the
// given type at the given seat count.
func PeriodTotal(totalSeats int, period BillingPeriod) int64 {
	_, monthly := PriceForSeats(totalSeats)
	if period == PeriodAnnual {
		return AnnualTotal(monthly)
	}
	return monthly
}

// AddonPeriodTotal returns the recurring add-on charge for one billing
// period, synced to the seat count at time of purchase.
func AddonPeriodTotal(totalSeats int, period BillingPeriod) int64 {
	if period == PeriodAnnual {
		return addonAnnualPencePerSeat * int64(totalSeats)
	}
	return addonMonthlyPencePerSeat * int64(totalSeats)
}

// AddVAT adds UK VAT (20%). Applied to charged amounts only, after any
// proration, never to nominal full-period figures.
func AddVAT(pence int64) int64 {
	return pence * 120 / 100
}
