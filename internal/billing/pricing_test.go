package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceForSeatsTiers(t *testing.T) {
	for seats := 1; seats <= 14; seats++ {
		perSeat, _ := PriceForSeats(seats)
		assert.Equal(t, int64(3000), perSeat, "seats=%d", seats)
	}
	for seats := 15; seats <= 29; seats++ {
		perSeat, _ := PriceForSeats(seats)
		assert.Equal(t, int64(2700), perSeat, "seats=%d", seats)
	}
	for _, seats := range []int{30, 31, 50, 200} {
		perSeat, _ := PriceForSeats(seats)
		assert.Equal(t, int64(2400), perSeat, "seats=%d", seats)
	}
}

func TestPriceForSeatsIsCliffNotMarginal(t *testing.T) {
	// Crossing a tier boundary reprices every seat, not just the extra ones.
	_, at14 := PriceForSeats(14)
	_, at15 := PriceForSeats(15)
	assert.Equal(t, int64(14*3000), at14)
	assert.Equal(t, int64(15*2700), at15)
	assert.Less(t, at15, at14+3000)
}

func TestAnnualTotalFlatDiscount(t *testing.T) {
	for _, seats := range []int{1, 10, 14, 15, 29, 30, 100} {
		_, monthly := PriceForSeats(seats)
		assert.Equal(t, monthly*12*9/10, AnnualTotal(monthly), "seats=%d", seats)
	}
	// 10 seats: £300/month -> £3240/year
	assert.Equal(t, int64(324000), AnnualTotal(30000))
}

func TestPeriodTotal(t *testing.T) {
	assert.Equal(t, int64(30000), PeriodTotal(10, PeriodMonthly))
	assert.Equal(t, int64(324000), PeriodTotal(10, PeriodAnnual))
	assert.Equal(t, int64(2700*20), PeriodTotal(20, PeriodMonthly))
}

func TestAddonPeriodTotal(t *testing.T) {
	assert.Equal(t, int64(5000), AddonPeriodTotal(10, PeriodMonthly))
	// Annual: £3/seat/month * 12 * 0.9 = £32.40/seat/year
	assert.Equal(t, int64(32400), AddonPeriodTotal(10, PeriodAnnual))
}

func TestAddVAT(t *testing.T) {
	assert.Equal(t, int64(120), AddVAT(100))
	assert.Equal(t, int64(36000), AddVAT(30000))
}
