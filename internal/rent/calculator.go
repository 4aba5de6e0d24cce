// Package rent computes monthly rent from a shop agreement and manages
// the rent records built from it.
package rent

import (
	"time"

	"kiramate-backend/internal/models"
	"kiramate-backend/internal/period"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Calculate returns the rent due for target under an agreement that starts
// at start with base rent base, raised by pct percent of base every
// durationYears years. Increments are flat: each completed period adds
// base*pct/100, never a percentage of an already raised rent.
//
// A zero base, zero pct, zero start or non-positive duration yields zero.
func Calculate(base, pct decimal.Decimal, start time.Time, durationYears int, target period.Month) decimal.Decimal {
	if base.IsZero() || pct.IsZero() || start.IsZero() || durationYears <= 0 {
		return decimal.Zero
	}

	elapsed := target.MonthsSince(period.MonthOf(start))
	if elapsed <= 0 {
		return base
	}

	periods := int64(elapsed / (durationYears * 12))
	step := base.Mul(pct).Div(hundred)
	return base.Add(step.Mul(decimal.NewFromInt(periods)))
}

// ForShop applies Calculate to a shop agreement.
func ForShop(s models.Shop, target period.Month) decimal.Decimal {
	return Calculate(s.BaseRent, s.RentIncrementPercent, s.AgreementStartDate, s.IncrementDurationYears, target)
}

// FinalRent = calculated + penalty - waved off. No floor is applied.
func FinalRent(calculated, penalty, wavedOff decimal.Decimal) decimal.Decimal {
	return calculated.Add(penalty).Sub(wavedOff)
}
