package payment

import (
	"errors"
	"strings"
	"time"

	"kiramate-backend/internal/models"
	"kiramate-backend/internal/period"
)

// obPrefix marks an opening-balance target in form values: "OB-2024 to 2025".
const obPrefix = "OB-"

var ErrInvalidTarget = errors.New("select a valid rent month or opening balance")

// Target is the obligation a payment settles: either a rent month or an
// opening-balance financial year.
type Target interface {
	// Value is the form encoding accepted by ParseTarget.
	Value() string
	// Label is the "Rent of" text printed on receipts.
	Label() string
	isTarget()
}

type RentMonth struct {
	Year  int
	Month time.Month
}

func (t RentMonth) Period() period.Month { return period.NewMonth(t.Year, t.Month) }
func (t RentMonth) Value() string        { return t.Period().Value() }
func (t RentMonth) Label() string        { return t.Period().Short() }
func (RentMonth) isTarget()              {}

type OpeningBalanceYear struct {
	FinancialYear period.FinancialYear
}

func (t OpeningBalanceYear) Value() string { return obPrefix + t.FinancialYear.String() }
func (t OpeningBalanceYear) Label() string {
	return "Opening Balance (FY " + t.FinancialYear.String() + ")"
}
func (OpeningBalanceYear) isTarget() {}

// ParseTarget accepts "YYYY-MM" or "OB-YYYY to YYYY".
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if fy, ok := strings.CutPrefix(s, obPrefix); ok {
		parsed, err := period.ParseFinancialYear(fy)
		if err != nil {
			return nil, errors.Join(ErrInvalidTarget, err)
		}
		return OpeningBalanceYear{FinancialYear: parsed}, nil
	}
	m, err := period.ParseMonth(s)
	if err != nil {
		return nil, errors.Join(ErrInvalidTarget, err)
	}
	return RentMonth{Year: m.Year, Month: m.Month}, nil
}

// TargetOf reads the target back from a stored payment.
func TargetOf(p models.Payment) (Target, error) {
	switch {
	case p.OBFinancialYear != nil && p.RentYear == nil && p.RentMonth == nil:
		return OpeningBalanceYear{FinancialYear: period.FinancialYear(*p.OBFinancialYear)}, nil
	case p.OBFinancialYear == nil && p.RentYear != nil && p.RentMonth != nil:
		return RentMonth{Year: *p.RentYear, Month: time.Month(*p.RentMonth)}, nil
	}
	return nil, ErrInvalidTarget
}
