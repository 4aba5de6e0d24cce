// Package period handles the two billing periods used by the ledger:
// calendar months (rent) and financial years (opening balances).
package period

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	ErrInvalidMonth         = errors.New("rent month must be in format YYYY-MM")
	ErrInvalidFinancialYear = errors.New("financial year must be in format YYYY to YYYY (e.g., 2024 to 2025)")
	ErrFinancialYearSpan    = errors.New("financial year must be for one year only (e.g., 2024 to 2025)")
)

// Month is a calendar month, the unit a Rent row is keyed by.
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	return MonthOf(t), nil
}

// Value is the "YYYY-MM" form used by forms and lookups.
func (m Month) Value() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Label renders "January 2024".
func (m Month) Label() string {
	return m.FirstDay().Format("January 2006")
}

// Short renders "Jan-2024" as printed on receipts.
func (m Month) Short() string {
	return m.FirstDay().Format("Jan-2006")
}

func (m Month) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// MonthsSince returns the number of whole months from `from` to m,
// negative when m is earlier.
func (m Month) MonthsSince(from Month) int {
	return (m.Year-from.Year)*12 + int(m.Month) - int(from.Month)
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

var fyPattern = regexp.MustCompile(`^(\d{4}) to (\d{4})$`)

// FinancialYear is the "YYYY to YYYY" string an opening balance is keyed by.
type FinancialYear string

// ParseFinancialYear validates the format and the one-year span.
func ParseFinancialYear(s string) (FinancialYear, error) {
	m := fyPattern.FindStringSubmatch(s)
	if m == nil {
		return "", ErrInvalidFinancialYear
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if end-start != 1 {
		return "", ErrFinancialYearSpan
	}
	return FinancialYear(s), nil
}

// FinancialYearStarting builds "2024 to 2025" from 2024.
func FinancialYearStarting(year int) FinancialYear {
	return FinancialYear(fmt.Sprintf("%04d to %04d", year, year+1))
}

func (fy FinancialYear) String() string {
	return string(fy)
}

// StartYear returns the first year, or 0 if fy is malformed.
func (fy FinancialYear) StartYear() int {
	m := fyPattern.FindStringSubmatch(string(fy))
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	return y
}
