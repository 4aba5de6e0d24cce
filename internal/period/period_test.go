package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, Month{Year: 2024, Month: time.March}, m)
	assert.Equal(t, "2024-03", m.Value())
	assert.Equal(t, "March 2024", m.Label())
	assert.Equal(t, "Mar-2024", m.Short())

	for _, bad := range []string{"", "2024", "2024-13", "03-2024", "2024/03"} {
		_, err := ParseMonth(bad)
		assert.ErrorIs(t, err, ErrInvalidMonth, bad)
	}
}

func TestMonthsSince(t *testing.T) {
	start := NewMonth(2020, time.January)
	assert.Equal(t, 0, start.MonthsSince(start))
	assert.Equal(t, 12, NewMonth(2021, time.January).MonthsSince(start))
	assert.Equal(t, 29, NewMonth(2022, time.June).MonthsSince(start))
	assert.Equal(t, -1, NewMonth(2019, time.December).MonthsSince(start))
}

func TestParseFinancialYear(t *testing.T) {
	fy, err := ParseFinancialYear("2024 to 2025")
	require.NoError(t, err)
	assert.Equal(t, "2024 to 2025", fy.String())
	assert.Equal(t, 2024, fy.StartYear())
	assert.Equal(t, fy, FinancialYearStarting(2024))

	_, err = ParseFinancialYear("2024 to 2026")
	assert.ErrorIs(t, err, ErrFinancialYearSpan)

	_, err = ParseFinancialYear("2025 to 2024")
	assert.ErrorIs(t, err, ErrFinancialYearSpan)

	for _, bad := range []string{"", "2024-2025", "2024to2025", "24 to 25", " 2024 to 2025"} {
		_, err := ParseFinancialYear(bad)
		assert.ErrorIs(t, err, ErrInvalidFinancialYear, bad)
	}
}
