package validation

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tenantForm struct {
	TenantID string `validate:"required" label:"Tenant ID"`
	Mobile   string `validate:"required,len=10,digits" label:"Mobile number"`
	Aadhaar  string `validate:"omitempty,len=12,digits" label:"Aadhaar number"`
	PAN      string `validate:"omitempty,pan" label:"PAN"`
	Email    string `validate:"omitempty,email" label:"Email"`
}

type balanceForm struct {
	ShopNo        string           `validate:"required,shop_no" label:"Shop number"`
	FinancialYear string           `validate:"required,financial_year" label:"Financial year"`
	Amount        *decimal.Decimal `validate:"required,gte=0" label:"Opening balance"`
	Month         string           `validate:"omitempty,rent_month" label:"Rent month"`
}

func messagesOf(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	var verrs *Errors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, fiber.StatusUnprocessableEntity, verrs.Status)
	return verrs.Messages
}

func TestStructCollectsEveryMessage(t *testing.T) {
	err := Struct(tenantForm{Mobile: "98765", Aadhaar: "12345678901X", PAN: "abcde1234f", Email: "nope"})
	assert.ElementsMatch(t, []string{
		"Tenant ID is required",
		"Mobile number must be exactly 10 characters",
		"Aadhaar number must contain only digits",
		"Invalid PAN card number format",
		"Invalid email format",
	}, messagesOf(t, err))

	assert.NoError(t, Struct(tenantForm{TenantID: "T1", Mobile: "9876543210", PAN: "ABCDE1234F"}))
}

func TestFinancialYearAndDecimalRules(t *testing.T) {
	neg := decimal.NewFromInt(-5)
	err := Struct(balanceForm{ShopNo: "A 1", FinancialYear: "2024 to 2026", Amount: &neg, Month: "2024-13"})
	assert.ElementsMatch(t, []string{
		"Shop number may only contain letters, digits and hyphens",
		"Financial year must be for one year only (e.g., 2024 to 2025)",
		"Opening balance must be 0 or more",
		"Rent month must be in format YYYY-MM",
	}, messagesOf(t, err))

	err = Struct(balanceForm{ShopNo: "A-1", FinancialYear: "2024-2025"})
	assert.ElementsMatch(t, []string{
		"Financial year must be in format YYYY to YYYY (e.g., 2024 to 2025)",
		"Opening balance is required",
	}, messagesOf(t, err))

	zero := decimal.Zero
	assert.NoError(t, Struct(balanceForm{ShopNo: "A-1", FinancialYear: "2024 to 2025", Amount: &zero}))
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("Tenant name", "Ravi Kumar", "person_name"))
	assert.Equal(t, []string{"Tenant name may only contain letters and spaces"}, messagesOf(t, Var("Tenant name", "Ravi; DROP", "person_name")))
}

func TestErrorsHelpers(t *testing.T) {
	var nilErrs *Errors
	assert.NoError(t, nilErrs.Err())

	e := New()
	assert.NoError(t, e.Err())
	e.Add("Shop number %q already exists", "A-1")
	require.Error(t, e.Err())
	assert.Equal(t, `Shop number "A-1" already exists`, e.Error())

	assert.NoError(t, e.Merge(Conflict("Mobile number already exists")))
	assert.Len(t, e.Messages, 2)
	assert.EqualError(t, e.Merge(assert.AnError), assert.AnError.Error())
}
