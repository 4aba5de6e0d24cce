package ledger_test

import (
	"net/http/httptest"
	"testing"

	"kiramate-backend/internal/apitest"
	"kiramate-backend/internal/database/dbtest"
	"kiramate-backend/internal/ledger"
	"kiramate-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupHandlers(t *testing.T) {
	db := dbtest.UseGlobal(t)
	cfg := apitest.Config(t)
	app := apitest.NewApp(cfg)
	app.Get("/api/lookup/pending-rent-months", ledger.PendingRentMonthsHandler())
	app.Get("/api/lookup/opening-balances", ledger.PendingOpeningBalancesHandler())
	app.Get("/api/lookup/rent-amount", ledger.RentAmountHandler())
	user := apitest.CreateUser(t, db, "clerk", models.RoleUser)

	shop := dbtest.Shop(t, db, "A-1", 0)
	dbtest.Rent(t, db, shop.ID, 2024, 1, 10000)
	dbtest.Rent(t, db, shop.ID, 2024, 2, 10500)
	dbtest.RentPayment(t, db, shop.ID, 2024, 1, 10000)
	dbtest.OpeningBalance(t, db, shop.ID, "2022 to 2023", 3000)

	get := func(path string) map[string]any {
		resp, body := apitest.Do(t, app, cfg, user, httptest.NewRequest("GET", path, nil))
		require.Equal(t, 200, resp.StatusCode)
		return body
	}

	months := get("/api/lookup/pending-rent-months?shop_no=A-1")["months"].([]any)
	require.Len(t, months, 1)
	assert.Equal(t, "2024-02", months[0].(map[string]any)["value"])
	assert.Equal(t, "February 2024", months[0].(map[string]any)["label"])

	obs := get("/api/lookup/opening-balances?shop_no=A-1")["opening_balances"].([]any)
	require.Len(t, obs, 1)
	assert.Equal(t, "OB-2022 to 2023", obs[0].(map[string]any)["value"])

	assert.Equal(t, "10500", get("/api/lookup/rent-amount?shop_no=A-1&rent_month=2024-02")["amount"])
	assert.Nil(t, get("/api/lookup/rent-amount?shop_no=A-1&rent_month=2024-05")["amount"])

	// Unknown shops answer with empty results.
	assert.Empty(t, get("/api/lookup/pending-rent-months?shop_no=Z-9")["months"])
	assert.Empty(t, get("/api/lookup/opening-balances?shop_no=")["opening_balances"])
	assert.Nil(t, get("/api/lookup/rent-amount?shop_no=Z-9&rent_month=2024-02")["amount"])
}
