package dashboard_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"kiramate-backend/internal/apitest"
	"kiramate-backend/internal/dashboard"
	"kiramate-backend/internal/database/dbtest"
	"kiramate-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard(t *testing.T) {
	db := dbtest.UseGlobal(t)
	cfg := apitest.Config(t)
	app := apitest.NewApp(cfg)
	app.Get("/api/dashboard", dashboard.SummaryHandler())
	app.Get("/api/dashboard/collections", dashboard.CollectionChartHandler())
	user := apitest.CreateUser(t, db, "clerk", models.RoleUser)

	tenant := dbtest.Tenant(t, db, "Ravi Kumar", 1)
	a1 := dbtest.Shop(t, db, "A-1", tenant.ID)
	a2 := dbtest.Shop(t, db, "A-2", 0)
	dbtest.Rent(t, db, a1.ID, 2024, 1, 10000)
	dbtest.Rent(t, db, a1.ID, 2024, 2, 10000)
	dbtest.RentPayment(t, db, a1.ID, 2024, 1, 10000)
	dbtest.OpeningBalance(t, db, a2.ID, "2023 to 2024", 5000)

	resp, body := apitest.Do(t, app, cfg, user, httptest.NewRequest("GET", "/api/dashboard", nil))
	require.Equal(t, 200, resp.StatusCode)

	shops := body["shops"].([]any)
	require.Len(t, shops, 2)
	first := shops[0].(map[string]any)
	assert.Equal(t, "A-1", first["shop_no"])
	assert.Equal(t, "10000", first["remaining_amount"])
	assert.Equal(t, "Pending", shops[1].(map[string]any)["ob_status"])

	totals := body["totals"].(map[string]any)
	assert.Equal(t, "15000", totals["remaining_amount"])
	assert.Equal(t, "10000", totals["paid_amount"])

	counts := body["counts"].(map[string]any)
	assert.EqualValues(t, 1, counts["tenants"])
	assert.EqualValues(t, 2, counts["shops"])
	assert.EqualValues(t, 1, counts["pending_rents"])
	assert.EqualValues(t, 1, counts["pending_opening_balances"])
}

func TestCollectionChart(t *testing.T) {
	db := dbtest.UseGlobal(t)
	cfg := apitest.Config(t)
	app := apitest.NewApp(cfg)
	app.Get("/api/dashboard/collections", dashboard.CollectionChartHandler())
	user := apitest.CreateUser(t, db, "clerk", models.RoleUser)

	shop := dbtest.Shop(t, db, "A-1", 0)
	today := time.Now().UTC()
	for _, p := range []models.Payment{
		{ShopID: shop.ID, Amount: decimal.NewFromInt(700), PaymentDate: today, PaymentMethod: "UPI"},
		{ShopID: shop.ID, Amount: decimal.NewFromInt(300), PaymentDate: today, PaymentMethod: "Cash"},
		{ShopID: shop.ID, Amount: decimal.NewFromInt(999), PaymentDate: today.AddDate(-3, 0, 0), PaymentMethod: "Cash"},
	} {
		require.NoError(t, db.Omit("Shop").Create(&p).Error)
	}

	resp, body := apitest.Do(t, app, cfg, user, httptest.NewRequest("GET", "/api/dashboard/collections?period=daily&count=3", nil))
	require.Equal(t, 200, resp.StatusCode)
	points := body["points"].([]any)
	require.Len(t, points, 3)
	last := points[2].(map[string]any)
	assert.Equal(t, today.Format(time.DateOnly), last["label"])
	assert.Equal(t, "1000", last["total"])
	assert.Equal(t, "700", last["by_method"].(map[string]any)["UPI"])
	assert.Equal(t, "1000", body["grand_total"])

	resp, _ = apitest.Do(t, app, cfg, user, httptest.NewRequest("GET", "/api/dashboard/collections?count=0", nil))
	assert.Equal(t, 400, resp.StatusCode)
}
