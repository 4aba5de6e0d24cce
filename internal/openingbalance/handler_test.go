package openingbalance_test

import (
	"strconv"
	"testing"

	"kiramate-backend/internal/apitest"
	"kiramate-backend/internal/config"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/database/dbtest"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/openingbalance"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	app    *fiber.App
	cfg    *config.Config
	db     *gorm.DB
	user   models.User
	tenant models.Tenant
	shop   models.Shop
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.UseGlobal(t)
	require.NoError(t, database.SeedSettings(db))
	cfg := apitest.Config(t)
	app := apitest.NewApp(cfg)
	app.Post("/api/opening-balances", openingbalance.CreateOpeningBalanceHandler())
	app.Get("/api/opening-balances", openingbalance.ListOpeningBalancesHandler())
	app.Get("/api/opening-balances/:id", openingbalance.GetOpeningBalanceHandler())
	app.Put("/api/opening-balances/:id", openingbalance.UpdateOpeningBalanceHandler())
	app.Delete("/api/opening-balances/:id", openingbalance.DeleteOpeningBalanceHandler())

	tenant := dbtest.Tenant(t, db, "Sita Devi", 1)
	shop := dbtest.Shop(t, db, "B-2", tenant.ID)
	return fixture{
		app: app, cfg: cfg, db: db, tenant: tenant, shop: shop,
		user: apitest.CreateUser(t, db, "clerk", models.RoleUser),
	}
}

func (f fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	resp, out := apitest.Do(t, f.app, f.cfg, f.user, apitest.JSON(t, method, path, body))
	return resp.StatusCode, out
}

func path(id uint) string {
	return "/api/opening-balances/" + strconv.FormatUint(uint64(id), 10)
}

func TestCreateOpeningBalanceRecordsTenant(t *testing.T) {
	f := setup(t)

	code, body := f.do(t, "POST", "/api/opening-balances", fiber.Map{
		"shop_no": "B-2", "financial_year": "2023 to 2024", "opening_balance": 45000,
	})
	require.Equal(t, 201, code, body)
	assert.Equal(t, "45000", body["opening_balance"])
	assert.Equal(t, "Sita Devi", body["tenant_name"])
	assert.EqualValues(t, f.tenant.ID, body["tenant_id"])
	assert.Equal(t, false, body["paid"])

	// Re-letting the shop keeps the recorded tenant on the balance.
	other := dbtest.Tenant(t, f.db, "Arun", 2)
	require.NoError(t, f.db.Model(&models.Shop{}).Where("id = ?", f.shop.ID).Update("tenant_id", other.ID).Error)
	_, body = f.do(t, "GET", path(uint(body["id"].(float64))), nil)
	assert.Equal(t, "Sita Devi", body["tenant_name"])
}

func TestCreateOpeningBalanceValidation(t *testing.T) {
	f := setup(t)

	code, body := f.do(t, "POST", "/api/opening-balances", fiber.Map{
		"shop_no": "B-2", "financial_year": "2023 to 2025", "opening_balance": 0,
	})
	assert.Equal(t, 422, code)
	assert.ElementsMatch(t, []string{
		"Financial year must be for one year only (e.g., 2024 to 2025)",
		"Opening balance must be greater than 0",
	}, apitest.Errors(body))

	code, body = f.do(t, "POST", "/api/opening-balances", fiber.Map{
		"shop_no": "B-2", "financial_year": "2023-2024", "opening_balance": 10,
	})
	assert.Equal(t, 422, code)
	assert.Equal(t, []string{"Financial year must be in format YYYY to YYYY (e.g., 2024 to 2025)"}, apitest.Errors(body))
}

func TestCreateOpeningBalanceRejectsDuplicate(t *testing.T) {
	f := setup(t)
	dbtest.OpeningBalance(t, f.db, f.shop.ID, "2023 to 2024", 1000)

	code, body := f.do(t, "POST", "/api/opening-balances", fiber.Map{
		"shop_id": f.shop.ID, "financial_year": "2023 to 2024", "opening_balance": 10,
	})
	assert.Equal(t, 409, code)
	assert.Equal(t, []string{"Opening balance for 2023 to 2024 already exists for shop B-2"}, apitest.Errors(body))
}

func TestUpdateOpeningBalance(t *testing.T) {
	f := setup(t)
	ob := dbtest.OpeningBalance(t, f.db, f.shop.ID, "2023 to 2024", 1000)

	code, body := f.do(t, "PUT", path(ob.ID), fiber.Map{
		"shop_id": f.shop.ID, "financial_year": "2023 to 2024", "opening_balance": 1500,
	})
	require.Equal(t, 200, code, body)
	assert.Equal(t, "1500", body["opening_balance"])

	var logs []models.AuditLog
	require.NoError(t, f.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionUpdate, logs[0].Action)
}

func TestUpdatePaidOpeningBalanceKeepsYear(t *testing.T) {
	f := setup(t)
	ob := dbtest.OpeningBalance(t, f.db, f.shop.ID, "2023 to 2024", 1000)
	dbtest.OpeningBalancePayment(t, f.db, f.shop.ID, "2023 to 2024", 1000)

	code, body := f.do(t, "PUT", path(ob.ID), fiber.Map{
		"shop_id": f.shop.ID, "financial_year": "2022 to 2023", "opening_balance": 1000,
	})
	assert.Equal(t, 409, code)
	assert.Equal(t, "cannot change shop or financial year: opening balance is linked to one or more payments", body["error"])

	var got models.OpeningBalance
	require.NoError(t, f.db.First(&got, ob.ID).Error)
	assert.Equal(t, "2023 to 2024", got.FinancialYear)

	var logs int64
	f.db.Model(&models.AuditLog{}).Count(&logs)
	assert.Zero(t, logs)
}

func TestDeleteOpeningBalanceGuarded(t *testing.T) {
	f := setup(t)
	ob := dbtest.OpeningBalance(t, f.db, f.shop.ID, "2023 to 2024", 1000)
	dbtest.OpeningBalancePayment(t, f.db, f.shop.ID, "2023 to 2024", 1000)

	code, body := f.do(t, "DELETE", path(ob.ID), nil)
	assert.Equal(t, 409, code)
	assert.Equal(t, "cannot delete: opening balance is linked to one or more payments", body["error"])

	free := dbtest.OpeningBalance(t, f.db, f.shop.ID, "2024 to 2025", 500)
	code, _ = f.do(t, "DELETE", path(free.ID), nil)
	assert.Equal(t, 200, code)
}

func TestListOpeningBalances(t *testing.T) {
	f := setup(t)
	dbtest.OpeningBalance(t, f.db, f.shop.ID, "2022 to 2023", 1000)
	dbtest.OpeningBalance(t, f.db, f.shop.ID, "2023 to 2024", 2000)
	dbtest.OpeningBalancePayment(t, f.db, f.shop.ID, "2022 to 2023", 1000)

	code, body := f.do(t, "GET", "/api/opening-balances", nil)
	require.Equal(t, 200, code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "2023 to 2024", data[0].(map[string]any)["financial_year"])

	_, body = f.do(t, "GET", "/api/opening-balances?status=paid", nil)
	data = body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, true, data[0].(map[string]any)["paid"])
}
