package shop_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"kiramate-backend/internal/apitest"
	"kiramate-backend/internal/applog"
	"kiramate-backend/internal/config"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/database/dbtest"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/shop"
	"kiramate-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	app    *fiber.App
	cfg    *config.Config
	db     *gorm.DB
	store  *storage.Store
	user   models.User
	tenant models.Tenant
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.UseGlobal(t)
	require.NoError(t, database.SeedSettings(db))
	cfg := apitest.Config(t)
	store, err := storage.New(cfg.UploadDir)
	require.NoError(t, err)

	app := apitest.NewApp(cfg)
	app.Get("/api/shops/check-number", shop.CheckNumberHandler())
	app.Post("/api/shops", shop.CreateShopHandler(store))
	app.Get("/api/shops", shop.ListShopsHandler())
	app.Get("/api/shops/:id", shop.GetShopHandler())
	app.Put("/api/shops/:id", shop.UpdateShopHandler(store))
	app.Delete("/api/shops/:id", shop.DeleteShopHandler(store))
	app.Get("/api/shops/:id/documents/:docId", shop.DownloadDocumentHandler(store))
	app.Delete("/api/shops/:id/documents/:docId", shop.DeleteDocumentHandler(store))

	return fixture{
		app: app, cfg: cfg, db: db, store: store,
		user:   apitest.CreateUser(t, db, "clerk", models.RoleUser),
		tenant: dbtest.Tenant(t, db, "Ravi Kumar", 1),
	}
}

func (f fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	resp, out := apitest.Do(t, f.app, f.cfg, f.user, apitest.JSON(t, method, path, body))
	return resp.StatusCode, out
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func (f fixture) form(shopNo string) map[string]string {
	return map[string]string{
		"shop_no":                  shopNo,
		"location":                 "Ground floor, east wing",
		"tenant_id":                itoa(f.tenant.ID),
		"agreement_start_date":     "2023-04-01",
		"agreement_end_date":       "2026-03-31",
		"base_rent":                "15000",
		"rent_increment_percent":   "5",
		"increment_duration_years": "1",
	}
}

func TestCreateShopWithDocument(t *testing.T) {
	f := setup(t)

	req := apitest.Multipart(t, "POST", "/api/shops", f.form("G-1"),
		apitest.File{Field: "documents", Name: "lease.pdf", Content: apitest.PDF})
	resp, body := apitest.Do(t, f.app, f.cfg, f.user, req)
	require.Equal(t, 201, resp.StatusCode, body)
	assert.Equal(t, "G-1", body["shop_no"])
	assert.Equal(t, "Ravi Kumar", body["tenant_name"])
	assert.Equal(t, "2023-04-01", body["agreement_start_date"])
	assert.Equal(t, "15000", body["base_rent"])
	require.Len(t, body["documents"], 1)

	var doc models.ShopDocument
	require.NoError(t, f.db.First(&doc).Error)
	assert.True(t, f.store.Exists(storage.ShopDocuments, doc.FilePath))
	assert.True(t, strings.HasPrefix(doc.FilePath, itoa(uint(body["id"].(float64)))+"/"), doc.FilePath)
}

func TestUpdateShopLogsUnstoredDocuments(t *testing.T) {
	f := setup(t)
	logDir := t.TempDir()
	_, closeLogs, err := applog.Init(logDir)
	require.NoError(t, err)
	defer closeLogs()

	s := dbtest.Shop(t, f.db, "H-1", f.tenant.ID)
	// A plain file where the shop's document folder belongs.
	require.NoError(t, os.WriteFile(filepath.Join(f.store.Root, storage.ShopDocuments, itoa(s.ID)), []byte("x"), 0o644))

	req := apitest.Multipart(t, "PUT", "/api/shops/"+itoa(s.ID), f.form("H-1"),
		apitest.File{Field: "documents", Name: "lease.pdf", Content: apitest.PDF})
	resp, _ := apitest.Do(t, f.app, f.cfg, f.user, req)
	assert.Equal(t, 500, resp.StatusCode)

	var doc models.ShopDocument
	require.NoError(t, f.db.First(&doc).Error)
	errs, err := os.ReadFile(filepath.Join(logDir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errs), fmt.Sprintf("[SHOP] shop %d saved but files not stored, documents [%d]", s.ID, doc.ID))
}

func TestCreateShopValidation(t *testing.T) {
	f := setup(t)

	code, body := f.do(t, "POST", "/api/shops", fiber.Map{
		"shop_no": "G 1", "location": "", "tenant_id": 999,
		"agreement_start_date": "2024-01-01", "agreement_end_date": "2024-01-01",
		"base_rent": 0, "rent_increment_percent": 5, "increment_duration_years": 0,
	})
	assert.Equal(t, 422, code)
	assert.ElementsMatch(t, []string{
		"Shop number may only contain letters, digits and hyphens",
		"Location is required",
		"Base rent must be greater than 0",
		"Increment duration is required",
	}, apitest.Errors(body))

	code, body = f.do(t, "POST", "/api/shops", fiber.Map{
		"shop_no": "G-1", "location": "Somewhere", "tenant_id": 999,
		"agreement_start_date": "2024-01-01", "agreement_end_date": "2023-01-01",
		"base_rent": 100, "rent_increment_percent": 0, "increment_duration_years": 1,
	})
	assert.Equal(t, 422, code)
	assert.Equal(t, []string{"Agreement end date must be after the start date", "Invalid tenant"}, apitest.Errors(body))
}

func TestShopNumberUniqueness(t *testing.T) {
	f := setup(t)
	existing := dbtest.Shop(t, f.db, "A-1", f.tenant.ID)

	req := apitest.Multipart(t, "POST", "/api/shops", f.form("A-1"))
	resp, body := apitest.Do(t, f.app, f.cfg, f.user, req)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, []string{"Shop number already exists"}, apitest.Errors(body))

	_, body = f.do(t, "GET", "/api/shops/check-number?shop_no=A-1", nil)
	assert.Equal(t, true, body["exists"])
	_, body = f.do(t, "GET", "/api/shops/check-number?shop_no=A-1&exclude_id="+itoa(existing.ID), nil)
	assert.Equal(t, false, body["exists"])

	req = apitest.Multipart(t, "PUT", "/api/shops/"+itoa(existing.ID), f.form("A-1"))
	resp, body = apitest.Do(t, f.app, f.cfg, f.user, req)
	require.Equal(t, 200, resp.StatusCode, body)
	assert.Equal(t, "15000", body["base_rent"])
}

func TestDeleteShopGuarded(t *testing.T) {
	f := setup(t)
	s := dbtest.Shop(t, f.db, "A-1", f.tenant.ID)
	dbtest.OpeningBalance(t, f.db, s.ID, "2023 to 2024", 100)

	code, body := f.do(t, "DELETE", "/api/shops/"+itoa(s.ID), nil)
	assert.Equal(t, 409, code)
	assert.Equal(t, "cannot delete: shop is linked to opening balances", body["error"])

	empty := dbtest.Shop(t, f.db, "A-2", f.tenant.ID)
	code, _ = f.do(t, "DELETE", "/api/shops/"+itoa(empty.ID), nil)
	assert.Equal(t, 200, code)

	var logs []models.AuditLog
	require.NoError(t, f.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "shop", logs[0].EntityType)
}

func TestListShops(t *testing.T) {
	f := setup(t)
	other := dbtest.Tenant(t, f.db, "Sita", 2)
	dbtest.Shop(t, f.db, "B-1", f.tenant.ID)
	dbtest.Shop(t, f.db, "A-1", other.ID)

	code, body := f.do(t, "GET", "/api/shops", nil)
	require.Equal(t, 200, code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "A-1", data[0].(map[string]any)["shop_no"])
	assert.Equal(t, "Sita", data[0].(map[string]any)["tenant_name"])

	_, body = f.do(t, "GET", "/api/shops?tenant_id="+itoa(f.tenant.ID), nil)
	data = body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "B-1", data[0].(map[string]any)["shop_no"])
}
