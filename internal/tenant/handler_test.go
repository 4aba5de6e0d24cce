package tenant_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"kiramate-backend/internal/apitest"
	"kiramate-backend/internal/config"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/database/dbtest"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/storage"
	"kiramate-backend/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	app   *fiber.App
	cfg   *config.Config
	db    *gorm.DB
	store *storage.Store
	user  models.User
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.UseGlobal(t)
	require.NoError(t, database.SeedSettings(db))
	cfg := apitest.Config(t)
	store, err := storage.New(cfg.UploadDir)
	require.NoError(t, err)

	app := apitest.NewApp(cfg)
	app.Get("/api/tenants/check-unique", tenant.CheckUniqueHandler())
	app.Post("/api/tenants", tenant.CreateTenantHandler(store))
	app.Get("/api/tenants", tenant.ListTenantsHandler())
	app.Get("/api/tenants/:id", tenant.GetTenantHandler())
	app.Put("/api/tenants/:id", tenant.UpdateTenantHandler(store))
	app.Delete("/api/tenants/:id", tenant.DeleteTenantHandler(store))
	app.Get("/api/tenants/:id/documents/:docId", tenant.DownloadDocumentHandler(store))
	app.Delete("/api/tenants/:id/documents/:docId", tenant.DeleteDocumentHandler(store))

	return fixture{app: app, cfg: cfg, db: db, store: store, user: apitest.CreateUser(t, db, "clerk", models.RoleUser)}
}

func (f fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	resp, out := apitest.Do(t, f.app, f.cfg, f.user, apitest.JSON(t, method, path, body))
	return resp.StatusCode, out
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

var ravi = map[string]string{
	"tenant_id":      "T-100",
	"name":           "Ravi Kumar",
	"mobile":         "9876543210",
	"email":          "Ravi@Example.com",
	"aadhaar_number": "123412341234",
	"pancard_number": "abcde1234f",
	"address":        "12 Market Street",
}

func TestCreateTenantWithDocuments(t *testing.T) {
	f := setup(t)

	req := apitest.Multipart(t, "POST", "/api/tenants", ravi,
		apitest.File{Field: "documents", Name: "aadhaar.png", Content: apitest.PNG},
		apitest.File{Field: "documents", Name: "agreement.pdf", Content: apitest.PDF},
	)
	resp, body := apitest.Do(t, f.app, f.cfg, f.user, req)
	require.Equal(t, 201, resp.StatusCode, body)
	assert.Equal(t, "ravi@example.com", body["email"])
	assert.Equal(t, "ABCDE1234F", body["pancard_number"])

	docs := body["documents"].([]any)
	require.Len(t, docs, 2)

	var stored []models.TenantDocument
	require.NoError(t, f.db.Order("id").Find(&stored).Error)
	require.Len(t, stored, 2)
	assert.Equal(t, "aadhaar.png", stored[0].FileName)
	assert.Equal(t, "image/png", stored[0].FileType)
	assert.True(t, f.store.Exists(storage.TenantDocuments, stored[0].FilePath))
	assert.True(t, f.store.Exists(storage.TenantDocuments, stored[1].FilePath))

	staging, err := os.ReadDir(filepath.Join(f.cfg.UploadDir, ".staging"))
	require.NoError(t, err)
	assert.Empty(t, staging)

	dl, _ := apitest.Do(t, f.app, f.cfg, f.user, apitest.JSON(t, "GET", docs[1].(map[string]any)["url"].(string), nil))
	assert.Equal(t, 200, dl.StatusCode)
	assert.Contains(t, dl.Header.Get(fiber.HeaderContentDisposition), "agreement.pdf")
}

func TestCreateTenantRejectsBadUpload(t *testing.T) {
	f := setup(t)

	req := apitest.Multipart(t, "POST", "/api/tenants", ravi,
		apitest.File{Field: "documents", Name: "notes.txt", Content: []byte("plain text")},
	)
	resp, body := apitest.Do(t, f.app, f.cfg, f.user, req)
	assert.Equal(t, 422, resp.StatusCode)
	assert.Equal(t, []string{"notes.txt: file type is not allowed"}, apitest.Errors(body))

	var count int64
	f.db.Model(&models.Tenant{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateTenantValidation(t *testing.T) {
	f := setup(t)

	code, body := f.do(t, "POST", "/api/tenants", fiber.Map{
		"name": "R2D2", "mobile": "12345", "email": "nope", "aadhaar_number": "12ab", "pancard_number": "XYZ",
	})
	assert.Equal(t, 422, code)
	assert.ElementsMatch(t, []string{
		"Tenant ID is required",
		"Name may only contain letters and spaces",
		"Mobile number must be exactly 10 characters",
		"Invalid email format",
		"Aadhaar number must be exactly 12 characters",
		"Invalid PAN card number format",
	}, apitest.Errors(body))
}

func TestTenantUniqueness(t *testing.T) {
	f := setup(t)
	existing := dbtest.Tenant(t, f.db, "Sita Devi", 7)

	code, body := f.do(t, "POST", "/api/tenants", fiber.Map{
		"tenant_id": existing.Code, "name": "Other", "mobile": existing.Mobile,
	})
	assert.Equal(t, 409, code)
	assert.Equal(t, []string{"Tenant ID already exists", "Mobile number already exists"}, apitest.Errors(body))

	_, body = f.do(t, "GET", "/api/tenants/check-unique?field=mobile&value="+existing.Mobile, nil)
	assert.Equal(t, true, body["exists"])
	_, body = f.do(t, "GET", "/api/tenants/check-unique?field=mobile&value="+existing.Mobile+"&exclude_id="+itoa(existing.ID), nil)
	assert.Equal(t, false, body["exists"])
	code, _ = f.do(t, "GET", "/api/tenants/check-unique?field=password&value=x", nil)
	assert.Equal(t, 400, code)

	// Editing a tenant keeps its own values.
	code, body = f.do(t, "PUT", "/api/tenants/"+itoa(existing.ID), fiber.Map{
		"tenant_id": existing.Code, "name": "Sita Devi Rao", "mobile": existing.Mobile,
	})
	require.Equal(t, 200, code, body)
	assert.Equal(t, "Sita Devi Rao", body["name"])
}

func TestDeleteTenant(t *testing.T) {
	f := setup(t)
	let := dbtest.Tenant(t, f.db, "Sita Devi", 1)
	dbtest.Shop(t, f.db, "A-1", let.ID)

	code, body := f.do(t, "DELETE", "/api/tenants/"+itoa(let.ID), nil)
	assert.Equal(t, 409, code)
	assert.Equal(t, "cannot delete: tenant is assigned to one or more shops", body["error"])

	req := apitest.Multipart(t, "POST", "/api/tenants", ravi,
		apitest.File{Field: "documents", Name: "id.png", Content: apitest.PNG})
	resp, created := apitest.Do(t, f.app, f.cfg, f.user, req)
	require.Equal(t, 201, resp.StatusCode, created)
	id := uint(created["id"].(float64))

	var doc models.TenantDocument
	require.NoError(t, f.db.First(&doc).Error)
	require.True(t, f.store.Exists(storage.TenantDocuments, doc.FilePath))

	code, _ = f.do(t, "DELETE", "/api/tenants/"+itoa(id), nil)
	require.Equal(t, 200, code)
	assert.False(t, f.store.Exists(storage.TenantDocuments, doc.FilePath))

	var count int64
	f.db.Model(&models.TenantDocument{}).Count(&count)
	assert.Zero(t, count)
}

func TestDeleteSingleDocument(t *testing.T) {
	f := setup(t)
	req := apitest.Multipart(t, "POST", "/api/tenants", ravi,
		apitest.File{Field: "documents", Name: "a.png", Content: apitest.PNG},
		apitest.File{Field: "documents", Name: "b.pdf", Content: apitest.PDF})
	resp, created := apitest.Do(t, f.app, f.cfg, f.user, req)
	require.Equal(t, 201, resp.StatusCode, created)

	first := created["documents"].([]any)[0].(map[string]any)
	code, _ := f.do(t, "DELETE", first["url"].(string), nil)
	require.Equal(t, 200, code)

	_, body := f.do(t, "GET", "/api/tenants/"+itoa(uint(created["id"].(float64))), nil)
	docs := body["documents"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, "b.pdf", docs[0].(map[string]any)["file_name"])

	code, _ = f.do(t, "GET", first["url"].(string), nil)
	assert.Equal(t, 404, code)
}

func TestListTenants(t *testing.T) {
	f := setup(t)
	a := dbtest.Tenant(t, f.db, "Anil", 1)
	dbtest.Tenant(t, f.db, "Bhavna", 2)
	dbtest.Shop(t, f.db, "A-1", a.ID)
	dbtest.Shop(t, f.db, "A-2", a.ID)

	code, body := f.do(t, "GET", "/api/tenants", nil)
	require.Equal(t, 200, code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "Anil", data[0].(map[string]any)["name"])
	assert.EqualValues(t, 2, data[0].(map[string]any)["shop_count"])

	_, body = f.do(t, "GET", "/api/tenants?search=bhav", nil)
	data = body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "Bhavna", data[0].(map[string]any)["name"])
}
