// Package tenant manages tenants and their identity documents.
package tenant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kiramate-backend/internal/apierr"
	"kiramate-backend/internal/audit"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/ledger"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/pagination"
	"kiramate-backend/internal/storage"
	"kiramate-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// TenantRequest is accepted as JSON or as a multipart form with
// "documents" file parts.
type TenantRequest struct {
	TenantID      string `json:"tenant_id" form:"tenant_id" validate:"required,max=50" label:"Tenant ID"`
	Name          string `json:"name" form:"name" validate:"required,max=100,person_name" label:"Name"`
	Mobile        string `json:"mobile" form:"mobile" validate:"required,len=10,digits" label:"Mobile number"`
	Email         string `json:"email" form:"email" validate:"omitempty,email,max=100" label:"Email"`
	AadhaarNumber string `json:"aadhaar_number" form:"aadhaar_number" validate:"omitempty,len=12,digits" label:"Aadhaar number"`
	PancardNumber string `json:"pancard_number" form:"pancard_number" validate:"omitempty,pan" label:"PAN card number"`
	Address       string `json:"address" form:"address" validate:"max=500" label:"Address"`
}

func (r *TenantRequest) normalize() {
	r.TenantID = strings.TrimSpace(r.TenantID)
	r.Name = strings.TrimSpace(r.Name)
	r.Mobile = strings.TrimSpace(r.Mobile)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.AadhaarNumber = strings.TrimSpace(r.AadhaarNumber)
	r.PancardNumber = strings.ToUpper(strings.TrimSpace(r.PancardNumber))
	r.Address = strings.TrimSpace(r.Address)
}

func (r TenantRequest) apply(t *models.Tenant) {
	t.Code = r.TenantID
	t.Name = r.Name
	t.Mobile = r.Mobile
	t.Email = optional(r.Email)
	t.AadhaarNumber = optional(r.AadhaarNumber)
	t.PancardNumber = optional(r.PancardNumber)
	t.Address = r.Address
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type ShopRef struct {
	ID     uint   `json:"id"`
	ShopNo string `json:"shop_no"`
}

type TenantResponse struct {
	ID            uint               `json:"id"`
	TenantID      string             `json:"tenant_id"`
	Name          string             `json:"name"`
	Mobile        string             `json:"mobile"`
	Email         string             `json:"email"`
	AadhaarNumber string             `json:"aadhaar_number"`
	PancardNumber string             `json:"pancard_number"`
	Address       string             `json:"address"`
	ShopCount     int                `json:"shop_count"`
	Shops         []ShopRef          `json:"shops,omitempty"`
	Documents     []DocumentResponse `json:"documents,omitempty"`
	CreatedAt     string             `json:"created_at"`
	UpdatedAt     string             `json:"updated_at"`
}

func newTenantResponse(t models.Tenant) TenantResponse {
	resp := TenantResponse{
		ID:            t.ID,
		TenantID:      t.Code,
		Name:          t.Name,
		Mobile:        t.Mobile,
		Email:         deref(t.Email),
		AadhaarNumber: deref(t.AadhaarNumber),
		PancardNumber: deref(t.PancardNumber),
		Address:       t.Address,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     t.UpdatedAt.Format(time.RFC3339),
	}
	for _, d := range t.Documents {
		resp.Documents = append(resp.Documents, newDocumentResponse(d))
	}
	return resp
}

// uniqueFields are the columns that must not repeat across tenants, in the
// order their conflicts are reported.
var uniqueFields = []struct {
	column string
	label  string
	value  func(TenantRequest) string
}{
	{"tenant_id", "Tenant ID", func(r TenantRequest) string { return r.TenantID }},
	{"mobile", "Mobile number", func(r TenantRequest) string { return r.Mobile }},
	{"email", "Email", func(r TenantRequest) string { return r.Email }},
	{"aadhaar_number", "Aadhaar number", func(r TenantRequest) string { return r.AadhaarNumber }},
	{"pancard_number", "PAN card number", func(r TenantRequest) string { return r.PancardNumber }},
}

func isTaken(db *gorm.DB, column, value string, excludeID uint) (bool, error) {
	var count int64
	err := db.Model(&models.Tenant{}).
		Where(column+" = ? AND id <> ?", value, excludeID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("tenant uniqueness check: %w", err)
	}
	return count > 0, nil
}

// conflicts returns a 409 listing every unique field r repeats.
func conflicts(db *gorm.DB, r TenantRequest, excludeID uint) error {
	errs := validation.Conflict()
	for _, f := range uniqueFields {
		v := f.value(r)
		if v == "" {
			continue
		}
		taken, err := isTaken(db, f.column, v, excludeID)
		if err != nil {
			return err
		}
		if taken {
			errs.Add("%s already exists", f.label)
		}
	}
	return errs.Err()
}

func parseRequest(c *fiber.Ctx) (TenantRequest, error) {
	var body TenantRequest
	if err := c.BodyParser(&body); err != nil {
		return body, apierr.InvalidBody
	}
	body.normalize()
	return body, validation.Struct(body)
}

func findTenant(c *fiber.Ctx, preload bool) (models.Tenant, error) {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return models.Tenant{}, err
	}
	q := database.DB
	if preload {
		q = q.Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
	}
	var t models.Tenant
	if err := q.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Tenant{}, apierr.NotFound("Tenant")
		}
		return models.Tenant{}, fmt.Errorf("load tenant: %w", err)
	}
	return t, nil
}

func ownerDir(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// POST /api/tenants
func CreateTenantHandler(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body, err := parseRequest(c)
		if err != nil {
			return err
		}
		if err := conflicts(database.DB, body, 0); err != nil {
			return err
		}

		headers, err := storage.FormFiles(c, "documents")
		if err != nil {
			return err
		}
		batch := store.NewBatch(storage.TenantDocuments)
		defer batch.Discard()
		files, err := batch.StageAll(headers, storage.DocumentTypes)
		if err != nil {
			return err
		}

		var t models.Tenant
		body.apply(&t)
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit("Documents").Create(&t).Error; err != nil {
				return fmt.Errorf("create tenant: %w", err)
			}
			docs, err := saveDocuments(tx, t.ID, files)
			if err != nil {
				return err
			}
			t.Documents = docs
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityTenant,
				EntityID:    t.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Tenant %s (%s) created", t.Name, t.Code),
				After:       t,
			})
		})
		if err != nil {
			return err
		}
		if err := promote(batch, t.ID, t.Documents); err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(newTenantResponse(t))
	}
}

// PUT /api/tenants/:id
//
// New documents are appended; existing ones are removed one at a time.
func UpdateTenantHandler(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		before, err := findTenant(c, false)
		if err != nil {
			return err
		}
		body, err := parseRequest(c)
		if err != nil {
			return err
		}
		if err := conflicts(database.DB, body, before.ID); err != nil {
			return err
		}

		headers, err := storage.FormFiles(c, "documents")
		if err != nil {
			return err
		}
		batch := store.NewBatch(storage.TenantDocuments)
		defer batch.Discard()
		files, err := batch.StageAll(headers, storage.DocumentTypes)
		if err != nil {
			return err
		}

		after := before
		body.apply(&after)
		actor := audit.ActorOf(c)

		var docs []models.TenantDocument
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Tenant{ID: before.ID}).
				Select("tenant_id", "name", "mobile", "email", "aadhaar_number", "pancard_number", "address").
				Updates(&after).Error; err != nil {
				return fmt.Errorf("update tenant: %w", err)
			}
			docs, err = saveDocuments(tx, before.ID, files)
			if err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityTenant,
				EntityID:    before.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Tenant %s (%s) updated", after.Name, after.Code),
				Before:      before,
				After:       after,
			})
		})
		if err != nil {
			return err
		}
		if err := promote(batch, before.ID, docs); err != nil {
			return err
		}

		updated, err := findTenant(c, true)
		if err != nil {
			return err
		}
		return c.JSON(newTenantResponse(updated))
	}
}

// DELETE /api/tenants/:id
func DeleteTenantHandler(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := findTenant(c, true)
		if err != nil {
			return err
		}
		batch := store.NewBatch(storage.TenantDocuments)
		defer batch.Discard()
		for _, d := range t.Documents {
			batch.RemoveOnPromote(d.FilePath)
		}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := ledger.CheckTenantDeletable(tx, t.ID); err != nil {
				return err
			}
			if err := tx.Where("tenant_id = ?", t.ID).Delete(&models.TenantDocument{}).Error; err != nil {
				return fmt.Errorf("delete tenant documents: %w", err)
			}
			if err := tx.Delete(&models.Tenant{}, t.ID).Error; err != nil {
				return fmt.Errorf("delete tenant: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityTenant,
				EntityID:    t.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Tenant %s (%s) deleted", t.Name, t.Code),
				Before:      t,
			})
		})
		if err != nil {
			return err
		}
		if err := batch.Promote(ownerDir(t.ID)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Tenant deleted successfully"})
	}
}

var tenantSorts = map[string]string{
	"name":       "name",
	"tenant_id":  "tenant_id",
	"created_at": "created_at",
}

// GET /api/tenants?search=ravi
func ListTenantsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Tenant{})
		if s := strings.TrimSpace(c.Query("search")); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(tenant_id) LIKE ? OR mobile LIKE ?", like, like, like)
		}

		var total int64
		if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return fmt.Errorf("count tenants: %w", err)
		}

		p := pagination.Parse(c, "name", "asc", pagination.ListOpts)
		var tenants []models.Tenant
		if err := q.Order(p.OrderClause(tenantSorts, "name")).
			Limit(p.Limit()).Offset(p.Offset()).
			Find(&tenants).Error; err != nil {
			return fmt.Errorf("list tenants: %w", err)
		}

		counts, err := shopCounts(tenants)
		if err != nil {
			return err
		}
		data := make([]TenantResponse, 0, len(tenants))
		for _, t := range tenants {
			resp := newTenantResponse(t)
			resp.ShopCount = counts[t.ID]
			data = append(data, resp)
		}
		return c.JSON(fiber.Map{"data": data, "meta": pagination.BuildMeta(total, p)})
	}
}

func shopCounts(tenants []models.Tenant) (map[uint]int, error) {
	out := make(map[uint]int, len(tenants))
	if len(tenants) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
	}
	var rows []struct {
		TenantID uint
		Count    int
	}
	if err := database.DB.Model(&models.Shop{}).
		Select("tenant_id, COUNT(*) AS count").
		Where("tenant_id IN ?", ids).
		Group("tenant_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count tenant shops: %w", err)
	}
	for _, r := range rows {
		out[r.TenantID] = r.Count
	}
	return out, nil
}

// GET /api/tenants/:id
func GetTenantHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := findTenant(c, true)
		if err != nil {
			return err
		}
		var shops []ShopRef
		if err := database.DB.Model(&models.Shop{}).
			Select("id, shop_no").
			Where("tenant_id = ?", t.ID).
			Order("shop_no").
			Scan(&shops).Error; err != nil {
			return fmt.Errorf("load tenant shops: %w", err)
		}
		resp := newTenantResponse(t)
		resp.Shops = shops
		resp.ShopCount = len(shops)
		return c.JSON(resp)
	}
}

// GET /api/tenants/check-unique?field=mobile&value=9800000001&exclude_id=3
func CheckUniqueHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		field := c.Query("field")
		value := strings.TrimSpace(c.Query("value"))
		var column string
		for _, f := range uniqueFields {
			if f.column == field {
				column = f.column
			}
		}
		if column == "" {
			return apierr.BadRequest("Invalid field")
		}
		if value == "" {
			return c.JSON(fiber.Map{"exists": false})
		}
		switch column {
		case "email":
			value = strings.ToLower(value)
		case "pancard_number":
			value = strings.ToUpper(value)
		}
		taken, err := isTaken(database.DB, column, value, uint(c.QueryInt("exclude_id")))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"exists": taken})
	}
}
