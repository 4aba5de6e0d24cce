// Package shop manages shops, their rent agreements and documents.
package shop

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
	"kiramate-backend/internal/period"
	"kiramate-backend/internal/rent"
	"kiramate-backend/internal/storage"
	"kiramate-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ShopRequest is accepted as JSON or as a multipart form with "documents"
// file parts.
type ShopRequest struct {
	ShopNo                 string           `json:"shop_no" form:"shop_no" validate:"required,max=50,shop_no" label:"Shop number"`
	Location               string           `json:"location" form:"location" validate:"required,max=255" label:"Location"`
	TenantID               uint             `json:"tenant_id" form:"tenant_id" validate:"required" label:"Tenant"`
	AgreementStartDate     string           `json:"agreement_start_date" form:"agreement_start_date" validate:"required,datetime=2006-01-02" label:"Agreement start date"`
	AgreementEndDate       string           `json:"agreement_end_date" form:"agreement_end_date" validate:"required,datetime=2006-01-02" label:"Agreement end date"`
	BaseRent               *decimal.Decimal `json:"base_rent" form:"base_rent" validate:"required,gt=0" label:"Base rent"`
	RentIncrementPercent   *decimal.Decimal `json:"rent_increment_percent" form:"rent_increment_percent" validate:"required,gte=0" label:"Rent increment percent"`
	IncrementDurationYears int              `json:"increment_duration_years" form:"increment_duration_years" validate:"required,gte=1" label:"Increment duration"`
}

type ShopResponse struct {
	ID                     uint               `json:"id"`
	ShopNo                 string             `json:"shop_no"`
	Location               string             `json:"location"`
	TenantID               *uint              `json:"tenant_id"`
	TenantName             string             `json:"tenant_name"`
	AgreementStartDate     string             `json:"agreement_start_date"`
	AgreementEndDate       string             `json:"agreement_end_date"`
	BaseRent               decimal.Decimal    `json:"base_rent"`
	RentIncrementPercent   decimal.Decimal    `json:"rent_increment_percent"`
	IncrementDurationYears int                `json:"increment_duration_years"`
	CurrentRent            decimal.Decimal    `json:"current_rent"`
	Documents              []DocumentResponse `json:"documents,omitempty"`
	CreatedAt              string             `json:"created_at"`
	UpdatedAt              string             `json:"updated_at"`
}

func newShopResponse(s models.Shop, now time.Time) ShopResponse {
	resp := ShopResponse{
		ID:                     s.ID,
		ShopNo:                 s.ShopNo,
		Location:               s.Location,
		TenantID:               s.TenantID,
		TenantName:             s.TenantName(),
		AgreementStartDate:     s.AgreementStartDate.Format(time.DateOnly),
		AgreementEndDate:       s.AgreementEndDate.Format(time.DateOnly),
		BaseRent:               s.BaseRent,
		RentIncrementPercent:   s.RentIncrementPercent,
		IncrementDurationYears: s.IncrementDurationYears,
		CurrentRent:            rent.ForShop(s, period.MonthOf(now)),
		CreatedAt:              s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:              s.UpdatedAt.Format(time.RFC3339),
	}
	for _, d := range s.Documents {
		resp.Documents = append(resp.Documents, newDocumentResponse(d))
	}
	return resp
}

// parseRequest validates the body and returns the shop it describes with
// the tenant loaded.
func parseRequest(c *fiber.Ctx) (ShopRequest, models.Shop, error) {
	var body ShopRequest
	if err := c.BodyParser(&body); err != nil {
		return body, models.Shop{}, apierr.InvalidBody
	}
	body.ShopNo = strings.TrimSpace(body.ShopNo)
	body.Location = strings.TrimSpace(body.Location)
	if err := validation.Struct(body); err != nil {
		return body, models.Shop{}, err
	}

	start, _ := time.Parse(time.DateOnly, body.AgreementStartDate)
	end, _ := time.Parse(time.DateOnly, body.AgreementEndDate)
	errs := validation.New()
	if !start.Before(end) {
		errs.Add("Agreement end date must be after the start date")
	}

	var tenant models.Tenant
	err := database.DB.First(&tenant, body.TenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errs.Add("Invalid tenant")
	} else if err != nil {
		return body, models.Shop{}, fmt.Errorf("load tenant: %w", err)
	}
	if err := errs.Err(); err != nil {
		return body, models.Shop{}, err
	}

	tenantID := tenant.ID
	return body, models.Shop{
		ShopNo:                 body.ShopNo,
		Location:               body.Location,
		TenantID:               &tenantID,
		Tenant:                 &tenant,
		AgreementStartDate:     start,
		AgreementEndDate:       end,
		BaseRent:               *body.BaseRent,
		RentIncrementPercent:   *body.RentIncrementPercent,
		IncrementDurationYears: body.IncrementDurationYears,
	}, nil
}

func shopNoTaken(db *gorm.DB, shopNo string, excludeID uint) (bool, error) {
	var count int64
	if err := db.Model(&models.Shop{}).
		Where("shop_no = ? AND id <> ?", shopNo, excludeID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("shop number check: %w", err)
	}
	return count > 0, nil
}

func checkShopNo(shopNo string, excludeID uint) error {
	taken, err := shopNoTaken(database.DB, shopNo, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return validation.Conflict("Shop number already exists")
	}
	return nil
}

func findShop(c *fiber.Ctx, preload bool) (models.Shop, error) {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return models.Shop{}, err
	}
	q := database.DB.Preload("Tenant")
	if preload {
		q = q.Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
	}
	var s models.Shop
	if err := q.First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Shop{}, apierr.NotFound("Shop")
		}
		return models.Shop{}, fmt.Errorf("load shop: %w", err)
	}
	return s, nil
}

func ownerDir(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// POST /api/shops
func CreateShopHandler(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, s, err := parseRequest(c)
		if err != nil {
			return err
		}
		if err := checkShopNo(s.ShopNo, 0); err != nil {
			return err
		}

		headers, err := storage.FormFiles(c, "documents")
		if err != nil {
			return err
		}
		batch := store.NewBatch(storage.ShopDocuments)
		defer batch.Discard()
		files, err := batch.StageAll(headers, storage.DocumentTypes)
		if err != nil {
			return err
		}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit("Tenant", "Documents").Create(&s).Error; err != nil {
				return fmt.Errorf("create shop: %w", err)
			}
			docs, err := saveDocuments(tx, s.ID, files)
			if err != nil {
				return err
			}
			s.Documents = docs
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityShop,
				EntityID:    s.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Shop %s created for %s", s.ShopNo, s.TenantName()),
				After:       s,
			})
		})
		if err != nil {
			return err
		}
		if err := promote(batch, s.ID, s.Documents); err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(newShopResponse(s, time.Now()))
	}
}

// PUT /api/shops/:id
//
// The agreement terms only affect rents created afterwards; existing rent
// rows keep their amounts.
func UpdateShopHandler(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		before, err := findShop(c, false)
		if err != nil {
			return err
		}
		_, after, err := parseRequest(c)
		if err != nil {
			return err
		}
		if err := checkShopNo(after.ShopNo, before.ID); err != nil {
			return err
		}

		headers, err := storage.FormFiles(c, "documents")
		if err != nil {
			return err
		}
		batch := store.NewBatch(storage.ShopDocuments)
		defer batch.Discard()
		files, err := batch.StageAll(headers, storage.DocumentTypes)
		if err != nil {
			return err
		}

		after.ID = before.ID
		after.CreatedAt = before.CreatedAt
		actor := audit.ActorOf(c)

		var docs []models.ShopDocument
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Shop{ID: before.ID}).
				Select("shop_no", "location", "tenant_id", "agreement_start_date", "agreement_end_date",
					"base_rent", "rent_increment_percent", "increment_duration_years").
				Updates(&after).Error; err != nil {
				return fmt.Errorf("update shop: %w", err)
			}
			docs, err = saveDocuments(tx, before.ID, files)
			if err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityShop,
				EntityID:    before.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Shop %s updated", after.ShopNo),
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

		updated, err := findShop(c, true)
		if err != nil {
			return err
		}
		return c.JSON(newShopResponse(updated, time.Now()))
	}
}

// DELETE /api/shops/:id
func DeleteShopHandler(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := findShop(c, true)
		if err != nil {
			return err
		}
		batch := store.NewBatch(storage.ShopDocuments)
		defer batch.Discard()
		for _, d := range s.Documents {
			batch.RemoveOnPromote(d.FilePath)
		}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := ledger.CheckShopDeletable(tx, s.ID); err != nil {
				return err
			}
			if err := tx.Where("shop_id = ?", s.ID).Delete(&models.ShopDocument{}).Error; err != nil {
				return fmt.Errorf("delete shop documents: %w", err)
			}
			if err := tx.Delete(&models.Shop{}, s.ID).Error; err != nil {
				return fmt.Errorf("delete shop: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityShop,
				EntityID:    s.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Shop %s deleted", s.ShopNo),
				Before:      s,
			})
		})
		if err != nil {
			return err
		}
		if err := batch.Promote(ownerDir(s.ID)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Shop deleted successfully"})
	}
}

var shopSorts = map[string]string{
	"shop_no":            "shops.shop_no",
	"location":           "shops.location",
	"base_rent":          "shops.base_rent",
	"agreement_end_date": "shops.agreement_end_date",
	"created_at":         "shops.created_at",
}

// GET /api/shops?search=A-&tenant_id=3
func ListShopsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Shop{})
		if s := strings.TrimSpace(c.Query("search")); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(shops.shop_no) LIKE ? OR LOWER(shops.location) LIKE ?", like, like)
		}
		if tenantID := c.QueryInt("tenant_id"); tenantID > 0 {
			q = q.Where("shops.tenant_id = ?", tenantID)
		}

		var total int64
		if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return fmt.Errorf("count shops: %w", err)
		}

		p := pagination.Parse(c, "shop_no", "asc", pagination.ListOpts)
		var shops []models.Shop
		if err := q.Preload("Tenant").
			Order(p.OrderClause(shopSorts, "shop_no")).
			Limit(p.Limit()).Offset(p.Offset()).
			Find(&shops).Error; err != nil {
			return fmt.Errorf("list shops: %w", err)
		}

		now := time.Now()
		data := make([]ShopResponse, 0, len(shops))
		for _, s := range shops {
			data = append(data, newShopResponse(s, now))
		}
		return c.JSON(fiber.Map{"data": data, "meta": pagination.BuildMeta(total, p)})
	}
}

// GET /api/shops/:id
func GetShopHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := findShop(c, true)
		if err != nil {
			return err
		}
		return c.JSON(newShopResponse(s, time.Now()))
	}
}

// GET /api/shops/check-number?shop_no=A-1&exclude_id=4
func CheckNumberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopNo := strings.TrimSpace(c.Query("shop_no"))
		if shopNo == "" {
			return c.JSON(fiber.Map{"exists": false})
		}
		taken, err := shopNoTaken(database.DB, shopNo, uint(c.QueryInt("exclude_id")))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"exists": taken})
	}
}
