package rent

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kiramate-backend/internal/apierr"
	"kiramate-backend/internal/audit"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/ledger"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/pagination"
	"kiramate-backend/internal/period"
	"kiramate-backend/internal/validation"
	"kiramate-backend/internal/views"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RentRequest creates or edits a rent row. CalculatedRent is worked out
// from the shop agreement when omitted; FinalRent is always derived.
type RentRequest struct {
	ShopID         uint             `json:"shop_id" validate:"required_without=ShopNo" label:"Shop"`
	ShopNo         string           `json:"shop_no" validate:"omitempty,shop_no" label:"Shop number"`
	RentMonth      string           `json:"rent_month" validate:"required,rent_month" label:"Rent month"`
	CalculatedRent *decimal.Decimal `json:"calculated_rent" validate:"omitempty,gte=0" label:"Calculated rent"`
	Penalty        *decimal.Decimal `json:"penalty" validate:"omitempty,gte=0" label:"Penalty"`
	AmountWavedOff *decimal.Decimal `json:"amount_waved_off" validate:"omitempty,gte=0" label:"Amount waved off"`
	Remarks        string           `json:"remarks" validate:"max=500" label:"Remarks"`
}

type RentResponse struct {
	ID             uint            `json:"id"`
	ShopID         uint            `json:"shop_id"`
	ShopNo         string          `json:"shop_no"`
	TenantName     string          `json:"tenant_name"`
	RentYear       int             `json:"rent_year"`
	RentMonth      int             `json:"rent_month"`
	Period         string          `json:"period"`
	PeriodLabel    string          `json:"period_label"`
	CalculatedRent decimal.Decimal `json:"calculated_rent"`
	Penalty        decimal.Decimal `json:"penalty"`
	AmountWavedOff decimal.Decimal `json:"amount_waved_off"`
	FinalRent      decimal.Decimal `json:"final_rent"`
	Remarks        string          `json:"remarks"`
	Paid           bool            `json:"paid"`
	CreatedAt      string          `json:"created_at"`
}

// rentRow is a rent joined with its shop, tenant and paid flag.
type rentRow struct {
	ID             uint
	ShopID         uint
	RentYear       int
	RentMonth      int
	CalculatedRent decimal.Decimal
	Penalty        decimal.Decimal
	AmountWavedOff decimal.Decimal
	FinalRent      decimal.Decimal
	Remarks        string
	CreatedAt      time.Time
	ShopNo         string
	TenantName     *string
	Paid           bool
}

func (r rentRow) response() RentResponse {
	m := period.NewMonth(r.RentYear, time.Month(r.RentMonth))
	resp := RentResponse{
		ID:             r.ID,
		ShopID:         r.ShopID,
		ShopNo:         r.ShopNo,
		RentYear:       r.RentYear,
		RentMonth:      r.RentMonth,
		Period:         m.Value(),
		PeriodLabel:    m.Label(),
		CalculatedRent: r.CalculatedRent,
		Penalty:        r.Penalty,
		AmountWavedOff: r.AmountWavedOff,
		FinalRent:      r.FinalRent,
		Remarks:        r.Remarks,
		Paid:           r.Paid,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
	if r.TenantName != nil {
		resp.TenantName = *r.TenantName
	}
	return resp
}

func rentQuery(db *gorm.DB) *gorm.DB {
	return db.Table("rents r").
		Joins("JOIN shops s ON s.id = r.shop_id").
		Joins("LEFT JOIN tenants t ON t.id = s.tenant_id")
}

const rentColumns = "r.id, r.shop_id, r.rent_year, r.rent_month, r.calculated_rent, r.penalty, " +
	"r.amount_waved_off, r.final_rent, r.remarks, r.created_at, s.shop_no, t.name AS tenant_name"

func loadRentRow(db *gorm.DB, id uint) (rentRow, error) {
	var rows []rentRow
	err := rentQuery(db).
		Select(rentColumns+", "+ledger.RentPaidExpr("r")+" AS paid").
		Where("r.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return rentRow{}, fmt.Errorf("load rent: %w", err)
	}
	if len(rows) == 0 {
		return rentRow{}, apierr.NotFound("Rent record")
	}
	return rows[0], nil
}

func findRent(c *fiber.Ctx) (models.Rent, error) {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return models.Rent{}, err
	}
	var r models.Rent
	if err := database.DB.First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Rent{}, apierr.NotFound("Rent record")
		}
		return models.Rent{}, fmt.Errorf("load rent: %w", err)
	}
	return r, nil
}

// resolve validates body and builds the rent row it describes. excludeID is
// the row being edited, 0 on create.
func resolve(c *fiber.Ctx, excludeID uint) (models.Rent, models.Shop, error) {
	var body RentRequest
	if err := c.BodyParser(&body); err != nil {
		return models.Rent{}, models.Shop{}, apierr.InvalidBody
	}
	body.ShopNo = strings.TrimSpace(body.ShopNo)
	if err := validation.Struct(body); err != nil {
		return models.Rent{}, models.Shop{}, err
	}

	var shop models.Shop
	q := database.DB.Preload("Tenant")
	var err error
	if body.ShopID != 0 {
		err = q.First(&shop, body.ShopID).Error
	} else {
		err = q.Where("shop_no = ?", body.ShopNo).First(&shop).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Rent{}, models.Shop{}, validation.New("Invalid shop")
	}
	if err != nil {
		return models.Rent{}, models.Shop{}, fmt.Errorf("load shop: %w", err)
	}

	month, _ := period.ParseMonth(body.RentMonth)
	var count int64
	if err := database.DB.Model(&models.Rent{}).
		Where("shop_id = ? AND rent_year = ? AND rent_month = ? AND id <> ?", shop.ID, month.Year, int(month.Month), excludeID).
		Count(&count).Error; err != nil {
		return models.Rent{}, models.Shop{}, fmt.Errorf("rent uniqueness check: %w", err)
	}
	if count > 0 {
		return models.Rent{}, models.Shop{}, validation.Conflict(
			fmt.Sprintf("Rent record for %s already exists for shop %s", month.Label(), shop.ShopNo))
	}

	calculated := ForShop(shop, month)
	if body.CalculatedRent != nil {
		calculated = *body.CalculatedRent
	}
	penalty := decimal.Zero
	if body.Penalty != nil {
		penalty = *body.Penalty
	}
	waived := decimal.Zero
	if body.AmountWavedOff != nil {
		waived = *body.AmountWavedOff
	}

	return models.Rent{
		ID:             excludeID,
		ShopID:         shop.ID,
		RentYear:       month.Year,
		RentMonth:      int(month.Month),
		CalculatedRent: calculated,
		Penalty:        penalty,
		AmountWavedOff: waived,
		FinalRent:      FinalRent(calculated, penalty, waived),
		Remarks:        strings.TrimSpace(body.Remarks),
	}, shop, nil
}

// POST /api/rents
func CreateRentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, shop, err := resolve(c, 0)
		if err != nil {
			return err
		}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit("Shop").Create(&r).Error; err != nil {
				return fmt.Errorf("create rent: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityRent,
				EntityID:    r.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Rent for %s created for shop %s", r.Period().Label(), shop.ShopNo),
				After:       r,
			})
		})
		if err != nil {
			return err
		}

		row, err := loadRentRow(database.DB, r.ID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(row.response())
	}
}

// PUT /api/rents/:id
func UpdateRentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		before, err := findRent(c)
		if err != nil {
			return err
		}
		after, shop, err := resolve(c, before.ID)
		if err != nil {
			return err
		}
		after.CreatedAt = before.CreatedAt
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := ledger.CheckRentRekey(tx, before, after); err != nil {
				return err
			}
			if err := tx.Model(&models.Rent{ID: before.ID}).
				Select("shop_id", "rent_year", "rent_month", "calculated_rent", "penalty", "amount_waved_off", "final_rent", "remarks").
				Updates(&after).Error; err != nil {
				return fmt.Errorf("update rent: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityRent,
				EntityID:    before.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Rent for %s updated for shop %s", after.Period().Label(), shop.ShopNo),
				Before:      before,
				After:       after,
			})
		})
		if err != nil {
			return err
		}

		row, err := loadRentRow(database.DB, before.ID)
		if err != nil {
			return err
		}
		return c.JSON(row.response())
	}
}

// DELETE /api/rents/:id
func DeleteRentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := findRent(c)
		if err != nil {
			return err
		}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := ledger.CheckRentDeletable(tx, r); err != nil {
				return err
			}
			if err := tx.Delete(&models.Rent{}, r.ID).Error; err != nil {
				return fmt.Errorf("delete rent: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityRent,
				EntityID:    r.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Rent for %s deleted", r.Period().Label()),
				Before:      r,
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Rent record deleted successfully"})
	}
}

var rentSorts = map[string]string{
	"rent_month": "(r.rent_year * 100 + r.rent_month)",
	"final_rent": "r.final_rent",
	"shop_no":    "s.shop_no",
	"created_at": "r.created_at",
}

// GET /api/rents?shop_no=A-1&rent_year=2024&status=pending
func ListRentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := rentQuery(database.DB)
		if shopNo := strings.TrimSpace(c.Query("shop_no")); shopNo != "" {
			q = q.Where("s.shop_no = ?", shopNo)
		}
		if shopID := c.QueryInt("shop_id"); shopID > 0 {
			q = q.Where("r.shop_id = ?", shopID)
		}
		if y := c.QueryInt("rent_year"); y > 0 {
			q = q.Where("r.rent_year = ?", y)
		}
		if m := c.QueryInt("rent_month"); m >= 1 && m <= 12 {
			q = q.Where("r.rent_month = ?", m)
		}
		switch c.Query("status") {
		case "paid":
			q = q.Where(ledger.RentPaidExpr("r"))
		case "pending":
			q = q.Where("NOT " + ledger.RentPaidExpr("r"))
		}

		var total int64
		if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return fmt.Errorf("count rents: %w", err)
		}

		p := pagination.Parse(c, "rent_month", "desc", pagination.ListOpts)
		var rows []rentRow
		err := q.Select(rentColumns + ", " + ledger.RentPaidExpr("r") + " AS paid").
			Order(p.OrderClause(rentSorts, "rent_month")).
			Order("s.shop_no ASC").
			Limit(p.Limit()).Offset(p.Offset()).
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("list rents: %w", err)
		}

		data := make([]RentResponse, 0, len(rows))
		for _, r := range rows {
			data = append(data, r.response())
		}
		return c.JSON(fiber.Map{"data": data, "meta": pagination.BuildMeta(total, p)})
	}
}

// GET /api/rents/:id
func GetRentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := apierr.ParamID(c, "id")
		if err != nil {
			return err
		}
		row, err := loadRentRow(database.DB, id)
		if err != nil {
			return err
		}
		return c.JSON(row.response())
	}
}

// GET /api/shops/:id/rent-quote?month=2024-03
func RentQuoteHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := apierr.ParamID(c, "id")
		if err != nil {
			return err
		}
		month, err := period.ParseMonth(c.Query("month"))
		if err != nil {
			return validation.New("Rent month must be in format YYYY-MM")
		}
		var shop models.Shop
		if err := database.DB.First(&shop, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("Shop")
			}
			return fmt.Errorf("load shop: %w", err)
		}
		return c.JSON(fiber.Map{
			"shop_id":         shop.ID,
			"month":           month.Value(),
			"calculated_rent": ForShop(shop, month),
		})
	}
}

// GET /api/rents/:id/receipt
func RentReceiptHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := apierr.ParamID(c, "id")
		if err != nil {
			return err
		}
		row, err := loadRentRow(database.DB, id)
		if err != nil {
			return err
		}
		lh, err := views.LoadLetterhead(database.DB)
		if err != nil {
			return err
		}
		resp := row.response()
		return c.Render("rent_receipt", views.RentReceipt{
			Letterhead:  lh,
			GeneratedOn: time.Now(),
			ShopNo:      resp.ShopNo,
			TenantName:  resp.TenantName,
			RentOf:      period.NewMonth(row.RentYear, time.Month(row.RentMonth)).Short(),
			Penalty:     row.Penalty,
			WavedOff:    row.AmountWavedOff,
			RentAmount:  row.FinalRent,
		})
	}
}
