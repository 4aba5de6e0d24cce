// Package openingbalance manages the amounts carried forward per shop and
// financial year before monthly rent tracking began.
package openingbalance

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
	"kiramate-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OpeningBalanceRequest struct {
	ShopID         uint             `json:"shop_id" validate:"required_without=ShopNo" label:"Shop"`
	ShopNo         string           `json:"shop_no" validate:"omitempty,shop_no" label:"Shop number"`
	FinancialYear  string           `json:"financial_year" validate:"required,financial_year" label:"Financial year"`
	OpeningBalance *decimal.Decimal `json:"opening_balance" validate:"required,gt=0" label:"Opening balance"`
}

type OpeningBalanceResponse struct {
	ID             uint            `json:"id"`
	ShopID         uint            `json:"shop_id"`
	ShopNo         string          `json:"shop_no"`
	TenantID       *uint           `json:"tenant_id"`
	TenantName     string          `json:"tenant_name"`
	FinancialYear  string          `json:"financial_year"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Paid           bool            `json:"paid"`
	CreatedAt      string          `json:"created_at"`
}

type obRow struct {
	ID            uint
	ShopID        uint
	TenantID      *uint
	FinancialYear string
	Amount        decimal.Decimal
	CreatedAt     time.Time
	ShopNo        string
	TenantName    *string
	Paid          bool
}

func (r obRow) response() OpeningBalanceResponse {
	resp := OpeningBalanceResponse{
		ID:             r.ID,
		ShopID:         r.ShopID,
		ShopNo:         r.ShopNo,
		TenantID:       r.TenantID,
		FinancialYear:  r.FinancialYear,
		OpeningBalance: r.Amount,
		Paid:           r.Paid,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
	if r.TenantName != nil {
		resp.TenantName = *r.TenantName
	}
	return resp
}

// The tenant shown is the one recorded with the balance, not the shop's
// current tenant.
func obQuery(db *gorm.DB) *gorm.DB {
	return db.Table("opening_balances ob").
		Joins("JOIN shops s ON s.id = ob.shop_id").
		Joins("LEFT JOIN tenants t ON t.id = ob.tenant_id")
}

var obColumns = "ob.id, ob.shop_id, ob.tenant_id, ob.financial_year, ob.opening_balance AS amount, ob.created_at, " +
	"s.shop_no, t.name AS tenant_name, " + ledger.OpeningBalancePaidExpr("ob") + " AS paid"

func loadRow(db *gorm.DB, id uint) (obRow, error) {
	var rows []obRow
	if err := obQuery(db).Select(obColumns).Where("ob.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return obRow{}, fmt.Errorf("load opening balance: %w", err)
	}
	if len(rows) == 0 {
		return obRow{}, apierr.NotFound("Opening balance")
	}
	return rows[0], nil
}

func find(c *fiber.Ctx) (models.OpeningBalance, error) {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return models.OpeningBalance{}, err
	}
	var ob models.OpeningBalance
	if err := database.DB.First(&ob, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.OpeningBalance{}, apierr.NotFound("Opening balance")
		}
		return models.OpeningBalance{}, fmt.Errorf("load opening balance: %w", err)
	}
	return ob, nil
}

func resolve(c *fiber.Ctx, excludeID uint) (models.OpeningBalance, models.Shop, error) {
	var body OpeningBalanceRequest
	if err := c.BodyParser(&body); err != nil {
		return models.OpeningBalance{}, models.Shop{}, apierr.InvalidBody
	}
	body.ShopNo = strings.TrimSpace(body.ShopNo)
	body.FinancialYear = strings.TrimSpace(body.FinancialYear)
	if err := validation.Struct(body); err != nil {
		return models.OpeningBalance{}, models.Shop{}, err
	}

	var shop models.Shop
	var err error
	if body.ShopID != 0 {
		err = database.DB.First(&shop, body.ShopID).Error
	} else {
		err = database.DB.Where("shop_no = ?", body.ShopNo).First(&shop).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.OpeningBalance{}, models.Shop{}, validation.New("Invalid shop")
	}
	if err != nil {
		return models.OpeningBalance{}, models.Shop{}, fmt.Errorf("load shop: %w", err)
	}

	var count int64
	if err := database.DB.Model(&models.OpeningBalance{}).
		Where("shop_id = ? AND financial_year = ? AND id <> ?", shop.ID, body.FinancialYear, excludeID).
		Count(&count).Error; err != nil {
		return models.OpeningBalance{}, models.Shop{}, fmt.Errorf("opening balance uniqueness check: %w", err)
	}
	if count > 0 {
		return models.OpeningBalance{}, models.Shop{}, validation.Conflict(
			fmt.Sprintf("Opening balance for %s already exists for shop %s", body.FinancialYear, shop.ShopNo))
	}

	return models.OpeningBalance{
		ID:            excludeID,
		ShopID:        shop.ID,
		TenantID:      shop.TenantID,
		FinancialYear: body.FinancialYear,
		Amount:        *body.OpeningBalance,
	}, shop, nil
}

// POST /api/opening-balances
func CreateOpeningBalanceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ob, shop, err := resolve(c, 0)
		if err != nil {
			return err
		}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit("Shop", "Tenant").Create(&ob).Error; err != nil {
				return fmt.Errorf("create opening balance: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityOpeningBalance,
				EntityID:    ob.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Opening balance for %s created for shop %s", ob.FinancialYear, shop.ShopNo),
				After:       ob,
			})
		})
		if err != nil {
			return err
		}

		row, err := loadRow(database.DB, ob.ID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(row.response())
	}
}

// PUT /api/opening-balances/:id
func UpdateOpeningBalanceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		before, err := find(c)
		if err != nil {
			return err
		}
		after, shop, err := resolve(c, before.ID)
		if err != nil {
			return err
		}
		if after.ShopID == before.ShopID {
			after.TenantID = before.TenantID
		}
		after.CreatedAt = before.CreatedAt
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := ledger.CheckOpeningBalanceRekey(tx, before, after); err != nil {
				return err
			}
			if err := tx.Model(&models.OpeningBalance{ID: before.ID}).
				Select("shop_id", "tenant_id", "financial_year", "opening_balance").
				Updates(&after).Error; err != nil {
				return fmt.Errorf("update opening balance: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityOpeningBalance,
				EntityID:    before.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Opening balance for %s updated for shop %s", after.FinancialYear, shop.ShopNo),
				Before:      before,
				After:       after,
			})
		})
		if err != nil {
			return err
		}

		row, err := loadRow(database.DB, before.ID)
		if err != nil {
			return err
		}
		return c.JSON(row.response())
	}
}

// DELETE /api/opening-balances/:id
func DeleteOpeningBalanceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ob, err := find(c)
		if err != nil {
			return err
		}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := ledger.CheckOpeningBalanceDeletable(tx, ob); err != nil {
				return err
			}
			if err := tx.Delete(&models.OpeningBalance{}, ob.ID).Error; err != nil {
				return fmt.Errorf("delete opening balance: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityOpeningBalance,
				EntityID:    ob.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Opening balance for %s deleted", ob.FinancialYear),
				Before:      ob,
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Opening balance deleted successfully"})
	}
}

var obSorts = map[string]string{
	"financial_year":  "ob.financial_year",
	"opening_balance": "ob.opening_balance",
	"shop_no":         "s.shop_no",
	"created_at":      "ob.created_at",
}

// GET /api/opening-balances?shop_no=A-1&status=pending
func ListOpeningBalancesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := obQuery(database.DB)
		if shopNo := strings.TrimSpace(c.Query("shop_no")); shopNo != "" {
			q = q.Where("s.shop_no = ?", shopNo)
		}
		if shopID := c.QueryInt("shop_id"); shopID > 0 {
			q = q.Where("ob.shop_id = ?", shopID)
		}
		if fy := strings.TrimSpace(c.Query("financial_year")); fy != "" {
			q = q.Where("ob.financial_year = ?", fy)
		}
		switch c.Query("status") {
		case "paid":
			q = q.Where(ledger.OpeningBalancePaidExpr("ob"))
		case "pending":
			q = q.Where("NOT " + ledger.OpeningBalancePaidExpr("ob"))
		}

		var total int64
		if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return fmt.Errorf("count opening balances: %w", err)
		}

		p := pagination.Parse(c, "financial_year", "desc", pagination.ListOpts)
		var rows []obRow
		err := q.Select(obColumns).
			Order(p.OrderClause(obSorts, "financial_year")).
			Order("s.shop_no ASC").
			Limit(p.Limit()).Offset(p.Offset()).
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("list opening balances: %w", err)
		}

		data := make([]OpeningBalanceResponse, 0, len(rows))
		for _, r := range rows {
			data = append(data, r.response())
		}
		return c.JSON(fiber.Map{"data": data, "meta": pagination.BuildMeta(total, p)})
	}
}

// GET /api/opening-balances/:id
func GetOpeningBalanceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := apierr.ParamID(c, "id")
		if err != nil {
			return err
		}
		row, err := loadRow(database.DB, id)
		if err != nil {
			return err
		}
		return c.JSON(row.response())
	}
}
