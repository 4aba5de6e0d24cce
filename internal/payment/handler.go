package payment

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
	"kiramate-backend/internal/views"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreatePaymentRequest struct {
	ShopNo        string           `json:"shop_no" validate:"required,shop_no" label:"Shop number"`
	RentMonth     string           `json:"rent_month" validate:"required" label:"Rent month"`
	Amount        *decimal.Decimal `json:"amount" validate:"required,gt=0" label:"Amount"`
	PaymentDate   string           `json:"payment_date" validate:"required,datetime=2006-01-02" label:"Payment date"`
	PaymentMethod string           `json:"payment_method" validate:"required" label:"Payment method"`
	Notes         string           `json:"notes" validate:"max=500" label:"Notes"`
}

type PaymentResponse struct {
	ID            uint            `json:"id"`
	ShopID        uint            `json:"shop_id"`
	ShopNo        string          `json:"shop_no"`
	TenantName    string          `json:"tenant_name"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   string          `json:"payment_date"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
	Target        string          `json:"rent_month"`
	RentOf        string          `json:"rent_of"`
	IsOB          bool            `json:"is_opening_balance"`
	CreatedAt     string          `json:"created_at"`
}

func toResponse(p models.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		ShopID:        p.ShopID,
		ShopNo:        p.Shop.ShopNo,
		TenantName:    p.Shop.TenantName(),
		Amount:        p.Amount,
		PaymentDate:   p.PaymentDate.Format(time.DateOnly),
		PaymentMethod: p.PaymentMethod,
		Notes:         p.Notes,
		IsOB:          p.IsOpeningBalance(),
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
	if t, err := TargetOf(p); err == nil {
		resp.Target = t.Value()
		resp.RentOf = t.Label()
	}
	return resp
}

// POST /api/payments
func CreatePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return apierr.InvalidBody
		}
		body.ShopNo = strings.TrimSpace(body.ShopNo)
		body.PaymentMethod = strings.TrimSpace(body.PaymentMethod)

		errs := validation.New()
		if err := errs.Merge(validation.Struct(body)); err != nil {
			return err
		}

		var target Target
		if body.RentMonth != "" {
			t, err := ParseTarget(body.RentMonth)
			if err != nil {
				errs.Add("Select a valid rent month or opening balance")
			}
			target = t
		}
		if body.PaymentMethod != "" && !ValidMethod(body.PaymentMethod) {
			errs.Add("Payment method must be one of: %s", strings.Join(Methods, ", "))
		}

		var shop models.Shop
		if body.ShopNo != "" {
			s, err := ledger.FindShopByNo(database.DB, body.ShopNo)
			switch {
			case errors.Is(err, ledger.ErrShopNotFound):
				errs.Add("Invalid shop number")
			case err != nil:
				return err
			}
			shop = s
		}

		if shop.ID != 0 && target != nil {
			ok, err := ObligationExists(database.DB, shop.ID, target)
			if err != nil {
				return err
			}
			if !ok {
				errs.Add("Shop %s has no %s recorded", shop.ShopNo, obligationName(target))
			}
		}
		if err := errs.Err(); err != nil {
			return err
		}

		paidOn, _ := time.Parse(time.DateOnly, body.PaymentDate)
		actor := audit.ActorOf(c)

		var p models.Payment
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			p, err = Record(tx, RecordInput{
				ShopID:        shop.ID,
				Amount:        *body.Amount,
				PaymentDate:   paidOn,
				PaymentMethod: body.PaymentMethod,
				Notes:         strings.TrimSpace(body.Notes),
				Target:        target,
			})
			if err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityPayment,
				EntityID:    p.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Payment of %s for shop %s (%s)", p.Amount.StringFixed(2), shop.ShopNo, target.Label()),
				After:       p,
			})
		})
		if err != nil {
			return err
		}

		p.Shop = shop
		return c.Status(fiber.StatusCreated).JSON(toResponse(p))
	}
}

func obligationName(t Target) string {
	switch t := t.(type) {
	case RentMonth:
		return "rent for " + t.Period().Label()
	case OpeningBalanceYear:
		return "opening balance for financial year " + t.FinancialYear.String()
	}
	return "obligation"
}

var paymentSorts = map[string]string{
	"payment_date": "payments.payment_date",
	"amount":       "payments.amount",
	"created_at":   "payments.created_at",
}

// GET /api/payments?shop_no=A-1&from_date=2024-01-01&to_date=2024-03-31
func ListPaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Payment{})

		if shopNo := strings.TrimSpace(c.Query("shop_no")); shopNo != "" {
			q = q.Where("payments.shop_id IN (?)", database.DB.Model(&models.Shop{}).Select("id").Where("shop_no = ?", shopNo))
		}
		if shopID := c.QueryInt("shop_id"); shopID > 0 {
			q = q.Where("payments.shop_id = ?", shopID)
		}
		if from, err := time.Parse(time.DateOnly, c.Query("from_date")); err == nil {
			q = q.Where("payments.payment_date >= ?", from)
		}
		if to, err := time.Parse(time.DateOnly, c.Query("to_date")); err == nil {
			q = q.Where("payments.payment_date < ?", to.AddDate(0, 0, 1))
		}

		var total int64
		if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return fmt.Errorf("count payments: %w", err)
		}

		p := pagination.Parse(c, "payment_date", "desc", pagination.ListOpts)
		var rows []models.Payment
		err := q.Preload("Shop.Tenant").
			Order(p.OrderClause(paymentSorts, "payment_date")).
			Order("payments.id DESC").
			Limit(p.Limit()).Offset(p.Offset()).
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}

		data := make([]PaymentResponse, 0, len(rows))
		for _, r := range rows {
			data = append(data, toResponse(r))
		}
		return c.JSON(fiber.Map{"data": data, "meta": pagination.BuildMeta(total, p)})
	}
}

func loadPayment(c *fiber.Ctx) (models.Payment, error) {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return models.Payment{}, err
	}
	var p models.Payment
	if err := database.DB.Preload("Shop.Tenant").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Payment{}, apierr.NotFound("Payment")
		}
		return models.Payment{}, fmt.Errorf("load payment: %w", err)
	}
	return p, nil
}

// GET /api/payments/:id
func GetPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := loadPayment(c)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(p))
	}
}

// DELETE /api/payments/:id
func DeletePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := loadPayment(c)
		if err != nil {
			return err
		}
		shopNo := p.Shop.ShopNo
		p.Shop = models.Shop{}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&models.Payment{}, p.ID).Error; err != nil {
				return fmt.Errorf("delete payment: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityPayment,
				EntityID:    p.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Payment of %s for shop %s deleted", p.Amount.StringFixed(2), shopNo),
				Before:      p,
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Payment deleted successfully"})
	}
}

// GET /api/payments/:id/receipt
func PaymentReceiptHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := loadPayment(c)
		if err != nil {
			return err
		}
		lh, err := views.LoadLetterhead(database.DB)
		if err != nil {
			return err
		}
		rentOf := ""
		if t, err := TargetOf(p); err == nil {
			rentOf = t.Label()
		}
		return c.Render("payment_receipt", views.PaymentReceipt{
			Letterhead:    lh,
			GeneratedOn:   time.Now(),
			ShopNo:        p.Shop.ShopNo,
			TenantName:    p.Shop.TenantName(),
			RentOf:        rentOf,
			PaymentDate:   p.PaymentDate,
			PaymentMethod: p.PaymentMethod,
			Amount:        p.Amount,
		})
	}
}
