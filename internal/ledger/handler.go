package ledger

import (
	"errors"
	"fmt"
	"strings"

	"kiramate-backend/internal/database"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/period"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Option is one entry of a form select.
type Option struct {
	Value  string          `json:"value"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// lookupShop resolves ?shop_no=. A blank or unknown number yields ok=false,
// which lookups answer with an empty result rather than an error.
func lookupShop(c *fiber.Ctx) (models.Shop, bool, error) {
	shopNo := strings.TrimSpace(c.Query("shop_no"))
	if shopNo == "" {
		return models.Shop{}, false, nil
	}
	shop, err := FindShopByNo(database.DB, shopNo)
	if errors.Is(err, ErrShopNotFound) {
		return models.Shop{}, false, nil
	}
	if err != nil {
		return models.Shop{}, false, err
	}
	return shop, true, nil
}

// GET /api/lookup/pending-rent-months?shop_no=A-1
func PendingRentMonthsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		months := []Option{}
		shop, ok, err := lookupShop(c)
		if err != nil {
			return err
		}
		if ok {
			rents, err := PendingRentMonths(database.DB, shop.ID)
			if err != nil {
				return err
			}
			for _, r := range rents {
				m := r.Period()
				months = append(months, Option{Value: m.Value(), Label: m.Label(), Amount: r.FinalRent})
			}
		}
		return c.JSON(fiber.Map{"months": months})
	}
}

// GET /api/lookup/opening-balances?shop_no=A-1
func PendingOpeningBalancesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		balances := []Option{}
		shop, ok, err := lookupShop(c)
		if err != nil {
			return err
		}
		if ok {
			obs, err := PendingOpeningBalances(database.DB, shop.ID)
			if err != nil {
				return err
			}
			for _, ob := range obs {
				balances = append(balances, Option{
					Value:  "OB-" + ob.FinancialYear,
					Label:  fmt.Sprintf("Opening Balance (FY %s)", ob.FinancialYear),
					Amount: ob.Amount,
				})
			}
		}
		return c.JSON(fiber.Map{"opening_balances": balances})
	}
}

// GET /api/lookup/rent-amount?shop_no=A-1&rent_month=2024-03
//
// amount is null when the shop or the rent row does not exist.
func RentAmountHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shop, ok, err := lookupShop(c)
		if err != nil {
			return err
		}
		month, merr := period.ParseMonth(c.Query("rent_month"))
		if !ok || merr != nil {
			return c.JSON(fiber.Map{"amount": nil})
		}
		var rents []models.Rent
		if err := database.DB.
			Where("shop_id = ? AND rent_year = ? AND rent_month = ?", shop.ID, month.Year, int(month.Month)).
			Limit(1).Find(&rents).Error; err != nil {
			return fmt.Errorf("rent amount lookup: %w", err)
		}
		if len(rents) == 0 {
			return c.JSON(fiber.Map{"amount": nil})
		}
		return c.JSON(fiber.Map{"amount": rents[0].FinalRent})
	}
}
