// Package dashboard serves the landing page figures: every shop's position
// and recent collections.
package dashboard

import (
	"fmt"
	"strings"

	"kiramate-backend/internal/database"
	"kiramate-backend/internal/ledger"
	"kiramate-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Counts struct {
	Tenants         int64 `json:"tenants"`
	Shops           int64 `json:"shops"`
	PendingRents    int64 `json:"pending_rents"`
	PendingBalances int64 `json:"pending_opening_balances"`
}

type SummaryResponse struct {
	Shops  []ledger.Summary `json:"shops"`
	Totals ledger.Totals    `json:"totals"`
	Counts Counts           `json:"counts"`
}

func counts() (Counts, error) {
	var out Counts
	queries := []*gorm.DB{
		database.DB.Model(&models.Tenant{}),
		database.DB.Model(&models.Shop{}),
		database.DB.Model(&models.Rent{}).Where("NOT " + ledger.RentPaidExpr("rents")),
		database.DB.Model(&models.OpeningBalance{}).Where("NOT " + ledger.OpeningBalancePaidExpr("opening_balances")),
	}
	dst := []*int64{&out.Tenants, &out.Shops, &out.PendingRents, &out.PendingBalances}
	for i, q := range queries {
		if err := q.Count(dst[i]).Error; err != nil {
			return Counts{}, fmt.Errorf("dashboard counts: %w", err)
		}
	}
	return out, nil
}

// GET /api/dashboard?shop_no=A-1
func SummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := ledger.Summaries(database.DB, ledger.SummaryFilter{
			ShopNo: strings.TrimSpace(c.Query("shop_no")),
		})
		if err != nil {
			return err
		}
		n, err := counts()
		if err != nil {
			return err
		}
		return c.JSON(SummaryResponse{
			Shops:  rows,
			Totals: ledger.Total(rows),
			Counts: n,
		})
	}
}
