package dashboard

import (
	"fmt"
	"time"

	"kiramate-backend/internal/database"
	"kiramate-backend/internal/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CollectionPoint struct {
	Label    string                     `json:"label"` // day, or first day of the month
	ByMethod map[string]decimal.Decimal `json:"by_method"`
	Total    decimal.Decimal            `json:"total"`
}

type CollectionChartResponse struct {
	Period     string            `json:"period"` // daily | monthly
	From       string            `json:"from"`
	To         string            `json:"to"`
	Points     []CollectionPoint `json:"points"`
	GrandTotal decimal.Decimal   `json:"grand_total"`
}

// chartRange returns the first bucket start, the exclusive end and the
// bucket step for count buckets ending with the one containing now.
func chartRange(period string, count int, now time.Time) (time.Time, time.Time, func(time.Time) time.Time) {
	if period == "monthly" {
		end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		return end.AddDate(0, -count, 0), end, func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	}
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return end.AddDate(0, 0, -count), end, func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
}

func bucketOf(period string, t time.Time) time.Time {
	if period == "monthly" {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GET /api/dashboard/collections?period=monthly&count=12
func CollectionChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period := c.Query("period", "monthly")
		defCount := 12
		if period != "monthly" {
			period = "daily"
			defCount = 7
		}
		count := c.QueryInt("count", defCount)
		if count <= 0 || count > 366 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid count")
		}

		start, end, next := chartRange(period, count, time.Now())

		var rows []struct {
			PaymentDate   time.Time
			PaymentMethod string
			Amount        decimal.Decimal
		}
		if err := database.DB.Table("payments").
			Select("payment_date, payment_method, amount").
			Where("payment_date >= ? AND payment_date < ?", start, end).
			Scan(&rows).Error; err != nil {
			return fmt.Errorf("collection chart: %w", err)
		}

		buckets := make(map[time.Time]*CollectionPoint, count)
		points := make([]*CollectionPoint, 0, count)
		for b := start; b.Before(end); b = next(b) {
			p := &CollectionPoint{Label: b.Format(time.DateOnly), ByMethod: map[string]decimal.Decimal{}}
			for _, m := range payment.Methods {
				p.ByMethod[m] = decimal.Zero
			}
			buckets[b] = p
			points = append(points, p)
		}

		grand := decimal.Zero
		for _, r := range rows {
			p, ok := buckets[bucketOf(period, r.PaymentDate)]
			if !ok {
				continue
			}
			p.ByMethod[r.PaymentMethod] = p.ByMethod[r.PaymentMethod].Add(r.Amount)
			p.Total = p.Total.Add(r.Amount)
			grand = grand.Add(r.Amount)
		}

		resp := CollectionChartResponse{
			Period:     period,
			From:       start.Format(time.DateOnly),
			To:         end.AddDate(0, 0, -1).Format(time.DateOnly),
			Points:     make([]CollectionPoint, 0, len(points)),
			GrandTotal: grand,
		}
		for _, p := range points {
			resp.Points = append(resp.Points, *p)
		}
		return c.JSON(resp)
	}
}
