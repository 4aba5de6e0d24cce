package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	StatusPaid    = "Paid"
	StatusPending = "Pending"
)

// Summary is the per-shop position shown on the dashboard and the summary report.
type Summary struct {
	ShopID               uint            `json:"shop_id"`
	ShopNo               string          `json:"shop_no"`
	TenantName           string          `json:"tenant_name"`
	OpeningBalanceTotal  decimal.Decimal `json:"opening_balance"`
	OpeningBalanceStatus string          `json:"ob_status"`
	PaidAmount           decimal.Decimal `json:"paid_amount"`
	RemainingAmount      decimal.Decimal `json:"remaining_amount"`
}

// SummaryFilter narrows Summaries. From/To bound rent and opening balance
// creation dates and payment dates, both inclusive.
type SummaryFilter struct {
	ShopID uint
	ShopNo string
	From   *time.Time
	To     *time.Time
}

type summaryRow struct {
	ShopID              uint
	ShopNo              string
	TenantName          string
	OpeningBalanceTotal decimal.Decimal
	UnpaidObCount       int64
	PaidAmount          decimal.Decimal
	UnpaidRent          decimal.Decimal
	UnpaidOb            decimal.Decimal
}

func (f SummaryFilter) dateRange(col string) (string, []any) {
	var sb strings.Builder
	var args []any
	if f.From != nil {
		sb.WriteString(" AND " + col + " >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		sb.WriteString(" AND " + col + " < ?")
		args = append(args, f.To.AddDate(0, 0, 1))
	}
	return sb.String(), args
}

// Summaries computes the summary of every shop matching f, ordered by shop number.
func Summaries(db *gorm.DB, f SummaryFilter) ([]Summary, error) {
	obDates, obArgs := f.dateRange("ob.created_at")
	rentDates, rentArgs := f.dateRange("r.created_at")
	payDates, payArgs := f.dateRange("p.payment_date")

	query := `SELECT s.id AS shop_id, s.shop_no AS shop_no, COALESCE(t.name, '') AS tenant_name,
	COALESCE((SELECT SUM(ob.opening_balance) FROM opening_balances ob WHERE ob.shop_id = s.id` + obDates + `), 0) AS opening_balance_total,
	(SELECT COUNT(*) FROM opening_balances ob WHERE ob.shop_id = s.id AND NOT ` + OpeningBalancePaidExpr("ob") + obDates + `) AS unpaid_ob_count,
	COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.shop_id = s.id AND p.ob_financial_year IS NULL` + payDates + `), 0) AS paid_amount,
	COALESCE((SELECT SUM(r.final_rent) FROM rents r WHERE r.shop_id = s.id AND NOT ` + RentPaidExpr("r") + rentDates + `), 0) AS unpaid_rent,
	COALESCE((SELECT SUM(ob.opening_balance) FROM opening_balances ob WHERE ob.shop_id = s.id AND NOT ` + OpeningBalancePaidExpr("ob") + obDates + `), 0) AS unpaid_ob
FROM shops s
LEFT JOIN tenants t ON t.id = s.tenant_id
WHERE 1 = 1`

	var args []any
	args = append(args, obArgs...)
	args = append(args, obArgs...)
	args = append(args, payArgs...)
	args = append(args, rentArgs...)
	args = append(args, obArgs...)

	if f.ShopID != 0 {
		query += " AND s.id = ?"
		args = append(args, f.ShopID)
	}
	if f.ShopNo != "" {
		query += " AND s.shop_no = ?"
		args = append(args, f.ShopNo)
	}
	query += " ORDER BY s.shop_no ASC"

	var rows []summaryRow
	if err := db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("shop summaries: %w", err)
	}

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		status := StatusPaid
		if r.UnpaidObCount > 0 {
			status = StatusPending
		}
		out = append(out, Summary{
			ShopID:               r.ShopID,
			ShopNo:               r.ShopNo,
			TenantName:           r.TenantName,
			OpeningBalanceTotal:  r.OpeningBalanceTotal,
			OpeningBalanceStatus: status,
			PaidAmount:           r.PaidAmount,
			RemainingAmount:      r.UnpaidRent.Add(r.UnpaidOb),
		})
	}
	return out, nil
}

// ShopSummary returns the summary of a single shop.
func ShopSummary(db *gorm.DB, shopID uint) (Summary, error) {
	rows, err := Summaries(db, SummaryFilter{ShopID: shopID})
	if err != nil {
		return Summary{}, err
	}
	if len(rows) == 0 {
		return Summary{}, ErrShopNotFound
	}
	return rows[0], nil
}

// Totals adds up a set of summaries.
type Totals struct {
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Paid           decimal.Decimal `json:"paid_amount"`
	Remaining      decimal.Decimal `json:"remaining_amount"`
}

func Total(rows []Summary) Totals {
	var t Totals
	for _, r := range rows {
		t.OpeningBalance = t.OpeningBalance.Add(r.OpeningBalanceTotal)
		t.Paid = t.Paid.Add(r.PaidAmount)
		t.Remaining = t.Remaining.Add(r.RemainingAmount)
	}
	return t
}
