// Package report builds the filtered, sorted and paginated reports of the
// reports page and their Excel export.
package report

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	TypePayments        = "payments"
	TypeRents           = "rents"
	TypeTenants         = "tenants"
	TypeShops           = "shops"
	TypeOpeningBalances = "opening_balances"
	TypeSummary         = "summary"
)

var Types = []string{TypePayments, TypeRents, TypeTenants, TypeShops, TypeOpeningBalances, TypeSummary}

var (
	shopNoRe     = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	tenantNameRe = regexp.MustCompile(`^[A-Za-z\s]+$`)
)

// Filter holds the report query. Values that fail validation are dropped
// instead of rejected, so a bad bookmark still shows a report.
type Filter struct {
	Type       string
	From       *time.Time
	To         *time.Time
	ShopNo     string
	TenantName string
	Status     string // paid | pending | ""
}

func ParseFilter(c *fiber.Ctx) Filter {
	f := Filter{Type: c.Query("report_type", TypePayments)}
	if !slices.Contains(Types, f.Type) {
		f.Type = TypePayments
	}
	f.From = parseDate(c.Query("from_date"))
	f.To = parseDate(c.Query("to_date"))
	if s := strings.TrimSpace(c.Query("shop_no")); shopNoRe.MatchString(s) {
		f.ShopNo = s
	}
	if s := strings.TrimSpace(c.Query("tenant_name")); tenantNameRe.MatchString(s) {
		f.TenantName = s
	}
	if s := c.Query("status"); s == "paid" || s == "pending" {
		f.Status = s
	}
	return f
}

func parseDate(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

var typeNames = map[string]string{
	TypePayments:        "Payments",
	TypeRents:           "Rents",
	TypeTenants:         "Tenants",
	TypeShops:           "Shops",
	TypeOpeningBalances: "Opening Balances",
	TypeSummary:         "Summary",
}

// Heading describes the report, e.g.
// "Rents Report for Shop No A-1 (From 2024-01-01 To 2024-03-31) (Payment Pending)".
func (f Filter) Heading() string {
	parts := []string{typeNames[f.Type] + " Report"}
	if f.ShopNo != "" {
		parts = append(parts, "for Shop No "+f.ShopNo)
	}
	if f.TenantName != "" {
		parts = append(parts, "for Tenant "+f.TenantName)
	}
	switch {
	case f.From != nil && f.To != nil:
		parts = append(parts, "(From "+f.From.Format(time.DateOnly)+" To "+f.To.Format(time.DateOnly)+")")
	case f.From != nil:
		parts = append(parts, "(From "+f.From.Format(time.DateOnly)+")")
	case f.To != nil:
		parts = append(parts, "(To "+f.To.Format(time.DateOnly)+")")
	}
	switch f.Status {
	case "paid":
		parts = append(parts, "(Payment Done)")
	case "pending":
		parts = append(parts, "(Payment Pending)")
	}
	return strings.Join(parts, " ")
}

// dateRange appends inclusive from/to conditions on col. To covers the
// whole day.
func (f Filter) dateRange(col string) (string, []any) {
	var conds []string
	var args []any
	if f.From != nil {
		conds = append(conds, col+" >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		conds = append(conds, col+" < ?")
		args = append(args, f.To.AddDate(0, 0, 1))
	}
	return strings.Join(conds, " AND "), args
}
