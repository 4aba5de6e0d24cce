package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"kiramate-backend/internal/ledger"
	"kiramate-backend/internal/pagination"
	"kiramate-backend/internal/period"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExportLimit caps the rows written to one Excel export.
const ExportLimit = 10000

const (
	KindText   = "text"
	KindNumber = "number"
	KindDate   = "date"
)

type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

type Row map[string]any

type Report struct {
	Type    string          `json:"report_type"`
	Title   string          `json:"title"`
	Heading string          `json:"heading"`
	Columns []Column        `json:"columns"`
	Rows    []Row           `json:"rows"`
	Totals  *ledger.Totals  `json:"totals,omitempty"`
	Meta    pagination.Meta `json:"meta"`
}

type definition struct {
	title        string
	columns      []Column
	sorts        map[string]string
	defaultSort  string
	defaultOrder string
	build        func(db *gorm.DB, f Filter, p pagination.Params, def definition) (Report, error)
}

// Sort keys follow the column keys users click on; the values are the
// only SQL that reaches ORDER BY.
var definitions = map[string]definition{
	TypePayments: {
		title: "Payments Report",
		columns: []Column{
			{"shop_no", "Shop No", KindText},
			{"tenant_name", "Tenant", KindText},
			{"rent_month", "Rent Month", KindDate},
			{"amount", "Amount", KindNumber},
			{"payment_method", "Payment Method", KindText},
			{"payment_date", "Payment Date", KindDate},
		},
		sorts: map[string]string{
			"shop_no":        "s.shop_no",
			"tenant_name":    "t.name",
			"rent_year":      "p.rent_year",
			"rent_month":     "p.rent_month",
			"amount":         "p.amount",
			"payment_method": "p.payment_method",
			"payment_date":   "p.payment_date",
		},
		defaultSort:  "payment_date",
		defaultOrder: "desc",
		build:        buildPayments,
	},
	TypeRents: {
		title: "Rents Report",
		columns: []Column{
			{"shop_no", "Shop No", KindText},
			{"tenant_name", "Tenant", KindText},
			{"rent_month", "Rent Month", KindDate},
			{"calculated_rent", "Calculated Rent", KindNumber},
			{"penalty", "Penalty", KindNumber},
			{"amount_waved_off", "Amount Waved Off", KindNumber},
			{"final_rent", "Final Rent", KindNumber},
			{"status", "Status", KindText},
		},
		sorts: map[string]string{
			"period":           "(r.rent_year * 100 + r.rent_month)",
			"shop_no":          "s.shop_no",
			"tenant_name":      "t.name",
			"rent_year":        "r.rent_year",
			"rent_month":       "r.rent_month",
			"calculated_rent":  "r.calculated_rent",
			"penalty":          "r.penalty",
			"amount_waved_off": "r.amount_waved_off",
			"final_rent":       "r.final_rent",
		},
		defaultSort:  "period",
		defaultOrder: "desc",
		build:        buildRents,
	},
	TypeTenants: {
		title: "Tenants Report",
		columns: []Column{
			{"tenant_id", "Tenant ID", KindText},
			{"name", "Name", KindText},
			{"mobile", "Mobile", KindText},
			{"email", "Email", KindText},
			{"aadhaar_number", "Aadhaar Number", KindText},
			{"pancard_number", "PAN Card Number", KindText},
			{"address", "Address", KindText},
		},
		sorts: map[string]string{
			"tenant_id":      "tenant_id",
			"name":           "name",
			"mobile":         "mobile",
			"email":          "email",
			"aadhaar_number": "aadhaar_number",
			"pancard_number": "pancard_number",
		},
		defaultSort:  "name",
		defaultOrder: "asc",
		build:        buildTenants,
	},
	TypeShops: {
		title: "Shops Report",
		columns: []Column{
			{"shop_no", "Shop No", KindText},
			{"location", "Location", KindText},
			{"tenant_name", "Tenant", KindText},
			{"agreement_start_date", "Agreement Start", KindDate},
			{"agreement_end_date", "Agreement End", KindDate},
			{"base_rent", "Base Rent", KindNumber},
			{"rent_increment_percent", "Increment %", KindNumber},
			{"increment_duration_years", "Increment Every (Years)", KindNumber},
		},
		sorts: map[string]string{
			"shop_no":                  "s.shop_no",
			"location":                 "s.location",
			"tenant_name":              "t.name",
			"agreement_start_date":     "s.agreement_start_date",
			"agreement_end_date":       "s.agreement_end_date",
			"base_rent":                "s.base_rent",
			"rent_increment_percent":   "s.rent_increment_percent",
			"increment_duration_years": "s.increment_duration_years",
		},
		defaultSort:  "shop_no",
		defaultOrder: "asc",
		build:        buildShops,
	},
	TypeOpeningBalances: {
		title: "Opening Balances Report",
		columns: []Column{
			{"shop_no", "Shop No", KindText},
			{"tenant_name", "Tenant", KindText},
			{"opening_balance", "Opening Balance", KindNumber},
			{"financial_year", "Financial Year", KindText},
			{"status", "Status", KindText},
		},
		sorts: map[string]string{
			"shop_no":         "s.shop_no",
			"tenant_name":     "t.name",
			"opening_balance": "ob.opening_balance",
			"financial_year":  "ob.financial_year",
		},
		defaultSort:  "financial_year",
		defaultOrder: "desc",
		build:        buildOpeningBalances,
	},
	TypeSummary: {
		title: "Summary Report",
		columns: []Column{
			{"shop_no", "Shop No", KindText},
			{"tenant_name", "Tenant", KindText},
			{"opening_balance", "Opening Balance", KindNumber},
			{"remaining_amount", "Remaining Amount", KindNumber},
			{"paid_amount", "Paid Amount", KindNumber},
		},
		sorts: map[string]string{
			"shop_no":          "shop_no",
			"tenant_name":      "tenant_name",
			"opening_balance":  "opening_balance",
			"remaining_amount": "remaining_amount",
			"paid_amount":      "paid_amount",
		},
		defaultSort:  "shop_no",
		defaultOrder: "asc",
		build:        buildSummary,
	},
}

// Defaults returns the default sort key and order of a report type.
func Defaults(reportType string) (string, string) {
	d := definitions[reportType]
	return d.defaultSort, d.defaultOrder
}

// Build runs the report f.Type for page p.
func Build(db *gorm.DB, f Filter, p pagination.Params) (Report, error) {
	def, ok := definitions[f.Type]
	if !ok {
		return Report{}, fmt.Errorf("unknown report type %q", f.Type)
	}
	r, err := def.build(db, f, p, def)
	if err != nil {
		return Report{}, fmt.Errorf("%s report: %w", f.Type, err)
	}
	r.Type = f.Type
	r.Title = def.title
	r.Heading = f.Heading()
	r.Columns = def.columns
	if r.Rows == nil {
		r.Rows = []Row{}
	}
	return r, nil
}

// fetch counts q, then scans page p of it ordered by order.
func fetch(q *gorm.DB, columns, order string, p pagination.Params, dst any) (pagination.Meta, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return pagination.Meta{}, err
	}
	if err := q.Select(columns).Order(order).Limit(p.Limit()).Offset(p.Offset()).Scan(dst).Error; err != nil {
		return pagination.Meta{}, err
	}
	return pagination.BuildMeta(total, p), nil
}

func where(q *gorm.DB, cond string, args []any) *gorm.DB {
	if cond == "" {
		return q
	}
	return q.Where(cond, args...)
}

func nameLike(q *gorm.DB, col, name string) *gorm.DB {
	if name == "" {
		return q
	}
	return q.Where("LOWER("+col+") LIKE ?", "%"+strings.ToLower(name)+"%")
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func paidStatus(paid bool) string {
	if paid {
		return ledger.StatusPaid
	}
	return ledger.StatusPending
}

func monthLabel(year, month int) string {
	return period.NewMonth(year, time.Month(month)).Label()
}

const displayDate = "02 Jan 2006"

func buildPayments(db *gorm.DB, f Filter, p pagination.Params, def definition) (Report, error) {
	q := db.Table("payments p").
		Joins("JOIN shops s ON s.id = p.shop_id").
		Joins("LEFT JOIN tenants t ON t.id = s.tenant_id")
	if f.ShopNo != "" {
		q = q.Where("s.shop_no = ?", f.ShopNo)
	}
	q = nameLike(q, "t.name", f.TenantName)
	cond, args := f.dateRange("p.payment_date")
	q = where(q, cond, args)

	var rows []struct {
		ShopNo          string
		TenantName      *string
		RentYear        *int
		RentMonth       *int
		OBFinancialYear *string `gorm:"column:ob_financial_year"`
		Amount          decimal.Decimal
		PaymentMethod   string
		PaymentDate     time.Time
	}
	meta, err := fetch(q,
		"s.shop_no, t.name AS tenant_name, p.rent_year, p.rent_month, p.ob_financial_year, p.amount, p.payment_method, p.payment_date",
		p.OrderClause(def.sorts, def.defaultSort)+", p.id DESC", p, &rows)
	if err != nil {
		return Report{}, err
	}

	out := Report{Meta: meta, Rows: make([]Row, 0, len(rows))}
	for _, r := range rows {
		of := ""
		switch {
		case r.OBFinancialYear != nil:
			of = fmt.Sprintf("Opening Balance (FY %s)", *r.OBFinancialYear)
		case r.RentYear != nil && r.RentMonth != nil:
			of = monthLabel(*r.RentYear, *r.RentMonth)
		}
		out.Rows = append(out.Rows, Row{
			"shop_no":        r.ShopNo,
			"tenant_name":    str(r.TenantName),
			"rent_month":     of,
			"amount":         r.Amount,
			"payment_method": r.PaymentMethod,
			"payment_date":   r.PaymentDate.Format(displayDate),
		})
	}
	return out, nil
}

func buildRents(db *gorm.DB, f Filter, p pagination.Params, def definition) (Report, error) {
	q := db.Table("rents r").
		Joins("JOIN shops s ON s.id = r.shop_id").
		Joins("LEFT JOIN tenants t ON t.id = s.tenant_id")
	if f.ShopNo != "" {
		q = q.Where("s.shop_no = ?", f.ShopNo)
	}
	q = nameLike(q, "t.name", f.TenantName)
	cond, args := f.dateRange("r.created_at")
	q = where(q, cond, args)
	switch f.Status {
	case "paid":
		q = q.Where(ledger.RentPaidExpr("r"))
	case "pending":
		q = q.Where("NOT " + ledger.RentPaidExpr("r"))
	}

	var rows []struct {
		ShopNo         string
		TenantName     *string
		RentYear       int
		RentMonth      int
		CalculatedRent decimal.Decimal
		Penalty        decimal.Decimal
		AmountWavedOff decimal.Decimal
		FinalRent      decimal.Decimal
		Paid           bool
	}
	meta, err := fetch(q,
		"s.shop_no, t.name AS tenant_name, r.rent_year, r.rent_month, r.calculated_rent, r.penalty, "+
			"r.amount_waved_off, r.final_rent, "+ledger.RentPaidExpr("r")+" AS paid",
		p.OrderClause(def.sorts, def.defaultSort)+", s.shop_no ASC", p, &rows)
	if err != nil {
		return Report{}, err
	}

	out := Report{Meta: meta, Rows: make([]Row, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, Row{
			"shop_no":          r.ShopNo,
			"tenant_name":      str(r.TenantName),
			"rent_month":       monthLabel(r.RentYear, r.RentMonth),
			"calculated_rent":  r.CalculatedRent,
			"penalty":          r.Penalty,
			"amount_waved_off": r.AmountWavedOff,
			"final_rent":       r.FinalRent,
			"status":           paidStatus(r.Paid),
		})
	}
	return out, nil
}

func buildTenants(db *gorm.DB, f Filter, p pagination.Params, def definition) (Report, error) {
	q := nameLike(db.Table("tenants"), "name", f.TenantName)
	cond, args := f.dateRange("created_at")
	q = where(q, cond, args)
	if f.ShopNo != "" {
		q = q.Where("id IN (?)", db.Table("shops").Select("tenant_id").Where("shop_no = ?", f.ShopNo))
	}

	var rows []struct {
		TenantID      string
		Name          string
		Mobile        string
		Email         *string
		AadhaarNumber *string
		PancardNumber *string
		Address       string
	}
	meta, err := fetch(q,
		"tenant_id, name, mobile, email, aadhaar_number, pancard_number, address",
		p.OrderClause(def.sorts, def.defaultSort)+", id ASC", p, &rows)
	if err != nil {
		return Report{}, err
	}

	out := Report{Meta: meta, Rows: make([]Row, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, Row{
			"tenant_id":      r.TenantID,
			"name":           r.Name,
			"mobile":         r.Mobile,
			"email":          str(r.Email),
			"aadhaar_number": str(r.AadhaarNumber),
			"pancard_number": str(r.PancardNumber),
			"address":        r.Address,
		})
	}
	return out, nil
}

func buildShops(db *gorm.DB, f Filter, p pagination.Params, def definition) (Report, error) {
	q := db.Table("shops s").Joins("LEFT JOIN tenants t ON t.id = s.tenant_id")
	if f.ShopNo != "" {
		q = q.Where("s.shop_no = ?", f.ShopNo)
	}
	q = nameLike(q, "t.name", f.TenantName)

	var rows []struct {
		ShopNo                 string
		Location               string
		TenantName             *string
		AgreementStartDate     time.Time
		AgreementEndDate       time.Time
		BaseRent               decimal.Decimal
		RentIncrementPercent   decimal.Decimal
		IncrementDurationYears int
	}
	meta, err := fetch(q,
		"s.shop_no, s.location, t.name AS tenant_name, s.agreement_start_date, s.agreement_end_date, "+
			"s.base_rent, s.rent_increment_percent, s.increment_duration_years",
		p.OrderClause(def.sorts, def.defaultSort)+", s.id ASC", p, &rows)
	if err != nil {
		return Report{}, err
	}

	out := Report{Meta: meta, Rows: make([]Row, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, Row{
			"shop_no":                  r.ShopNo,
			"location":                 r.Location,
			"tenant_name":              str(r.TenantName),
			"agreement_start_date":     r.AgreementStartDate.Format(displayDate),
			"agreement_end_date":       r.AgreementEndDate.Format(displayDate),
			"base_rent":                r.BaseRent,
			"rent_increment_percent":   r.RentIncrementPercent,
			"increment_duration_years": r.IncrementDurationYears,
		})
	}
	return out, nil
}

func buildOpeningBalances(db *gorm.DB, f Filter, p pagination.Params, def definition) (Report, error) {
	q := db.Table("opening_balances ob").
		Joins("JOIN shops s ON s.id = ob.shop_id").
		Joins("LEFT JOIN tenants t ON t.id = ob.tenant_id")
	if f.ShopNo != "" {
		q = q.Where("s.shop_no = ?", f.ShopNo)
	}
	q = nameLike(q, "t.name", f.TenantName)
	cond, args := f.dateRange("ob.created_at")
	q = where(q, cond, args)
	switch f.Status {
	case "paid":
		q = q.Where(ledger.OpeningBalancePaidExpr("ob"))
	case "pending":
		q = q.Where("NOT " + ledger.OpeningBalancePaidExpr("ob"))
	}

	var rows []struct {
		ShopNo        string
		TenantName    *string
		Amount        decimal.Decimal
		FinancialYear string
		Paid          bool
	}
	meta, err := fetch(q,
		"s.shop_no, t.name AS tenant_name, ob.opening_balance AS amount, ob.financial_year, "+
			ledger.OpeningBalancePaidExpr("ob")+" AS paid",
		p.OrderClause(def.sorts, def.defaultSort)+", s.shop_no ASC", p, &rows)
	if err != nil {
		return Report{}, err
	}

	out := Report{Meta: meta, Rows: make([]Row, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, Row{
			"shop_no":         r.ShopNo,
			"tenant_name":     str(r.TenantName),
			"opening_balance": r.Amount,
			"financial_year":  r.FinancialYear,
			"status":          paidStatus(r.Paid),
		})
	}
	return out, nil
}

// buildSummary sorts and pages in memory; there is one row per shop.
func buildSummary(db *gorm.DB, f Filter, p pagination.Params, def definition) (Report, error) {
	all, err := ledger.Summaries(db, ledger.SummaryFilter{ShopNo: f.ShopNo, From: f.From, To: f.To})
	if err != nil {
		return Report{}, err
	}
	if f.TenantName != "" {
		needle := strings.ToLower(f.TenantName)
		all = slices.DeleteFunc(all, func(s ledger.Summary) bool {
			return !strings.Contains(strings.ToLower(s.TenantName), needle)
		})
	}

	key := p.SortKey(def.sorts, def.defaultSort)
	slices.SortStableFunc(all, func(a, b ledger.Summary) int {
		var c int
		switch key {
		case "tenant_name":
			c = cmp.Compare(a.TenantName, b.TenantName)
		case "opening_balance":
			c = a.OpeningBalanceTotal.Cmp(b.OpeningBalanceTotal)
		case "remaining_amount":
			c = a.RemainingAmount.Cmp(b.RemainingAmount)
		case "paid_amount":
			c = a.PaidAmount.Cmp(b.PaidAmount)
		default:
			c = cmp.Compare(a.ShopNo, b.ShopNo)
		}
		if p.SortOrder == "desc" {
			return -c
		}
		return c
	})

	totals := ledger.Total(all)
	out := Report{Meta: pagination.BuildMeta(int64(len(all)), p), Totals: &totals}
	start := min(p.Offset(), len(all))
	end := min(start+p.Limit(), len(all))
	for _, s := range all[start:end] {
		out.Rows = append(out.Rows, Row{
			"shop_no":          s.ShopNo,
			"tenant_name":      s.TenantName,
			"opening_balance":  s.OpeningBalanceTotal,
			"remaining_amount": s.RemainingAmount,
			"paid_amount":      s.PaidAmount,
		})
	}
	return out, nil
}
