package report_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"kiramate-backend/internal/apitest"
	"kiramate-backend/internal/config"
	"kiramate-backend/internal/database/dbtest"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/report"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type fixture struct {
	app  *fiber.App
	cfg  *config.Config
	db   *gorm.DB
	user models.User
}

// setup seeds two shops: A-1 (Ravi, rents Jan paid and Feb pending) and
// B-1 (Sita, one unpaid opening balance).
func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.UseGlobal(t)
	cfg := apitest.Config(t)
	app := apitest.NewApp(cfg)
	app.Get("/api/reports", report.Limiter(cfg.ReportRateLimit, cfg.ReportRateWindow), report.ReportHandler())

	ravi := dbtest.Tenant(t, db, "Ravi Kumar", 1)
	sita := dbtest.Tenant(t, db, "Sita Devi", 2)
	a1 := dbtest.Shop(t, db, "A-1", ravi.ID)
	b1 := dbtest.Shop(t, db, "B-1", sita.ID)
	dbtest.Rent(t, db, a1.ID, 2024, 1, 10000)
	dbtest.Rent(t, db, a1.ID, 2024, 2, 11000)
	dbtest.RentPayment(t, db, a1.ID, 2024, 1, 10000)
	dbtest.OpeningBalance(t, db, b1.ID, "2023 to 2024", 4000)

	return fixture{app: app, cfg: cfg, db: db, user: apitest.CreateUser(t, db, "clerk", models.RoleUser)}
}

func (f fixture) get(t *testing.T, path string) map[string]any {
	t.Helper()
	resp, body := apitest.Do(t, f.app, f.cfg, f.user, httptest.NewRequest("GET", path, nil))
	require.Equal(t, 200, resp.StatusCode, body)
	return body
}

func rows(body map[string]any) []map[string]any {
	raw := body["rows"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.(map[string]any))
	}
	return out
}

func TestRentsReportStatusAndSort(t *testing.T) {
	f := setup(t)

	body := f.get(t, "/api/reports?report_type=rents")
	rs := rows(body)
	require.Len(t, rs, 2)
	assert.Equal(t, "February 2024", rs[0]["rent_month"])
	assert.Equal(t, "Pending", rs[0]["status"])
	assert.Equal(t, "Paid", rs[1]["status"])

	body = f.get(t, "/api/reports?report_type=rents&status=pending")
	rs = rows(body)
	require.Len(t, rs, 1)
	assert.Equal(t, "11000", rs[0]["final_rent"])
	assert.Equal(t, "Rents Report (Payment Pending)", body["heading"])

	body = f.get(t, "/api/reports?report_type=rents&sort_by=final_rent&sort_order=asc")
	assert.Equal(t, "10000", rows(body)[0]["final_rent"])

	// Keys outside the whitelist fall back to the default order.
	body = f.get(t, "/api/reports?report_type=rents&sort_by=final_rent;DROP%20TABLE%20rents&sort_order=asc")
	assert.Equal(t, "January 2024", rows(body)[0]["rent_month"])
}

func TestPaymentsReportFilters(t *testing.T) {
	f := setup(t)

	body := f.get(t, "/api/reports?report_type=payments&from_date=2024-01-01&to_date=2024-01-31")
	rs := rows(body)
	require.Len(t, rs, 1)
	assert.Equal(t, "January 2024", rs[0]["rent_month"])
	assert.Equal(t, "10 Jan 2024", rs[0]["payment_date"])
	assert.Equal(t, "Payments Report (From 2024-01-01 To 2024-01-31)", body["heading"])

	body = f.get(t, "/api/reports?report_type=payments&from_date=2024-02-01")
	assert.Empty(t, rows(body))

	// Invalid filter values are ignored rather than rejected.
	body = f.get(t, "/api/reports?report_type=payments&from_date=yesterday&shop_no=A%201&tenant_name=R2")
	assert.Len(t, rows(body), 1)
	assert.Equal(t, "Payments Report", body["heading"])

	body = f.get(t, "/api/reports?report_type=nonsense")
	assert.Equal(t, "payments", body["report_type"])
}

func TestTenantsAndShopsReports(t *testing.T) {
	f := setup(t)

	rs := rows(f.get(t, "/api/reports?report_type=tenants&tenant_name=sita"))
	require.Len(t, rs, 1)
	assert.Equal(t, "Sita Devi", rs[0]["name"])

	rs = rows(f.get(t, "/api/reports?report_type=shops&sort_by=shop_no&sort_order=desc"))
	require.Len(t, rs, 2)
	assert.Equal(t, "B-1", rs[0]["shop_no"])
	assert.Equal(t, "01 Jan 2020", rs[0]["agreement_start_date"])
}

func TestOpeningBalancesAndSummaryReports(t *testing.T) {
	f := setup(t)

	rs := rows(f.get(t, "/api/reports?report_type=opening_balances&status=pending"))
	require.Len(t, rs, 1)
	assert.Equal(t, "Sita Devi", rs[0]["tenant_name"])

	body := f.get(t, "/api/reports?report_type=summary&sort_by=remaining_amount&sort_order=desc")
	rs = rows(body)
	require.Len(t, rs, 2)
	assert.Equal(t, "A-1", rs[0]["shop_no"])
	assert.Equal(t, "11000", rs[0]["remaining_amount"])
	assert.Equal(t, "4000", rs[1]["remaining_amount"])
	totals := body["totals"].(map[string]any)
	assert.Equal(t, "15000", totals["remaining_amount"])
}

func TestReportPagination(t *testing.T) {
	f := setup(t)
	shop := dbtest.Shop(t, f.db, "C-1", 0)
	for m := 1; m <= 12; m++ {
		dbtest.Rent(t, f.db, shop.ID, 2023, m, 1000)
		dbtest.Rent(t, f.db, shop.ID, 2022, m, 1000)
		dbtest.Rent(t, f.db, shop.ID, 2021, m, 1000)
		dbtest.Rent(t, f.db, shop.ID, 2020, m, 1000)
		dbtest.Rent(t, f.db, shop.ID, 2019, m, 1000)
	}

	body := f.get(t, "/api/reports?report_type=rents&page=2&per_page=500")
	meta := body["meta"].(map[string]any)
	assert.EqualValues(t, 50, meta["per_page"])
	assert.EqualValues(t, 62, meta["total"])
	assert.Len(t, rows(body), 12)
}

func TestReportExcelExport(t *testing.T) {
	f := setup(t)

	resp, _ := apitest.Do(t, f.app, f.cfg, f.user,
		httptest.NewRequest("GET", "/api/reports?report_type=summary&format=xlsx", nil))
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition),
		"summary_report_"+time.Now().Format(time.DateOnly)+".xlsx")

	book, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer book.Close()

	sheetRows, err := book.GetRows("Summary Report")
	require.NoError(t, err)
	require.Len(t, sheetRows, 6)
	assert.Equal(t, "Summary Report", sheetRows[0][0])
	assert.Equal(t, []string{"Shop No", "Tenant", "Opening Balance", "Remaining Amount", "Paid Amount"}, sheetRows[2])
	assert.Equal(t, "A-1", sheetRows[3][0])
	assert.Equal(t, "Total", sheetRows[5][0])
}

func TestReportRateLimit(t *testing.T) {
	f := setup(t)
	f.cfg.ReportRateLimit = 2
	app := apitest.NewApp(f.cfg)
	app.Get("/api/reports", report.Limiter(f.cfg.ReportRateLimit, time.Minute), report.ReportHandler())

	for i := 0; i < 2; i++ {
		resp, _ := apitest.Do(t, app, f.cfg, f.user, httptest.NewRequest("GET", "/api/reports", nil))
		require.Equal(t, 200, resp.StatusCode)
	}
	resp, body := apitest.Do(t, app, f.cfg, f.user, httptest.NewRequest("GET", "/api/reports", nil))
	assert.Equal(t, 429, resp.StatusCode)
	assert.Contains(t, body["error"], "Too many report requests")
}

func TestFilterHeading(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := report.Filter{Type: report.TypeRents, ShopNo: "A-1", TenantName: "Ravi", From: &from, Status: "paid"}
	assert.Equal(t, "Rents Report for Shop No A-1 for Tenant Ravi (From 2024-01-01) (Payment Done)", f.Heading())
}
