package pagination

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentSorts = map[string]string{
	"payment_date": "p.payment_date",
	"amount":       "p.amount",
	"shop_no":      "s.shop_no",
}

func parseQuery(t *testing.T, query string, opt Options) Params {
	t.Helper()
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(Parse(c, "payment_date", "desc", opt))
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/?"+query, nil))
	require.NoError(t, err)
	var p Params
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	return p
}

func TestParseDefaults(t *testing.T) {
	p := parseQuery(t, "", ReportOpts)
	assert.Equal(t, Params{Page: 1, PerPage: 50, SortBy: "payment_date", SortOrder: "desc"}, p)
	assert.Equal(t, 0, p.Offset())
}

func TestParseClampsAndNormalizes(t *testing.T) {
	p := parseQuery(t, "page=3&per_page=500&sort_by=amount&sort_order=ASC", ReportOpts)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.Limit())
	assert.Equal(t, 100, p.Offset())
	assert.Equal(t, "asc", p.SortOrder)

	p = parseQuery(t, "page=-2&per_page=abc&order=sideways", ListOpts)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 50, p.PerPage)
	assert.Equal(t, "desc", p.SortOrder)
}

func TestOrderClauseUsesWhitelist(t *testing.T) {
	p := Params{SortBy: "amount", SortOrder: "asc"}
	assert.Equal(t, "p.amount ASC", p.OrderClause(paymentSorts, "payment_date"))
	assert.Equal(t, "amount", p.SortKey(paymentSorts, "payment_date"))

	p = Params{SortBy: "amount; DROP TABLE payments", SortOrder: "desc"}
	assert.Equal(t, "p.payment_date DESC", p.OrderClause(paymentSorts, "payment_date"))
	assert.Equal(t, "payment_date", p.SortKey(paymentSorts, "payment_date"))
}

func TestBuildMeta(t *testing.T) {
	m := BuildMeta(101, Params{Page: 2, PerPage: 50})
	assert.Equal(t, 3, m.TotalPages)
	assert.True(t, m.HasNext)
	assert.True(t, m.HasPrev)

	m = BuildMeta(0, Params{Page: 1, PerPage: 50})
	assert.Equal(t, 0, m.TotalPages)
	assert.False(t, m.HasNext)
	assert.False(t, m.HasPrev)
}
