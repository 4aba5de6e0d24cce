// Package views renders the printable receipts.
package views

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"kiramate-backend/internal/database"
	"kiramate-backend/internal/models"

	"github.com/gofiber/template/html/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

//go:embed templates/*.html
var files embed.FS

// LogoURLPrefix is where the company directory of UPLOAD_DIR is served.
const LogoURLPrefix = "/uploads/company/"

func Engine() *html.Engine {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("money", Money)
	engine.AddFunc("whole", Whole)
	engine.AddFunc("date", Date)
	return engine
}

// Letterhead is the company block printed at the top of every receipt.
type Letterhead struct {
	CompanyName  string
	AddressLines []string
	LogoURL      string // empty while the default logo is configured
}

func LoadLetterhead(db *gorm.DB) (Letterhead, error) {
	settings, err := database.Settings(db)
	if err != nil {
		return Letterhead{}, err
	}
	lh := Letterhead{
		CompanyName:  settings[models.SettingCompanyName],
		AddressLines: strings.Split(strings.ReplaceAll(settings[models.SettingCompanyAddress], "\r\n", "\n"), "\n"),
	}
	if logo := settings[models.SettingCompanyLogo]; logo != "" && logo != models.DefaultCompanyLogo {
		lh.LogoURL = LogoURLPrefix + logo
	}
	return lh, nil
}

type PaymentReceipt struct {
	Letterhead
	GeneratedOn   time.Time
	ShopNo        string
	TenantName    string
	RentOf        string
	PaymentDate   time.Time
	PaymentMethod string
	Amount        decimal.Decimal
}

type RentReceipt struct {
	Letterhead
	GeneratedOn time.Time
	ShopNo      string
	TenantName  string
	RentOf      string
	Penalty     decimal.Decimal
	WavedOff    decimal.Decimal
	RentAmount  decimal.Decimal
}

// Money renders 12345.5 as "12,345.50".
func Money(d decimal.Decimal) string {
	return group(d.StringFixed(2))
}

// Whole renders 12345.5 as "12,346".
func Whole(d decimal.Decimal) string {
	return group(d.Round(0).StringFixed(0))
}

func Date(t time.Time) string {
	return t.Format("02-01-2006")
}

func group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}
