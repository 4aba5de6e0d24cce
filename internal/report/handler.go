package report

import (
	"fmt"
	"time"

	"kiramate-backend/internal/database"
	"kiramate-backend/internal/pagination"

	"github.com/gofiber/fiber/v2"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GET /api/reports?report_type=rents&status=pending&sort_by=final_rent&sort_order=desc&page=2
// GET /api/reports?report_type=payments&format=xlsx
func ReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := ParseFilter(c)
		sortBy, order := Defaults(f.Type)
		p := pagination.Parse(c, sortBy, order, pagination.ReportOpts)

		export := c.Query("format") == "xlsx"
		if export {
			p.Page, p.PerPage = 1, ExportLimit
		}

		r, err := Build(database.DB, f, p)
		if err != nil {
			return err
		}
		if !export {
			return c.JSON(r)
		}

		buf, err := WriteXLSX(r)
		if err != nil {
			return fmt.Errorf("export %s report: %w", f.Type, err)
		}
		name := fmt.Sprintf("%s_report_%s.xlsx", f.Type, time.Now().Format(time.DateOnly))
		c.Set(fiber.HeaderContentType, xlsxMIME)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
		return c.Send(buf.Bytes())
	}
}
