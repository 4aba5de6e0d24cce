package admin

import (
	"fmt"
	"strings"

	"kiramate-backend/internal/apierr"
	"kiramate-backend/internal/applog"
	"kiramate-backend/internal/audit"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/storage"
	"kiramate-backend/internal/validation"
	"kiramate-backend/internal/views"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Logos are shrunk to fit the receipt letterhead.
const (
	LogoMaxWidth  = 400
	LogoMaxHeight = 200
)

type SettingsRequest struct {
	CompanyName    string `json:"company_name" form:"company_name" validate:"required,max=255" label:"Company name"`
	CompanyAddress string `json:"company_address" form:"company_address" validate:"required,max=1000" label:"Company address"`
}

type SettingsResponse struct {
	CompanyName    string  `json:"company_name"`
	CompanyAddress string  `json:"company_address"`
	CompanyLogo    string  `json:"company_logo"`
	LogoURL        *string `json:"logo_url"`
}

func newSettingsResponse(s map[string]string) SettingsResponse {
	resp := SettingsResponse{
		CompanyName:    s[models.SettingCompanyName],
		CompanyAddress: s[models.SettingCompanyAddress],
		CompanyLogo:    s[models.SettingCompanyLogo],
	}
	if resp.CompanyLogo != "" && resp.CompanyLogo != models.DefaultCompanyLogo {
		url := views.LogoURLPrefix + resp.CompanyLogo
		resp.LogoURL = &url
	}
	return resp
}

// GET /api/admin/settings
func GetSettingsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		settings, err := database.Settings(database.DB)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		return c.JSON(newSettingsResponse(settings))
	}
}

// PUT /api/admin/settings (multipart, optional file "company_logo")
func UpdateSettingsHandler(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SettingsRequest
		if err := c.BodyParser(&body); err != nil {
			return apierr.InvalidBody
		}
		body.CompanyName = strings.TrimSpace(body.CompanyName)
		body.CompanyAddress = strings.TrimSpace(body.CompanyAddress)
		if err := validation.Struct(body); err != nil {
			return err
		}

		headers, err := storage.FormFiles(c, "company_logo")
		if err != nil {
			return err
		}
		if len(headers) > 1 {
			return validation.New("Only one company logo can be uploaded")
		}

		before, err := database.Settings(database.DB)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		after := map[string]string{
			models.SettingCompanyName:    body.CompanyName,
			models.SettingCompanyAddress: body.CompanyAddress,
			models.SettingCompanyLogo:    before[models.SettingCompanyLogo],
		}

		batch := store.NewBatch(storage.Company)
		defer batch.Discard()
		if len(headers) == 1 {
			logo, err := batch.Stage(headers[0], storage.LogoTypes)
			if err != nil {
				return err
			}
			if err := batch.FitImage(logo, LogoMaxWidth, LogoMaxHeight); err != nil {
				return err
			}
			after[models.SettingCompanyLogo] = logo.RelPath("")
			if old := before[models.SettingCompanyLogo]; old != models.DefaultCompanyLogo {
				batch.RemoveOnPromote(old)
			}
		}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			for key, value := range after {
				var row models.SystemSetting
				if err := tx.Where(models.SystemSetting{SettingKey: key}).
					Assign(models.SystemSetting{SettingValue: value}).
					FirstOrCreate(&row).Error; err != nil {
					return fmt.Errorf("save setting %s: %w", key, err)
				}
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntitySettings,
				Action:      models.AuditActionUpdate,
				Description: "Company settings updated",
				Before:      before,
				After:       after,
			})
		})
		if err != nil {
			return err
		}
		if err := batch.Promote(""); err != nil {
			applog.Errorf("[SETTINGS] company_logo saved as %s but file not stored: %v", after[models.SettingCompanyLogo], err)
			return err
		}
		return c.JSON(newSettingsResponse(after))
	}
}
