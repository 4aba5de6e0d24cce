package database

import (
	"errors"

	"kiramate-backend/internal/models"

	"gorm.io/gorm"
)

var defaultSettings = map[string]string{
	models.SettingCompanyName:    "Company Name",
	models.SettingCompanyAddress: "Company Address",
	models.SettingCompanyLogo:    models.DefaultCompanyLogo,
}

// SeedSettings inserts the letterhead settings that are missing.
func SeedSettings(db *gorm.DB) error {
	for key, value := range defaultSettings {
		var existing models.SystemSetting
		err := db.Where("setting_key = ?", key).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&models.SystemSetting{SettingKey: key, SettingValue: value}).Error; err != nil {
			return err
		}
	}
	return nil
}

// Settings returns all settings as a key/value map, with defaults for
// missing keys.
func Settings(db *gorm.DB) (map[string]string, error) {
	var rows []models.SystemSetting
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(defaultSettings))
	for k, v := range defaultSettings {
		out[k] = v
	}
	for _, r := range rows {
		out[r.SettingKey] = r.SettingValue
	}
	return out, nil
}
