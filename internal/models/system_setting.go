package models

import "time"

const (
	SettingCompanyName    = "company_name"
	SettingCompanyAddress = "company_address"
	SettingCompanyLogo    = "company_logo"

	DefaultCompanyLogo = "default_logo.png"
)

// SystemSetting - key/value row printed on receipt letterheads.
type SystemSetting struct {
	ID           uint   `gorm:"primaryKey"`
	SettingKey   string `gorm:"size:100;uniqueIndex;not null"`
	SettingValue string `gorm:"type:text"`
	UpdatedAt    time.Time
}
