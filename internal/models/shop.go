package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Shop struct {
	ID                     uint            `gorm:"primaryKey"`
	ShopNo                 string          `gorm:"size:50;uniqueIndex;not null"`
	Location               string          `gorm:"size:255;not null"`
	TenantID               *uint           `gorm:"index"`
	Tenant                 *Tenant         `gorm:"foreignKey:TenantID"`
	AgreementStartDate     time.Time       `gorm:"type:date;not null"`
	AgreementEndDate       time.Time       `gorm:"type:date;not null"`
	BaseRent               decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	RentIncrementPercent   decimal.Decimal `gorm:"type:numeric(5,2);not null"`
	IncrementDurationYears int             `gorm:"not null"`

	Documents []ShopDocument `gorm:"foreignKey:ShopID;references:ID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TenantName returns "" when the shop is vacant or the tenant was not preloaded.
func (s Shop) TenantName() string {
	if s.Tenant == nil {
		return ""
	}
	return s.Tenant.Name
}

type ShopDocument struct {
	ID        uint   `gorm:"primaryKey"`
	ShopID    uint   `gorm:"index;not null"`
	FileName  string `gorm:"size:255;not null"`
	FilePath  string `gorm:"size:500;not null"` // <shopID>/<stored name>
	FileType  string `gorm:"size:100"`
	FileSize  int64
	CreatedAt time.Time
}
