package models

import "time"

// Tenant - shop tenant. Code is the business identifier printed on
// agreements (column tenant_id), not the primary key.
type Tenant struct {
	ID            uint    `gorm:"primaryKey"`
	Code          string  `gorm:"column:tenant_id;size:50;uniqueIndex;not null"`
	Name          string  `gorm:"size:100;not null;index"`
	Mobile        string  `gorm:"size:10;uniqueIndex;not null"`
	Email         *string `gorm:"size:100;uniqueIndex"`
	AadhaarNumber *string `gorm:"size:12;uniqueIndex"`
	PancardNumber *string `gorm:"size:10;uniqueIndex"`
	Address       string  `gorm:"size:500"`

	Documents []TenantDocument `gorm:"foreignKey:TenantID;references:ID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type TenantDocument struct {
	ID        uint   `gorm:"primaryKey"`
	TenantID  uint   `gorm:"index;not null"`
	FileName  string `gorm:"size:255;not null"` // original upload name
	FilePath  string `gorm:"size:500;not null"` // <tenantID>/<stored name>
	FileType  string `gorm:"size:100"`
	FileSize  int64
	CreatedAt time.Time
}
