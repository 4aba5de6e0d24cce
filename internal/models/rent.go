package models

import (
	"time"

	"kiramate-backend/internal/period"

	"github.com/shopspring/decimal"
)

// Rent - one monthly rent obligation of a shop.
// FinalRent = CalculatedRent + Penalty - AmountWavedOff.
type Rent struct {
	ID             uint            `gorm:"primaryKey"`
	ShopID         uint            `gorm:"not null;uniqueIndex:idx_rents_shop_period,priority:1"`
	Shop           Shop            `gorm:"foreignKey:ShopID"`
	RentYear       int             `gorm:"not null;uniqueIndex:idx_rents_shop_period,priority:2"`
	RentMonth      int             `gorm:"not null;uniqueIndex:idx_rents_shop_period,priority:3"`
	CalculatedRent decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Penalty        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	AmountWavedOff decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	FinalRent      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Remarks        string          `gorm:"size:500"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r Rent) Period() period.Month {
	return period.NewMonth(r.RentYear, time.Month(r.RentMonth))
}
