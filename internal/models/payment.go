package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment - money received for a shop. Exactly one of (RentYear, RentMonth)
// or OBFinancialYear is set; it names the obligation the payment settles.
type Payment struct {
	ID              uint            `gorm:"primaryKey"`
	ShopID          uint            `gorm:"not null;index"`
	Shop            Shop            `gorm:"foreignKey:ShopID"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PaymentDate     time.Time       `gorm:"type:date;not null;index"`
	PaymentMethod   string          `gorm:"size:50;not null"`
	Notes           string          `gorm:"size:500"`
	RentYear        *int            `gorm:"index:idx_payments_rent_period,priority:1"`
	RentMonth       *int            `gorm:"index:idx_payments_rent_period,priority:2"`
	OBFinancialYear *string         `gorm:"column:ob_financial_year;size:20;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (p Payment) IsOpeningBalance() bool {
	return p.OBFinancialYear != nil
}
