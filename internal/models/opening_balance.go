package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpeningBalance - amount carried forward for a shop before monthly rent
// tracking began, one per financial year ("2024 to 2025").
type OpeningBalance struct {
	ID            uint            `gorm:"primaryKey"`
	ShopID        uint            `gorm:"not null;uniqueIndex:idx_opening_balances_shop_fy,priority:1"`
	Shop          Shop            `gorm:"foreignKey:ShopID"`
	TenantID      *uint           `gorm:"index"` // tenant of the shop when the balance was recorded
	Tenant        *Tenant         `gorm:"foreignKey:TenantID"`
	FinancialYear string          `gorm:"size:20;not null;uniqueIndex:idx_opening_balances_shop_fy,priority:2"`
	Amount        decimal.Decimal `gorm:"column:opening_balance;type:numeric(12,2);not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
