package payment

import (
	"fmt"
	"slices"
	"time"

	"kiramate-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var Methods = []string{"Cash", "Cheque", "Bank Transfer", "UPI", "Other"}

func ValidMethod(m string) bool {
	return slices.Contains(Methods, m)
}

type RecordInput struct {
	ShopID        uint
	Amount        decimal.Decimal
	PaymentDate   time.Time
	PaymentMethod string
	Notes         string
	Target        Target
}

// Record inserts a payment for the target. It does not look for earlier
// payments of the same obligation; paying twice is allowed.
func Record(db *gorm.DB, in RecordInput) (models.Payment, error) {
	p := models.Payment{
		ShopID:        in.ShopID,
		Amount:        in.Amount,
		PaymentDate:   in.PaymentDate,
		PaymentMethod: in.PaymentMethod,
		Notes:         in.Notes,
	}
	switch t := in.Target.(type) {
	case RentMonth:
		year, month := t.Year, int(t.Month)
		p.RentYear = &year
		p.RentMonth = &month
	case OpeningBalanceYear:
		fy := t.FinancialYear.String()
		p.OBFinancialYear = &fy
	default:
		return models.Payment{}, ErrInvalidTarget
	}

	if err := db.Omit("Shop").Create(&p).Error; err != nil {
		return models.Payment{}, fmt.Errorf("record payment: %w", err)
	}
	return p, nil
}

// ObligationExists reports whether the shop has the rent row or opening
// balance the target names.
func ObligationExists(db *gorm.DB, shopID uint, t Target) (bool, error) {
	var count int64
	var err error
	switch t := t.(type) {
	case RentMonth:
		err = db.Model(&models.Rent{}).
			Where("shop_id = ? AND rent_year = ? AND rent_month = ?", shopID, t.Year, int(t.Month)).
			Count(&count).Error
	case OpeningBalanceYear:
		err = db.Model(&models.OpeningBalance{}).
			Where("shop_id = ? AND financial_year = ?", shopID, t.FinancialYear.String()).
			Count(&count).Error
	default:
		return false, ErrInvalidTarget
	}
	if err != nil {
		return false, fmt.Errorf("obligation lookup: %w", err)
	}
	return count > 0, nil
}
