// Package ledger answers what a shop owes: which rent months and opening
// balances are still pending, what has been paid, and whether a record may
// be deleted without orphaning payments.
//
// An obligation is paid as soon as any payment row names it. Amounts are not
// matched against the obligation.
package ledger

import (
	"errors"
	"fmt"

	"kiramate-backend/internal/models"
	"kiramate-backend/internal/period"

	"gorm.io/gorm"
)

var ErrShopNotFound = errors.New("shop not found")

// RentPaidExpr is an SQL condition, true when a payment names the rent row aliased as alias.
func RentPaidExpr(alias string) string {
	return "EXISTS (SELECT 1 FROM payments px WHERE px.shop_id = " + alias + ".shop_id" +
		" AND px.rent_year = " + alias + ".rent_year AND px.rent_month = " + alias + ".rent_month)"
}

// OpeningBalancePaidExpr is an SQL condition, true when a payment names the opening balance aliased as alias.
func OpeningBalancePaidExpr(alias string) string {
	return "EXISTS (SELECT 1 FROM payments px WHERE px.shop_id = " + alias + ".shop_id" +
		" AND px.ob_financial_year = " + alias + ".financial_year)"
}

// PendingRentMonths lists the shop's rents that no payment references,
// oldest first.
func PendingRentMonths(db *gorm.DB, shopID uint) ([]models.Rent, error) {
	var rents []models.Rent
	err := db.Where("shop_id = ?", shopID).
		Where("NOT " + RentPaidExpr("rents")).
		Order("rent_year ASC, rent_month ASC").
		Find(&rents).Error
	if err != nil {
		return nil, fmt.Errorf("pending rent months: %w", err)
	}
	return rents, nil
}

// PendingOpeningBalances lists the shop's opening balances that no payment
// references.
func PendingOpeningBalances(db *gorm.DB, shopID uint) ([]models.OpeningBalance, error) {
	var balances []models.OpeningBalance
	err := db.Where("shop_id = ?", shopID).
		Where("NOT " + OpeningBalancePaidExpr("opening_balances")).
		Order("financial_year ASC").
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("pending opening balances: %w", err)
	}
	return balances, nil
}

func IsRentPaid(db *gorm.DB, shopID uint, m period.Month) (bool, error) {
	var count int64
	err := db.Model(&models.Payment{}).
		Where("shop_id = ? AND rent_year = ? AND rent_month = ?", shopID, m.Year, int(m.Month)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("rent payment lookup: %w", err)
	}
	return count > 0, nil
}

func IsOpeningBalancePaid(db *gorm.DB, shopID uint, fy period.FinancialYear) (bool, error) {
	var count int64
	err := db.Model(&models.Payment{}).
		Where("shop_id = ? AND ob_financial_year = ?", shopID, fy.String()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("opening balance payment lookup: %w", err)
	}
	return count > 0, nil
}

// FindShopByNo resolves the shop number operators type into forms.
func FindShopByNo(db *gorm.DB, shopNo string) (models.Shop, error) {
	var shop models.Shop
	err := db.Preload("Tenant").Where("shop_no = ?", shopNo).First(&shop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Shop{}, ErrShopNotFound
	}
	if err != nil {
		return models.Shop{}, fmt.Errorf("shop lookup: %w", err)
	}
	return shop, nil
}
