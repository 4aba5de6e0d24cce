package ledger

import (
	"errors"
	"fmt"

	"kiramate-backend/internal/models"

	"gorm.io/gorm"
)

// ErrLinked is wrapped by every deletion refusal.
var ErrLinked = errors.New("record is linked")

// LinkedError carries the user-facing refusal message.
type LinkedError struct {
	Msg string
}

func (e *LinkedError) Error() string { return e.Msg }
func (e *LinkedError) Unwrap() error { return ErrLinked }

func linked(msg string) error {
	return &LinkedError{Msg: msg}
}

// CheckShopDeletable refuses while the shop has any rent, opening balance
// or payment, paid or not.
func CheckShopDeletable(db *gorm.DB, shopID uint) error {
	checks := []struct {
		model any
		what  string
	}{
		{&models.Rent{}, "rents"},
		{&models.OpeningBalance{}, "opening balances"},
		{&models.Payment{}, "payments"},
	}
	for _, c := range checks {
		var count int64
		if err := db.Model(c.model).Where("shop_id = ?", shopID).Count(&count).Error; err != nil {
			return fmt.Errorf("shop link check: %w", err)
		}
		if count > 0 {
			return linked("cannot delete: shop is linked to " + c.what)
		}
	}
	return nil
}

// CheckRentDeletable refuses while a payment names the rent month.
func CheckRentDeletable(db *gorm.DB, r models.Rent) error {
	paid, err := IsRentPaid(db, r.ShopID, r.Period())
	if err != nil {
		return err
	}
	if paid {
		return linked("cannot delete: rent is linked to one or more payments")
	}
	return nil
}

// CheckOpeningBalanceDeletable refuses while a payment names the financial year.
func CheckOpeningBalanceDeletable(db *gorm.DB, ob models.OpeningBalance) error {
	var count int64
	err := db.Model(&models.Payment{}).
		Where("shop_id = ? AND ob_financial_year = ?", ob.ShopID, ob.FinancialYear).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("opening balance link check: %w", err)
	}
	if count > 0 {
		return linked("cannot delete: opening balance is linked to one or more payments")
	}
	return nil
}

// CheckRentRekey refuses moving a paid rent to another shop or month; the
// payments would be left naming a month with no rent behind it.
func CheckRentRekey(db *gorm.DB, before, after models.Rent) error {
	if before.ShopID == after.ShopID && before.Period() == after.Period() {
		return nil
	}
	paid, err := IsRentPaid(db, before.ShopID, before.Period())
	if err != nil {
		return err
	}
	if paid {
		return linked("cannot change shop or month: rent is linked to one or more payments")
	}
	return nil
}

// CheckOpeningBalanceRekey is CheckRentRekey for opening balances.
func CheckOpeningBalanceRekey(db *gorm.DB, before, after models.OpeningBalance) error {
	if before.ShopID == after.ShopID && before.FinancialYear == after.FinancialYear {
		return nil
	}
	err := CheckOpeningBalanceDeletable(db, before)
	if errors.Is(err, ErrLinked) {
		return linked("cannot change shop or financial year: opening balance is linked to one or more payments")
	}
	return err
}

// CheckTenantDeletable refuses while any shop is let to the tenant.
func CheckTenantDeletable(db *gorm.DB, tenantID uint) error {
	var count int64
	if err := db.Model(&models.Shop{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return fmt.Errorf("tenant link check: %w", err)
	}
	if count > 0 {
		return linked("cannot delete: tenant is assigned to one or more shops")
	}
	return nil
}
