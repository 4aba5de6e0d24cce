package dbtest

import (
	"fmt"
	"testing"
	"time"

	"kiramate-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Tenant inserts a tenant with a mobile number derived from n.
func Tenant(t *testing.T, db *gorm.DB, name string, n int) models.Tenant {
	t.Helper()
	tenant := models.Tenant{
		Code:   fmt.Sprintf("T%03d", n),
		Name:   name,
		Mobile: fmt.Sprintf("98%08d", n),
	}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenant
}

// Shop inserts a shop let to tenantID (0 for vacant) at 10000 base rent,
// 10% every year from 2020-01-01.
func Shop(t *testing.T, db *gorm.DB, shopNo string, tenantID uint) models.Shop {
	t.Helper()
	shop := models.Shop{
		ShopNo:                 shopNo,
		Location:               "Main Road",
		AgreementStartDate:     time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		AgreementEndDate:       time.Date(2030, time.December, 31, 0, 0, 0, 0, time.UTC),
		BaseRent:               decimal.NewFromInt(10000),
		RentIncrementPercent:   decimal.NewFromInt(10),
		IncrementDurationYears: 1,
	}
	if tenantID != 0 {
		shop.TenantID = &tenantID
	}
	if err := db.Omit("Tenant").Create(&shop).Error; err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	return shop
}

func Rent(t *testing.T, db *gorm.DB, shopID uint, year, month int, final int64) models.Rent {
	t.Helper()
	r := models.Rent{
		ShopID:         shopID,
		RentYear:       year,
		RentMonth:      month,
		CalculatedRent: decimal.NewFromInt(final),
		FinalRent:      decimal.NewFromInt(final),
	}
	if err := db.Omit("Shop").Create(&r).Error; err != nil {
		t.Fatalf("seed rent: %v", err)
	}
	return r
}

func OpeningBalance(t *testing.T, db *gorm.DB, shopID uint, fy string, amount int64) models.OpeningBalance {
	t.Helper()
	var shop models.Shop
	if err := db.First(&shop, shopID).Error; err != nil {
		t.Fatalf("seed opening balance: %v", err)
	}
	ob := models.OpeningBalance{
		ShopID:        shopID,
		TenantID:      shop.TenantID,
		FinancialYear: fy,
		Amount:        decimal.NewFromInt(amount),
	}
	if err := db.Omit("Shop", "Tenant").Create(&ob).Error; err != nil {
		t.Fatalf("seed opening balance: %v", err)
	}
	return ob
}

// RentPayment inserts a payment against a rent month.
func RentPayment(t *testing.T, db *gorm.DB, shopID uint, year, month int, amount int64) models.Payment {
	t.Helper()
	p := models.Payment{
		ShopID:        shopID,
		Amount:        decimal.NewFromInt(amount),
		PaymentDate:   time.Date(year, time.Month(month), 10, 0, 0, 0, 0, time.UTC),
		PaymentMethod: "Cash",
		RentYear:      &year,
		RentMonth:     &month,
	}
	if err := db.Omit("Shop").Create(&p).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return p
}

// OpeningBalancePayment inserts a payment against a financial year.
func OpeningBalancePayment(t *testing.T, db *gorm.DB, shopID uint, fy string, amount int64) models.Payment {
	t.Helper()
	p := models.Payment{
		ShopID:          shopID,
		Amount:          decimal.NewFromInt(amount),
		PaymentDate:     time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC),
		PaymentMethod:   "UPI",
		OBFinancialYear: &fy,
	}
	if err := db.Omit("Shop").Create(&p).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return p
}
