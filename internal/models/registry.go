package models

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&User{},
		&Tenant{},
		&TenantDocument{},
		&Shop{},
		&ShopDocument{},
		&Rent{},
		&OpeningBalance{},
		&Payment{},
		&SystemSetting{},
		&AuditLog{},
	}
}
