package database_test

import (
	"testing"

	"kiramate-backend/internal/database"
	"kiramate-backend/internal/database/dbtest"
	"kiramate-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedSettingsIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, database.SeedSettings(db))
	require.NoError(t, db.Model(&models.SystemSetting{}).
		Where("setting_key = ?", models.SettingCompanyName).
		Update("setting_value", "Acme Estates").Error)
	require.NoError(t, database.SeedSettings(db))

	var n int64
	require.NoError(t, db.Model(&models.SystemSetting{}).Count(&n).Error)
	assert.EqualValues(t, 3, n)

	s, err := database.Settings(db)
	require.NoError(t, err)
	assert.Equal(t, "Acme Estates", s[models.SettingCompanyName])
	assert.Equal(t, models.DefaultCompanyLogo, s[models.SettingCompanyLogo])
}
