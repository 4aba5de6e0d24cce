package database

import (
	"fmt"
	"log"
	"regexp"

	"kiramate-backend/internal/config"
	"kiramate-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the configured database, applies the schema and seeds the
// default system settings. Any failure is fatal.
func Init(cfg *config.Config) {
	db, err := Open(cfg)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	DB = db

	if err := Migrate(cfg, DB); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if err := SeedSettings(DB); err != nil {
		log.Fatalf("Seeding system settings failed: %v", err)
	}

	log.Println("Database connected. Migration complete.")
}

// Open connects without touching the schema.
func Open(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.DBDebug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// Links between shops, rents, opening balances and payments are
		// guarded in application code.
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		dialector = postgres.Open(cfg.DatabaseDSN)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	log.Printf("[DB] driver=%s dsn=%s", cfg.DBDriver, maskDSN(cfg.DatabaseDSN))
	return db, nil
}

// Migrate applies versioned SQL migrations when enabled for postgres,
// otherwise falls back to AutoMigrate.
func Migrate(cfg *config.Config, db *gorm.DB) error {
	if cfg.SQLMigrations && cfg.DBDriver == "postgres" {
		return RunSQLMigrations(cfg.MigrationsPath, cfg.DatabaseDSN)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

var passwordRe = regexp.MustCompile(`(password=)([^\s]+)|(://[^:/]+:)([^@]+)(@)`)

func maskDSN(dsn string) string {
	return passwordRe.ReplaceAllString(dsn, "${1}${3}***${5}")
}
