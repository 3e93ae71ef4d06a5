package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config selects and locates the database.
type Config struct {
	Driver string // "sqlite" or "postgres"
	Path   string // sqlite file path
	DSN    string // postgres connection string
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dialector = sqlite.Open(cfg.Path + "?_busy_timeout=5000&_journal_mode=WAL")
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info().Str("component", "database").Str("driver", cfg.Driver).Msg("Database initialized")
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// Migrate creates or updates every table the service owns or reads.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Rack{},
		&models.Equipment{},
		&models.Report{},
		&models.ReportArtifact{},
		&models.ReportTemplate{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}

	return sqlDB.Close()
}

// EnsureAdmin creates an admin account when no users exist yet. It reports
// whether a user was created.
func EnsureAdmin(db *gorm.DB, username, password string) (bool, error) {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if password == "" {
		log.Warn().Str("component", "database").Msg("No users exist and auth.admin_password is empty; skipping admin bootstrap")
		return false, nil
	}

	admin := &models.User{Username: username, Role: models.RoleAdmin}
	if err := admin.SetPassword(password); err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}
	if err := db.Create(admin).Error; err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}

	log.Info().Str("component", "database").Str("username", username).Msg("Admin user created")
	return true, nil
}
