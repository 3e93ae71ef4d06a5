// Package testutil provides an isolated in-memory database for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tinrooster/tedecom-v1/internal/database"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the full schema. A
// single connection is used so concurrent goroutines serialize on it.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser inserts an active user with the given role.
func CreateUser(t testing.TB, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		IsActive: true,
	}
	if err := user.SetPassword("secret"); err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateEquipment inserts equipment, defaulting LastUpdated to now.
func CreateEquipment(t testing.TB, db *gorm.DB, items ...*models.Equipment) {
	t.Helper()
	for _, item := range items {
		if item.LastUpdated.IsZero() {
			item.LastUpdated = time.Now()
		}
		if err := db.Create(item).Error; err != nil {
			t.Fatalf("create equipment %q: %v", item.Name, err)
		}
	}
}

func CreateRack(t testing.TB, db *gorm.DB, rowID, number string) *models.Rack {
	t.Helper()
	rack := &models.Rack{RowID: rowID, RackNumber: number, TotalUnits: models.RackUnitCapacity, Status: "active"}
	if err := db.Create(rack).Error; err != nil {
		t.Fatalf("create rack: %v", err)
	}
	return rack
}

func TimePtr(t time.Time) *time.Time { return &t }

func UintPtr(v uint) *uint { return &v }

func IntPtr(v int) *int { return &v }
