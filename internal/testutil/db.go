// Package testutil opens throwaway databases for service tests.
package testutil

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Smashkat12/crechebooks-sub018/internal/models"
)

// OpenDB returns a migrated SQLite database scoped to the test's temp
// directory.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Invoice{},
		&models.Transaction{},
		&models.Payment{},
		&models.ReconciliationRun{},
		&models.DuplicateResolution{},
		&models.ManualMatchHistory{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
