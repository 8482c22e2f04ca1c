package tester

import (
	"fmt"
	"os"
	"testing"

	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB opens a fresh migrated in-memory sqlite database that lives as long as the test.
func TestDB(t testing.TB) *gorm.DB {
	t.Helper()
	_ = os.Setenv("ENV", "test")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	// one connection keeps the shared in-memory database alive and serialises transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// TestStore returns a store backed by TestDB.
func TestStore(t testing.TB) *store.GormStore {
	t.Helper()
	return store.NewGormStore(TestDB(t))
}

// Quiet lowers the log level for the duration of a test package run.
func Quiet() {
	logrus.SetLevel(logrus.WarnLevel)
}
