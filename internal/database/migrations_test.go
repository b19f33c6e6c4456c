package database

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/resolutionwall/backend/internal/resolutions"
)

func openBareDatabase(testContext *testing.T) *gorm.DB {
	testContext.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", testContext.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&resolutions.Record{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedRecord(testContext *testing.T, db *gorm.DB, anonID, message string, createdAt time.Time) {
	testContext.Helper()
	record := resolutions.Record{
		AnonID:          anonID,
		CreatedAt:       createdAt,
		Message:         message,
		CategoriesJSON:  `["Other"]`,
		MotivationsJSON: `["Other"]`,
	}
	if err := db.Create(&record).Error; err != nil {
		testContext.Fatalf("failed to seed record: %v", err)
	}
}

func TestDedupeMigrationKeepsEarliestSubmission(testContext *testing.T) {
	db := openBareDatabase(testContext)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedRecord(testContext, db, "anon-1", "first attempt", base)
	seedRecord(testContext, db, "anon-1", "racing duplicate", base.Add(time.Second))
	seedRecord(testContext, db, "anon-2", "unrelated", base.Add(time.Minute))

	if err := applyMigrations(db, nil); err != nil {
		testContext.Fatalf("unexpected migration error: %v", err)
	}

	var messages []string
	if err := db.Model(&resolutions.Record{}).Where("anon_id = ?", "anon-1").Pluck("message", &messages).Error; err != nil {
		testContext.Fatalf("failed to query: %v", err)
	}
	if len(messages) != 1 || messages[0] != "first attempt" {
		testContext.Fatalf("expected only the earliest submission to survive, got %#v", messages)
	}

	var total int64
	if err := db.Model(&resolutions.Record{}).Count(&total).Error; err != nil {
		testContext.Fatalf("failed to count: %v", err)
	}
	if total != 2 {
		testContext.Fatalf("expected 2 records after dedupe, got %d", total)
	}
}

func TestMigrationEnforcesUniqueIdentity(testContext *testing.T) {
	db := openBareDatabase(testContext)

	if err := applyMigrations(db, nil); err != nil {
		testContext.Fatalf("unexpected migration error: %v", err)
	}

	seedRecord(testContext, db, "anon-1", "kept", time.Now().UTC())

	duplicate := resolutions.Record{
		AnonID:          "anon-1",
		CreatedAt:       time.Now().UTC(),
		Message:         "rejected",
		CategoriesJSON:  `["Other"]`,
		MotivationsJSON: `["Other"]`,
	}
	if err := db.Create(&duplicate).Error; err == nil {
		testContext.Fatalf("expected unique constraint violation")
	}
}

func TestMigrationsAreRecordedOnce(testContext *testing.T) {
	db := openBareDatabase(testContext)

	if err := applyMigrations(db, nil); err != nil {
		testContext.Fatalf("unexpected migration error: %v", err)
	}
	if err := applyMigrations(db, nil); err != nil {
		testContext.Fatalf("reapplying migrations must be a no-op, got %v", err)
	}

	var count int64
	if err := db.Model(&migrationRecord{}).Where("name = ?", migrationDedupeAnonSubmissions).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count migration records: %v", err)
	}
	if count != 1 {
		testContext.Fatalf("expected one ledger entry, got %d", count)
	}
}
