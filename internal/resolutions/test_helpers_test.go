package resolutions

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func mustAnonID(testContext *testing.T, rawInput string) AnonID {
	testContext.Helper()
	anonID, err := NewAnonID(rawInput)
	if err != nil {
		testContext.Fatalf("failed to build anon id %q: %v", rawInput, err)
	}
	return anonID
}

func openTestDatabase(testContext *testing.T) *gorm.DB {
	testContext.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", testContext.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_anon_id ON messages(anon_id)").Error; err != nil {
		testContext.Fatalf("failed to create unique index: %v", err)
	}
	return db
}

func mustService(testContext *testing.T, db *gorm.DB, clock func() time.Time, countTTL time.Duration) *Service {
	testContext.Helper()
	service, err := NewService(ServiceConfig{
		Database:      db,
		Clock:         clock,
		CountCacheTTL: countTTL,
	})
	if err != nil {
		testContext.Fatalf("failed to build service: %v", err)
	}
	return service
}

func validCollectOptions() CollectOptions {
	return CollectOptions{
		Enabled:       true,
		MaxMessageLen: 400,
		Countries:     []string{"Italy", "Japan", "Other"},
		Categories:    []string{"Health & Fitness", "Career & Work", "Other"},
		Motivations:   []string{"Personal growth", "Family", "Other"},
	}
}

func validFormInput() FormInput {
	return FormInput{
		Message:              "Exercise consistently",
		Age:                  29,
		Country:              "Italy",
		Categories:           []string{"Health & Fitness"},
		Motivations:          []string{"Personal growth"},
		PastYearScore:        3,
		NewYearScore:         4,
		CompletionConfidence: 3,
		Submitted:            true,
	}
}

type mapCursorStore struct {
	cursors map[string]int
}

func newMapCursorStore() *mapCursorStore {
	return &mapCursorStore{cursors: make(map[string]int)}
}

func (s *mapCursorStore) Cursor(viewKey string) int {
	return s.cursors[viewKey]
}

func (s *mapCursorStore) SetCursor(viewKey string, page int) {
	s.cursors[viewKey] = page
}
