// Package testing provides shared test helpers: a migrated throwaway engine
// database and deterministic price fixtures.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/database"
)

// NewTestDB creates a file-backed engine database in a per-test temp
// directory with the schema applied. The connection closes automatically
// when the test finishes.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "engine.db")
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    "engine",
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}
