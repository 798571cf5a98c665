package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/workshopdl/internal/workshop"
)

// createTestStore creates a new journal in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testItem(id uint64) workshop.ItemDescriptor {
	return workshop.ItemDescriptor{ID: id, Title: "Test Map", OwnerAppID: 4000}
}
