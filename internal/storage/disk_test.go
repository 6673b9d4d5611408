package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDatabaseSizeBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lectio.db")
	if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+"-wal", make([]byte, 40), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := DatabaseSizeBytes(path)
	if err != nil {
		t.Fatalf("DatabaseSizeBytes() error = %v", err)
	}
	if got != 140 {
		t.Errorf("DatabaseSizeBytes() = %d, want 140", got)
	}

	if got, err := DatabaseSizeBytes(filepath.Join(dir, "missing.db")); err != nil || got != 0 {
		t.Errorf("missing database should report 0, got %d, err %v", got, err)
	}
	if got, err := DatabaseSizeBytes(""); err != nil || got != 0 {
		t.Errorf("empty path should report 0, got %d, err %v", got, err)
	}
}
