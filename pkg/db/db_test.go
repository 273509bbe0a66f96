package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New accepted an empty path")
	}
}

func TestNewCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "swing.db")
	d, err := New(path)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("parent directory not created: %v", err)
	}
}

func TestWALModeActive(t *testing.T) {
	d, err := New(filepath.Join(t.TempDir(), "swing.db"))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	var mode string
	if err := d.DB.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode=%s, expected wal", mode)
	}
}

func TestCloseNilSafe(t *testing.T) {
	var d *Database
	if err := d.Close(); err != nil {
		t.Fatalf("nil Close returned error: %v", err)
	}
}
