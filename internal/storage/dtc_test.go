package storage

import (
	"path/filepath"
	"testing"
)

func TestMarkSeen(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "dtc.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	isNew, err := store.MarkSeen("P0301")
	if err != nil {
		t.Fatalf("MarkSeen() failed: %v", err)
	}
	if !isNew {
		t.Error("first MarkSeen() reported a known code")
	}

	isNew, err = store.MarkSeen("P0301")
	if err != nil {
		t.Fatalf("MarkSeen() failed: %v", err)
	}
	if isNew {
		t.Error("second MarkSeen() reported a new code")
	}

	codes, err := store.Seen()
	if err != nil {
		t.Fatalf("Seen() failed: %v", err)
	}
	if len(codes) != 1 || codes[0] != "P0301" {
		t.Errorf("Seen() = %v, want [P0301]", codes)
	}
}

func TestClear(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "dtc.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	if _, err := store.MarkSeen("P0420"); err != nil {
		t.Fatalf("MarkSeen() failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}

	isNew, err := store.MarkSeen("P0420")
	if err != nil {
		t.Fatalf("MarkSeen() failed: %v", err)
	}
	if !isNew {
		t.Error("code survived Clear()")
	}
}
