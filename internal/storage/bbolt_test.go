package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func openBoltForTest(t *testing.T) *BoltKV {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.vault"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBoltContract(t *testing.T) {
	runContract(t, func(t *testing.T) KV { return openBoltForTest(t) })
}

func TestOpenCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.vault")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if db.Path() != dbPath {
		t.Errorf("Path mismatch: got %s, want %s", db.Path(), dbPath)
	}
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.vault")

	// Create and populate database
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Put(ctx, "vault:profiles", `[]`); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	if err := db.Put(ctx, "profile:p1:accounts", `{"a":1}`); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	db.Close()

	// Reopen and verify
	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db2.Close()

	value, ok, err := db2.Get(ctx, "profile:p1:accounts")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if !ok || value != `{"a":1}` {
		t.Errorf("Row not persisted correctly: got %q (found=%v)", value, ok)
	}
}

func TestCompactKeepsRows(t *testing.T) {
	ctx := context.Background()
	db := openBoltForTest(t)

	for _, k := range []string{"profile:a:x", "profile:a:y", "profile:b:x"} {
		if err := db.Put(ctx, k, "v-"+k); err != nil {
			t.Fatalf("Failed to put %s: %v", k, err)
		}
	}
	if _, err := db.DeletePrefix(ctx, "profile:a:"); err != nil {
		t.Fatalf("Failed to delete prefix: %v", err)
	}

	if err := db.Compact(); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	keys, err := db.Keys(ctx, "")
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "profile:b:x" {
		t.Errorf("Unexpected keys after compact: %v", keys)
	}

	// Database must be usable after reopen
	if err := db.Put(ctx, "after", "compact"); err != nil {
		t.Fatalf("Put after compact failed: %v", err)
	}
}

func TestOpenBackendUnknown(t *testing.T) {
	if _, err := OpenBackend("etcd", filepath.Join(t.TempDir(), "x")); err == nil {
		t.Fatal("Expected error for unknown backend")
	}
}
