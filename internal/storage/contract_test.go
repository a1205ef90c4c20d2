package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// runContract exercises the behavior every KV backend must share.
func runContract(t *testing.T, open func(t *testing.T) KV) {
	t.Run("GetMissing", func(t *testing.T) {
		db := open(t)
		_, ok, err := db.Get(context.Background(), "nope")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if ok {
			t.Error("Missing key reported as found")
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		ctx := context.Background()
		db := open(t)
		if err := db.Put(ctx, "k", "v1"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := db.Put(ctx, "k", "v2"); err != nil {
			t.Fatalf("Second put failed: %v", err)
		}
		value, ok, err := db.Get(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("Get failed: ok=%v err=%v", ok, err)
		}
		if value != "v2" {
			t.Errorf("Value mismatch: got %s, want v2", value)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		db := open(t)
		if err := db.Put(ctx, "k", "v"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := db.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, ok, _ := db.Get(ctx, "k"); ok {
			t.Error("Key should be gone after delete")
		}
		if err := db.Delete(ctx, "k"); err != nil {
			t.Errorf("Deleting a missing key should not fail: %v", err)
		}
	})

	t.Run("PrefixOperations", func(t *testing.T) {
		ctx := context.Background()
		db := open(t)
		rows := map[string]string{
			"profile:a:accounts": "1",
			"profile:a:notes":    "2",
			"profile:ab:notes":   "3",
			"profile:b:accounts": "4",
			"vault:profiles":     "5",
		}
		for k, v := range rows {
			if err := db.Put(ctx, k, v); err != nil {
				t.Fatalf("Put %s failed: %v", k, err)
			}
		}

		keys, err := db.Keys(ctx, "profile:a:")
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		want := []string{"profile:a:accounts", "profile:a:notes"}
		if !reflect.DeepEqual(keys, want) {
			t.Errorf("Keys mismatch: got %v, want %v", keys, want)
		}

		removed, err := db.DeletePrefix(ctx, "profile:a:")
		if err != nil {
			t.Fatalf("DeletePrefix failed: %v", err)
		}
		if removed != 2 {
			t.Errorf("Expected 2 removed rows, got %d", removed)
		}

		all, err := db.Keys(ctx, "")
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("Expected 3 remaining rows, got %v", all)
		}
	})

	t.Run("UpdateRollsBack", func(t *testing.T) {
		ctx := context.Background()
		db := open(t)
		if err := db.Put(ctx, "keep", "original"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		boom := errors.New("boom")
		err := db.Update(ctx, func(tx Tx) error {
			if err := tx.Put("keep", "changed"); err != nil {
				return err
			}
			if err := tx.Put("new", "row"); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected boom, got %v", err)
		}

		value, _, _ := db.Get(ctx, "keep")
		if value != "original" {
			t.Errorf("Rolled back write leaked: got %s", value)
		}
		if _, ok, _ := db.Get(ctx, "new"); ok {
			t.Error("Rolled back insert leaked")
		}
	})

	t.Run("UpdateReadsOwnWrites", func(t *testing.T) {
		ctx := context.Background()
		db := open(t)
		err := db.Update(ctx, func(tx Tx) error {
			if err := tx.Put("a", "1"); err != nil {
				return err
			}
			value, ok, err := tx.Get("a")
			if err != nil {
				return err
			}
			if !ok || value != "1" {
				t.Errorf("Transaction did not see its own write: %q %v", value, ok)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		db := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := db.Put(ctx, "k", "v"); err == nil {
			t.Error("Expected error for cancelled context")
		}
	})
}
