package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// KVBucket holds every row of the vault
var KVBucket = []byte("kv")

const (
	dirPerm    = 0700
	filePerm   = 0600
	lockWait   = time.Second
	compactExt = ".compact"
	backupExt  = ".backup"
)

// BoltKV provides BBolt-based storage for vaultkeep
type BoltKV struct {
	db *bolt.DB
}

// Open opens or creates a vault database
func Open(path string) (*BoltKV, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openBolt(path)
	if err != nil {
		return nil, err
	}

	return &BoltKV{db: db}, nil
}

func openBolt(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, filePerm, &bolt.Options{Timeout: lockWait})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(KVBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", KVBucket, err)
	}
	return db, nil
}

// Close closes the database
func (s *BoltKV) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *BoltKV) Path() string {
	return s.db.Path()
}

// Get returns the value stored under key
func (s *BoltKV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		value, found, err = boltTx{tx.Bucket(KVBucket)}.Get(key)
		return err
	})
	return value, found, err
}

// Put inserts or replaces the value under key
func (s *BoltKV) Put(ctx context.Context, key, value string) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.Put(key, value)
	})
}

// Delete removes key; deleting a missing key is not an error
func (s *BoltKV) Delete(ctx context.Context, key string) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.Delete(key)
	})
}

// DeletePrefix removes all rows whose key starts with prefix
func (s *BoltKV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var removed int
	err := s.Update(ctx, func(tx Tx) error {
		var err error
		removed, err = tx.DeletePrefix(prefix)
		return err
	})
	return removed, err
}

// Keys lists keys starting with prefix
func (s *BoltKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		keys, err = boltTx{tx.Bucket(KVBucket)}.Keys(prefix)
		return err
	})
	return keys, err
}

// Update runs fn inside a single BBolt read-write transaction
func (s *BoltKV) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(KVBucket)
		if bucket == nil {
			return fmt.Errorf("kv bucket not found")
		}
		return fn(boltTx{bucket})
	})
}

// boltTx adapts a bucket inside a transaction to Tx
type boltTx struct {
	b *bolt.Bucket
}

func (t boltTx) Get(key string) (string, bool, error) {
	if t.b == nil {
		return "", false, fmt.Errorf("kv bucket not found")
	}
	data := t.b.Get([]byte(key))
	if data == nil {
		return "", false, nil
	}
	// Copy: the slice is only valid during the transaction
	return string(data), true, nil
}

func (t boltTx) Keys(prefix string) ([]string, error) {
	if t.b == nil {
		return nil, fmt.Errorf("kv bucket not found")
	}
	var keys []string
	p := []byte(prefix)
	c := t.b.Cursor()
	for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
		keys = append(keys, string(k))
	}
	return keys, nil
}

func (t boltTx) Put(key, value string) error {
	return t.b.Put([]byte(key), []byte(value))
}

func (t boltTx) Delete(key string) error {
	return t.b.Delete([]byte(key))
}

func (t boltTx) DeletePrefix(prefix string) (int, error) {
	// Collect first: deleting under an open cursor skips entries
	keys, err := t.Keys(prefix)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := t.b.Delete([]byte(k)); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// Compact creates a compacted copy of the database, removing unused space.
// This is useful after deleting a profile or rotating a password.
func (s *BoltKV) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + compactExt

	// Create new database
	dst, err := bolt.Open(tmpPath, filePerm, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	// Copy all buckets
	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + backupExt
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	// Reopen database
	s.db, err = openBolt(srcPath)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}
