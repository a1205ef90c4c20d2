package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLKV implements KV on an embedded libSQL (SQLite fork) database.
type SQLKV struct {
	db *sql.DB
}

// OpenSQL opens a libSQL database. path may be a plain file path or a
// "file:" URI.
func OpenSQL(path string) (*SQLKV, error) {
	dsn := path
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, dirPerm); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = "file:" + path
	}

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=1000",
	} {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	return &SQLKV{db: db}, nil
}

// Close closes the database.
func (s *SQLKV) Close() error { return s.db.Close() }

func (s *SQLKV) Get(ctx context.Context, key string) (string, bool, error) {
	return sqlTx{ctx: ctx, q: s.db}.Get(key)
}

func (s *SQLKV) Put(ctx context.Context, key, value string) error {
	return sqlTx{ctx: ctx, q: s.db}.Put(key, value)
}

func (s *SQLKV) Delete(ctx context.Context, key string) error {
	return sqlTx{ctx: ctx, q: s.db}.Delete(key)
}

func (s *SQLKV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	return sqlTx{ctx: ctx, q: s.db}.DeletePrefix(prefix)
}

func (s *SQLKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	return sqlTx{ctx: ctx, q: s.db}.Keys(prefix)
}

// Update runs fn inside a database transaction, rolling back on error.
func (s *SQLKV) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(sqlTx{ctx: ctx, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Compact runs VACUUM on the database.
func (s *SQLKV) Compact() error {
	_, err := s.db.Exec("VACUUM")
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlTx struct {
	ctx context.Context
	q   querier
}

func (t sqlTx) Get(key string) (string, bool, error) {
	var value string
	err := t.q.QueryRowContext(t.ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (t sqlTx) Keys(prefix string) ([]string, error) {
	rows, err := t.q.QueryContext(t.ctx,
		`SELECT key FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (t sqlTx) Put(key, value string) error {
	_, err := t.q.ExecContext(t.ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

func (t sqlTx) Delete(key string) error {
	_, err := t.q.ExecContext(t.ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (t sqlTx) DeletePrefix(prefix string) (int, error) {
	res, err := t.q.ExecContext(t.ctx,
		`DELETE FROM kv WHERE substr(key, 1, length(?)) = ?`, prefix, prefix)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
