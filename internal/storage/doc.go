// Package storage provides the durable key-value layer for vaultkeep.
//
// A vault is a flat map of string keys to string values. The package knows
// nothing about encryption or profiles; callers decide what a key means.
//
// Two backends implement KV:
//   - BoltKV: a single BBolt file with one bucket (default)
//   - SQLKV: a libSQL/SQLite file with a two-column kv table
//
// Both support atomic single-row upsert, deletion by exact key or by key
// prefix, and multi-row transactions through Update.
package storage
