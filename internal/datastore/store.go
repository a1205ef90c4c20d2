// Package datastore is the Get/Set/Delete surface the rest of the
// application uses for every record. It resolves logical keys for the
// current profile, seals values when that profile is unlocked and keeps
// reserved keys in plain JSON.
//
// Writes follow the lock state of the current profile at call time. There
// is no way to write as another profile: callers must not Set while
// assuming a different profile is current.
package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/illarion/vaultkeep/internal/crypto"
	"github.com/illarion/vaultkeep/internal/namespace"
	"github.com/illarion/vaultkeep/internal/storage"
	"github.com/illarion/vaultkeep/internal/vault"
)

// Logical keys whose array length is mirrored into the profile's stats
const (
	AccountsKey = "accounts"
	ProjectsKey = "projects"
)

// Store is the data access facade over a KV and a vault.Manager
type Store struct {
	kv    storage.KV
	vault *vault.Manager
	log   zerolog.Logger
	now   func() time.Time
}

// New creates a Store. logger may be nil.
func New(kv storage.KV, m *vault.Manager, logger *zerolog.Logger) *Store {
	s := &Store{
		kv:    kv,
		vault: m,
		log:   zerolog.Nop(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	if logger != nil {
		s.log = logger.With().Str("component", "datastore").Logger()
	}
	return s
}

// Get returns the JSON value of a logical key, or nil when it is absent.
//
// Plain rows are returned as they are without needing a key. A sealed row
// of a locked profile yields vault.ErrLocked: the value is unavailable, not
// empty. A sealed row that does not authenticate yields crypto.ErrDecrypt.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	profileID := s.vault.CurrentProfile()
	physical := namespace.PhysicalKey(key, profileID)

	raw, ok, err := s.kv.Get(ctx, physical)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}

	if namespace.IsReserved(key) {
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("reserved key %s holds invalid JSON", key)
		}
		return json.RawMessage(raw), nil
	}

	stored, err := crypto.ParseStored([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	if !stored.Encrypted() {
		return stored.Plain, nil
	}

	plaintext, err := s.vault.Open(profileID, stored.Envelope)
	switch {
	case errors.Is(err, vault.ErrLocked):
		s.log.Debug().Str("profile", profileID).Str("key", key).Msg("read of sealed row while locked")
		return nil, err
	case err != nil:
		s.log.Error().Err(err).Str("profile", profileID).Str("key", key).Msg("sealed row failed to open")
		return nil, err
	}
	if !json.Valid(plaintext) {
		return nil, fmt.Errorf("decrypted %s is not valid JSON", key)
	}
	return json.RawMessage(plaintext), nil
}

// GetInto decodes the value of key into v. found is false when the key is
// absent; v is then left untouched.
func (s *Store) GetInto(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores v as JSON under key. When the current profile is unlocked the
// value is sealed with its key. A profile without a vault gets plain JSON.
// A profile that has a vault but is locked refuses the write with
// vault.ErrLocked so no plaintext lands next to its sealed rows.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	if namespace.IsReserved(key) {
		return s.kv.Put(ctx, key, string(data))
	}

	profileID := s.vault.CurrentProfile()
	value := string(data)

	env, err := s.vault.Seal(profileID, data)
	switch {
	case err == nil:
		sealed, err := env.Marshal()
		if err != nil {
			return err
		}
		value = string(sealed)
	case errors.Is(err, vault.ErrLocked):
		hasVault, herr := s.vault.HasVault(ctx, profileID)
		if herr != nil {
			return herr
		}
		if hasVault {
			return err
		}
	default:
		return err
	}

	count, counted := arrayLength(key, data)
	return s.kv.Update(ctx, func(tx storage.Tx) error {
		if err := tx.Put(namespace.PhysicalKey(key, profileID), value); err != nil {
			return err
		}
		if !counted {
			return nil
		}
		return s.updateStats(tx, profileID, key, count)
	})
}

// Delete removes key outright; there is no tombstone
func (s *Store) Delete(ctx context.Context, key string) error {
	if namespace.IsReserved(key) {
		return s.kv.Delete(ctx, key)
	}

	profileID := s.vault.CurrentProfile()
	return s.kv.Update(ctx, func(tx storage.Tx) error {
		if err := tx.Delete(namespace.PhysicalKey(key, profileID)); err != nil {
			return err
		}
		if key != AccountsKey && key != ProjectsKey {
			return nil
		}
		return s.updateStats(tx, profileID, key, 0)
	})
}

// Keys lists the logical keys stored for the current profile, sorted
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	profileID := s.vault.CurrentProfile()
	physical, err := s.kv.Keys(ctx, namespace.ProfilePrefix(profileID))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(physical))
	for _, p := range physical {
		if logical, ok := namespace.LogicalKey(p, profileID); ok {
			keys = append(keys, logical)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Stats returns the current profile's counters
func (s *Store) Stats(ctx context.Context) (vault.Stats, error) {
	var st vault.Stats
	raw, ok, err := s.kv.Get(ctx, namespace.StatsKey(s.vault.CurrentProfile()))
	if err != nil || !ok {
		return st, err
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return st, fmt.Errorf("failed to decode stats: %w", err)
	}
	return st, nil
}

func (s *Store) updateStats(tx storage.Tx, profileID, key string, count int) error {
	statsKey := namespace.StatsKey(profileID)

	var st vault.Stats
	raw, ok, err := tx.Get(statsKey)
	if err != nil {
		return err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			s.log.Warn().Err(err).Str("profile", profileID).Msg("resetting unreadable stats")
			st = vault.Stats{}
		}
	}

	switch key {
	case AccountsKey:
		st.Accounts = count
	case ProjectsKey:
		st.Projects = count
	}
	st.UpdatedAt = s.now()

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return tx.Put(statsKey, string(data))
}

// arrayLength reports the element count of data when key is a counted key
// holding a JSON array
func arrayLength(key string, data []byte) (int, bool) {
	if key != AccountsKey && key != ProjectsKey {
		return 0, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return 0, false
	}
	return len(items), true
}
