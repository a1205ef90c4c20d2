package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/illarion/vaultkeep/internal/namespace"
	"github.com/illarion/vaultkeep/internal/storage"
)

const (
	// DefaultProfileID is the placeholder current profile of an empty registry
	DefaultProfileID = "default"
	MaxNameLength    = 20
	MaxIDLength      = 64
)

// Profile is one independently keyed vault
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProfileUpdate carries optional registry changes; nil fields are kept
type ProfileUpdate struct {
	Name *string
	Note *string
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: profile name is required", ErrValidation)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: profile name exceeds %d characters", ErrValidation, MaxNameLength)
	}
	return nil
}

// validateID rejects ids that would break prefix isolation: "a" must not
// be a key prefix of "a:b"'s rows.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: profile id is required", ErrValidation)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: profile id exceeds %d bytes", ErrValidation, MaxIDLength)
	}
	if strings.ContainsAny(id, ": \t\n") {
		return fmt.Errorf("%w: profile id must not contain ':' or whitespace", ErrValidation)
	}
	return nil
}

func findProfile(profiles []Profile, id string) int {
	for i := range profiles {
		if profiles[i].ID == id {
			return i
		}
	}
	return -1
}

// readJSON loads a reserved JSON row. found is false when the row is absent.
func readJSON(ctx context.Context, kv storage.KV, key string, v any) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func putJSON(tx storage.Tx, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return tx.Put(key, string(data))
}

func (m *Manager) loadProfiles(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	if _, err := readJSON(ctx, m.kv, namespace.ProfilesKey, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (m *Manager) loadCurrent(ctx context.Context) (string, error) {
	var id string
	found, err := readJSON(ctx, m.kv, namespace.CurrentProfileKey, &id)
	if err != nil {
		return "", err
	}
	if !found || id == "" {
		return DefaultProfileID, nil
	}
	return id, nil
}

// ListProfiles returns the registry in creation order
func (m *Manager) ListProfiles(ctx context.Context) ([]Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadProfiles(ctx)
}

// CreateProfile registers a new profile without a vault and selects it.
// An empty id gets a generated UUID.
func (m *Manager) CreateProfile(ctx context.Context, name, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateName(name); err != nil {
		return "", err
	}
	if id == "" {
		id = newProfileID()
	}
	if err := validateID(id); err != nil {
		return "", err
	}

	profiles, err := m.loadProfiles(ctx)
	if err != nil {
		return "", err
	}
	if findProfile(profiles, id) >= 0 {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	profiles = append(profiles, Profile{
		ID:        id,
		Name:      strings.TrimSpace(name),
		CreatedAt: m.now(),
	})

	err = m.kv.Update(ctx, func(tx storage.Tx) error {
		if err := putJSON(tx, namespace.ProfilesKey, profiles); err != nil {
			return err
		}
		return putJSON(tx, namespace.CurrentProfileKey, id)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create profile: %w", err)
	}

	m.current = id
	m.log.Info().Str("profile", id).Msg("profile created")
	return id, nil
}

// SelectProfile moves the current-profile pointer. Lock state of every
// profile is left as is. Unknown ids are rejected.
func (m *Manager) SelectProfile(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	profiles, err := m.loadProfiles(ctx)
	if err != nil {
		return err
	}
	if findProfile(profiles, id) < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.setCurrent(ctx, id)
}

func (m *Manager) setCurrent(ctx context.Context, id string) error {
	err := m.kv.Update(ctx, func(tx storage.Tx) error {
		return putJSON(tx, namespace.CurrentProfileKey, id)
	})
	if err != nil {
		return fmt.Errorf("failed to store current profile: %w", err)
	}
	m.current = id
	return nil
}

// UpdateProfile renames or annotates a profile. Vault data is untouched.
func (m *Manager) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if upd.Name != nil {
		if err := validateName(*upd.Name); err != nil {
			return nil, err
		}
	}

	profiles, err := m.loadProfiles(ctx)
	if err != nil {
		return nil, err
	}
	i := findProfile(profiles, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if upd.Name != nil {
		profiles[i].Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Note != nil {
		profiles[i].Note = *upd.Note
	}

	err = m.kv.Update(ctx, func(tx storage.Tx) error {
		return putJSON(tx, namespace.ProfilesKey, profiles)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	p := profiles[i]
	return &p, nil
}

// DeleteResult reports where the current-profile pointer went after a delete
type DeleteResult struct {
	// NextProfileID is empty when no profiles remain
	NextProfileID string
	Remaining     []Profile
}

// DeleteProfile irreversibly removes a profile: its VaultMeta, every
// namespaced row, its stats and its registry entry. The password must
// verify against the profile's own verifier.
func (m *Manager) DeleteProfile(ctx context.Context, id, password string) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profiles, err := m.loadProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if findProfile(profiles, id) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	meta, err := m.loadMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := m.verify(ctx, meta, password)
	if err != nil {
		return nil, err
	}
	clearKey(key)

	remaining := make([]Profile, 0, len(profiles)-1)
	for _, p := range profiles {
		if p.ID != id {
			remaining = append(remaining, p)
		}
	}

	result := &DeleteResult{Remaining: remaining}
	next := DefaultProfileID
	if len(remaining) > 0 {
		next = remaining[0].ID
		result.NextProfileID = next
	}

	var removed int
	err = m.kv.Update(ctx, func(tx storage.Tx) error {
		if err := tx.Delete(namespace.MetaKey(id)); err != nil {
			return err
		}
		n, err := tx.DeletePrefix(namespace.ProfilePrefix(id))
		if err != nil {
			return err
		}
		removed = n
		if err := tx.Delete(namespace.StatsKey(id)); err != nil {
			return err
		}
		if err := putJSON(tx, namespace.ProfilesKey, remaining); err != nil {
			return err
		}
		return putJSON(tx, namespace.CurrentProfileKey, next)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete profile: %w", err)
	}

	delete(m.keys, id)
	m.current = next
	m.log.Info().Str("profile", id).Int("rows", removed).Str("next", next).Msg("profile deleted")
	return result, nil
}
