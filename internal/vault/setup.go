package vault

import (
	"context"
	"fmt"
	"strings"

	"github.com/illarion/vaultkeep/internal/crypto"
	"github.com/illarion/vaultkeep/internal/namespace"
	"github.com/illarion/vaultkeep/internal/storage"
)

// Setup creates the vault of the current profile and unlocks it.
//
// If the current profile is not registered yet it is registered under its
// current id with profileName. Registry entry, VaultMeta, current pointer
// and, for the very first profile, the move of legacy rows into the
// profile's namespace are committed in one transaction; a failure before
// that point leaves nothing behind. Plaintext rows are sealed afterwards.
func (m *Manager) Setup(ctx context.Context, password, profileName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: need at least %d characters", ErrWeakPassword, MinPasswordLength)
	}

	// Resolve the target profile before touching any key material
	id := m.current
	profiles, err := m.loadProfiles(ctx)
	if err != nil {
		return "", err
	}
	register := findProfile(profiles, id) < 0
	// Legacy rows belong to whichever profile gets the first vault
	firstProfile := len(profiles) == 0 || (len(profiles) == 1 && !register)
	if register {
		if err := validateName(profileName); err != nil {
			return "", err
		}
		if err := validateID(id); err != nil {
			return "", err
		}
		profiles = append(profiles, Profile{
			ID:        id,
			Name:      strings.TrimSpace(profileName),
			CreatedAt: m.now(),
		})
	}

	exists, err := m.hasMeta(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to read vault meta: %w", err)
	}
	if exists {
		return "", fmt.Errorf("%w: %s", ErrVaultExists, id)
	}

	salt, verifier, key, err := m.newVerifier(password)
	if err != nil {
		return "", err
	}
	kdf := m.kdf
	meta := &VaultMeta{Salt: salt, Verifier: verifier, KDF: &kdf}

	var migrated, collided []string
	err = m.kv.Update(ctx, func(tx storage.Tx) error {
		if register {
			if err := putJSON(tx, namespace.ProfilesKey, profiles); err != nil {
				return err
			}
		}
		if err := putJSON(tx, namespace.MetaKey(id), meta); err != nil {
			return err
		}
		if err := putJSON(tx, namespace.CurrentProfileKey, id); err != nil {
			return err
		}
		if !firstProfile {
			return nil
		}
		var err error
		migrated, collided, err = migrateLegacy(tx, id)
		return err
	})
	if err != nil {
		clearKey(key)
		return "", fmt.Errorf("failed to set up vault: %w", err)
	}

	m.storeKey(id, key)
	m.current = id
	m.log.Info().Str("profile", id).Bool("registered", register).Msg("vault set up")
	if len(migrated) > 0 {
		m.log.Info().Str("profile", id).Int("rows", len(migrated)).Msg("migrated legacy rows")
	}
	for _, k := range collided {
		m.log.Warn().Str("profile", id).Str("key", k).Msg("legacy row left in place: namespaced row already exists")
	}

	if _, err := m.encryptExisting(ctx, id); err != nil {
		return id, fmt.Errorf("vault created but sealing existing rows failed: %w", err)
	}
	return id, nil
}

// migrateLegacy moves rows written before profiles existed into the
// profile's namespace. A row whose destination already exists is skipped
// and reported in collided; running it twice is harmless.
func migrateLegacy(tx storage.Tx, profileID string) (migrated, collided []string, err error) {
	keys, err := tx.Keys("")
	if err != nil {
		return nil, nil, err
	}
	for _, k := range keys {
		if !namespace.IsLegacy(k) {
			continue
		}
		dest := namespace.PhysicalKey(k, profileID)
		_, exists, err := tx.Get(dest)
		if err != nil {
			return nil, nil, err
		}
		if exists {
			collided = append(collided, k)
			continue
		}
		value, _, err := tx.Get(k)
		if err != nil {
			return nil, nil, err
		}
		if err := tx.Put(dest, value); err != nil {
			return nil, nil, err
		}
		if err := tx.Delete(k); err != nil {
			return nil, nil, err
		}
		migrated = append(migrated, k)
	}
	return migrated, collided, nil
}

// EncryptExisting seals every plaintext row of an unlocked profile in
// place and returns how many rows it sealed. Already sealed rows are left
// alone, so the sweep can be repeated after an interruption.
func (m *Manager) EncryptExisting(ctx context.Context, profileID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if profileID == "" {
		profileID = m.current
	}
	return m.encryptExisting(ctx, profileID)
}

func (m *Manager) encryptExisting(ctx context.Context, profileID string) (int, error) {
	keys, err := m.kv.Keys(ctx, namespace.ProfilePrefix(profileID))
	if err != nil {
		return 0, fmt.Errorf("failed to list rows: %w", err)
	}

	sealed := 0
	err = m.withKey(profileID, func(key []byte) error {
		for _, physical := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, ok, err := m.kv.Get(ctx, physical)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", physical, err)
			}
			if !ok {
				continue
			}
			stored, err := crypto.ParseStored([]byte(raw))
			if err != nil {
				m.log.Warn().Err(err).Str("key", physical).Msg("skipping unparseable row")
				continue
			}
			if stored.Encrypted() {
				continue
			}
			env, err := crypto.Encrypt(stored.Plain, key)
			if err != nil {
				return fmt.Errorf("failed to seal %s: %w", physical, err)
			}
			data, err := env.Marshal()
			if err != nil {
				return err
			}
			if err := m.kv.Put(ctx, physical, string(data)); err != nil {
				return fmt.Errorf("failed to store %s: %w", physical, err)
			}
			sealed++
		}
		return nil
	})
	if sealed > 0 {
		m.log.Info().Str("profile", profileID).Int("rows", sealed).Msg("sealed plaintext rows")
	}
	return sealed, err
}
