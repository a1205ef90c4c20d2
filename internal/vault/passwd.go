package vault

import (
	"context"
	"fmt"

	"github.com/illarion/vaultkeep/internal/crypto"
	"github.com/illarion/vaultkeep/internal/namespace"
)

// RotationReport summarizes a password change
type RotationReport struct {
	ProfileID string
	// Resumed is set when an earlier interrupted change was picked up
	Resumed bool
	// Reencrypted rows were opened with the old key and sealed with the new one
	Reencrypted int
	// Sealed rows were plaintext and are now sealed with the new key
	Sealed int
	// AlreadyCurrent rows were sealed with the new key by an earlier run
	AlreadyCurrent int
	// Skipped rows could not be opened with either key and were left as is
	Skipped []string
}

// ChangePassword re-encrypts every row of a profile from the key of
// oldPassword to the key of newPassword and then replaces the profile's
// VaultMeta. oldPassword is verified whether or not the profile is
// unlocked. An empty profileID means the current profile.
//
// The new salt and verifier are recorded as pending before the first row
// is touched. Rows are rewritten one at a time without a surrounding
// transaction, so an interrupted change leaves rows under both keys; the
// same oldPassword/newPassword pair run again finishes it. A different
// newPassword is refused with ErrRotationPending while one is pending.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword, profileID string) (*RotationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if profileID == "" {
		profileID = m.current
	}

	meta, err := m.loadMeta(ctx, profileID)
	if err != nil {
		return nil, err
	}
	oldKey, err := m.verify(ctx, meta, oldPassword)
	if err != nil {
		return nil, err
	}
	defer clearKey(oldKey)

	if len(newPassword) < MinPasswordLength {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrWeakPassword, MinPasswordLength)
	}

	report := &RotationReport{ProfileID: profileID}

	var newKey []byte
	if meta.Pending != nil {
		newKey, err = checkPassword(newPassword, meta.Pending.Salt, meta.Pending.Verifier, meta.Pending.KDF)
		if err != nil {
			return nil, fmt.Errorf("%w: re-run with the new password of the interrupted change", ErrRotationPending)
		}
		report.Resumed = true
		m.log.Info().Str("profile", profileID).Msg("resuming interrupted password change")
	} else {
		salt, verifier, key, err := m.newVerifier(newPassword)
		if err != nil {
			return nil, err
		}
		kdf := m.kdf
		meta.Pending = &Rotation{Salt: salt, Verifier: verifier, KDF: &kdf}
		if err := m.storeMeta(ctx, profileID, meta); err != nil {
			clearKey(key)
			return nil, err
		}
		newKey = key
	}

	if err := m.reencrypt(ctx, profileID, oldKey, newKey, report); err != nil {
		clearKey(newKey)
		return report, err
	}

	done := &VaultMeta{
		Salt:     meta.Pending.Salt,
		Verifier: meta.Pending.Verifier,
		KDF:      meta.Pending.KDF,
	}
	if err := m.storeMeta(ctx, profileID, done); err != nil {
		clearKey(newKey)
		return report, err
	}

	m.storeKey(profileID, newKey)
	m.log.Info().
		Str("profile", profileID).
		Int("reencrypted", report.Reencrypted).
		Int("sealed", report.Sealed).
		Int("current", report.AlreadyCurrent).
		Int("skipped", len(report.Skipped)).
		Msg("password changed")
	return report, nil
}

// reencrypt moves every row under the profile's prefix to newKey. Rows
// that neither key opens are reported and never rewritten.
func (m *Manager) reencrypt(ctx context.Context, profileID string, oldKey, newKey []byte, report *RotationReport) error {
	keys, err := m.kv.Keys(ctx, namespace.ProfilePrefix(profileID))
	if err != nil {
		return fmt.Errorf("failed to list rows: %w", err)
	}

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
			report.Skipped = append(report.Skipped, physical)
			continue
		}

		var plaintext []byte
		if stored.Encrypted() {
			plaintext, err = crypto.Decrypt(stored.Envelope, oldKey)
			if err != nil {
				if _, err := crypto.Decrypt(stored.Envelope, newKey); err == nil {
					report.AlreadyCurrent++
					continue
				}
				m.log.Warn().Str("key", physical).Msg("row does not open with the old key, left untouched")
				report.Skipped = append(report.Skipped, physical)
				continue
			}
		} else {
			plaintext = stored.Plain
		}

		env, err := crypto.Encrypt(plaintext, newKey)
		crypto.ClearBytes(plaintext)
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

		if stored.Encrypted() {
			report.Reencrypted++
		} else {
			report.Sealed++
		}
	}
	return nil
}
