package vault

import (
	"context"
	"fmt"
)

// Unlock verifies password against the profile's verifier, keeps the
// derived key in memory and makes the profile current. An empty profileID
// means the current profile. A wrong password leaves all state unchanged.
func (m *Manager) Unlock(ctx context.Context, password, profileID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if profileID == "" {
		profileID = m.current
	}

	profiles, err := m.loadProfiles(ctx)
	if err != nil {
		return "", err
	}
	if findProfile(profiles, profileID) < 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, profileID)
	}

	meta, err := m.loadMeta(ctx, profileID)
	if err != nil {
		return "", err
	}

	key, err := m.verify(ctx, meta, password)
	if err != nil {
		m.log.Warn().Str("profile", profileID).Msg("unlock rejected")
		return "", err
	}

	if profileID != m.current {
		if err := m.setCurrent(ctx, profileID); err != nil {
			clearKey(key)
			return "", err
		}
	}
	m.storeKey(profileID, key)
	m.log.Info().Str("profile", profileID).Msg("vault unlocked")
	return profileID, nil
}
