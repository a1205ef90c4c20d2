package vault

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illarion/vaultkeep/internal/crypto"
	"github.com/illarion/vaultkeep/internal/namespace"
)

const (
	MinPasswordLength   = 6
	passwordCheckString = "vaultkeep-password-check"
)

// VaultMeta lets an unlock attempt be verified without storing the
// password or the key. Salt is base64 in JSON.
type VaultMeta struct {
	Salt     []byte            `json:"salt"`
	Verifier *crypto.Envelope  `json:"verifier"`
	KDF      *crypto.KDFParams `json:"kdf,omitempty"`
	// Pending is the target of a password change that has started but not
	// yet replaced Salt and Verifier.
	Pending *Rotation `json:"pending,omitempty"`
}

// Rotation is the new-password half of an in-flight password change
type Rotation struct {
	Salt     []byte            `json:"salt"`
	Verifier *crypto.Envelope  `json:"verifier"`
	KDF      *crypto.KDFParams `json:"kdf,omitempty"`
}

func (m *Manager) loadMeta(ctx context.Context, id string) (*VaultMeta, error) {
	var meta VaultMeta
	found, err := readJSON(ctx, m.kv, namespace.MetaKey(id), &meta)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoVault, id)
	}
	return &meta, nil
}

func (m *Manager) hasMeta(ctx context.Context, id string) (bool, error) {
	_, ok, err := m.kv.Get(ctx, namespace.MetaKey(id))
	return ok, err
}

func (m *Manager) storeMeta(ctx context.Context, id string, meta *VaultMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode vault meta: %w", err)
	}
	if err := m.kv.Put(ctx, namespace.MetaKey(id), string(data)); err != nil {
		return fmt.Errorf("failed to store vault meta: %w", err)
	}
	return nil
}

// newVerifier derives a key for password under a fresh salt and builds the
// matching verifier. The caller owns the returned key.
func (m *Manager) newVerifier(password string) (salt []byte, verifier *crypto.Envelope, key []byte, err error) {
	salt, err = crypto.NewSalt()
	if err != nil {
		return nil, nil, nil, err
	}
	key = crypto.DeriveKey([]byte(password), salt, m.kdf)
	verifier, err = crypto.Encrypt([]byte(passwordCheckString), key)
	if err != nil {
		clearKey(key)
		return nil, nil, nil, fmt.Errorf("failed to encrypt verifier: %w", err)
	}
	return salt, verifier, key, nil
}

// checkPassword derives the key for password and opens the verifier with it.
// Any mismatch, including a corrupted verifier, is ErrWrongPassword.
func checkPassword(password string, salt []byte, verifier *crypto.Envelope, params *crypto.KDFParams) ([]byte, error) {
	if len(salt) != crypto.SaltSize || verifier == nil {
		return nil, ErrWrongPassword
	}
	var p crypto.KDFParams
	if params != nil {
		p = *params
	}
	key := crypto.DeriveKey([]byte(password), salt, p)

	check, err := crypto.Decrypt(verifier, key)
	if err != nil || !crypto.ConstantTimeCompare(check, []byte(passwordCheckString)) {
		clearKey(key)
		return nil, ErrWrongPassword
	}
	return key, nil
}

// verify throttles and then checks password against the profile's current
// salt and verifier. The caller owns the returned key.
func (m *Manager) verify(ctx context.Context, meta *VaultMeta, password string) ([]byte, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return checkPassword(password, meta.Salt, meta.Verifier, meta.KDF)
}

// HasVault reports whether the profile has VaultMeta
func (m *Manager) HasVault(ctx context.Context, profileID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasMeta(ctx, profileID)
}
