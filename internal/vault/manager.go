package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/illarion/vaultkeep/internal/crypto"
	"github.com/illarion/vaultkeep/internal/namespace"
	"github.com/illarion/vaultkeep/internal/storage"
)

// Options configures a Manager. The zero value is usable.
type Options struct {
	Logger *zerolog.Logger
	// KDF is the argon2id cost for new salts. Zero means crypto.DefaultKDF.
	KDF crypto.KDFParams
	// Limiter, when set, throttles every password verification.
	Limiter *rate.Limiter
	// Now overrides the clock for profile timestamps.
	Now func() time.Time
}

// Manager owns the profile registry, the current-profile pointer and the
// in-memory key of every unlocked profile.
type Manager struct {
	mu      sync.Mutex
	kv      storage.KV
	log     zerolog.Logger
	kdf     crypto.KDFParams
	limiter *rate.Limiter
	now     func() time.Time

	current string
	keys    map[string]*memguard.Enclave
}

// New creates a Manager over kv and loads the persisted current profile.
// Every profile starts Locked.
func New(ctx context.Context, kv storage.KV, opts Options) (*Manager, error) {
	m := &Manager{
		kv:      kv,
		log:     zerolog.Nop(),
		kdf:     opts.KDF.OrDefault(),
		limiter: opts.Limiter,
		now:     opts.Now,
		keys:    make(map[string]*memguard.Enclave),
	}
	if opts.Logger != nil {
		m.log = opts.Logger.With().Str("component", "vault").Logger()
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}

	current, err := m.loadCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load current profile: %w", err)
	}
	m.current = current
	return m, nil
}

func newProfileID() string {
	return uuid.NewString()
}

// clearKey zeroes a derived key that did not go into an enclave
func clearKey(key []byte) {
	crypto.ClearBytes(key)
}

// CurrentProfile returns the selected profile id
func (m *Manager) CurrentProfile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsUnlocked reports whether a key is held for the profile
func (m *Manager) IsUnlocked(profileID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[profileID]
	return ok
}

// storeKey moves key into an enclave. key is wiped.
func (m *Manager) storeKey(profileID string, key []byte) {
	m.keys[profileID] = memguard.NewEnclave(key)
}

// withKey runs fn with the plaintext key of an unlocked profile. The key
// is only valid inside fn. Caller holds m.mu.
func (m *Manager) withKey(profileID string, fn func(key []byte) error) error {
	enclave, ok := m.keys[profileID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, profileID)
	}
	buf, err := enclave.Open()
	if err != nil {
		return fmt.Errorf("failed to open key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Seal encrypts plaintext with the profile's key. ErrLocked when no key is held.
func (m *Manager) Seal(profileID string, plaintext []byte) (*crypto.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var env *crypto.Envelope
	err := m.withKey(profileID, func(key []byte) error {
		var err error
		env, err = crypto.Encrypt(plaintext, key)
		return err
	})
	return env, err
}

// Open decrypts an envelope with the profile's key. ErrLocked when no key
// is held, crypto.ErrDecrypt when the envelope does not authenticate.
func (m *Manager) Open(profileID string, env *crypto.Envelope) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var plaintext []byte
	err := m.withKey(profileID, func(key []byte) error {
		var err error
		plaintext, err = crypto.Decrypt(env, key)
		return err
	})
	return plaintext, err
}

// Lock drops the current profile's key. Locking a locked profile is a no-op.
func (m *Manager) Lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[m.current]; ok {
		delete(m.keys, m.current)
		m.log.Info().Str("profile", m.current).Msg("vault locked")
	}
	return nil
}

// LockAll drops every held key
func (m *Manager) LockAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.keys)
}

// Stats are plaintext usage counters shown before unlock
type Stats struct {
	Accounts  int       `json:"accounts"`
	Projects  int       `json:"projects"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Status describes the current profile and the registry
type Status struct {
	HasVault bool `json:"hasVault"`
	// Locked is true whenever no key is held for the current profile,
	// including profiles without a vault.
	Locked          bool             `json:"locked"`
	RotationPending bool             `json:"rotationPending"`
	CurrentProfile  string           `json:"currentProfile"`
	Profiles        []Profile        `json:"profiles"`
	Stats           map[string]Stats `json:"stats,omitempty"`
}

// Status reports vault state without side effects
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profiles, err := m.loadProfiles(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		CurrentProfile: m.current,
		Profiles:       profiles,
		Stats:          make(map[string]Stats),
	}
	_, unlocked := m.keys[m.current]
	st.Locked = !unlocked

	meta, err := m.loadMeta(ctx, m.current)
	switch {
	case err == nil:
		st.HasVault = true
		st.RotationPending = meta.Pending != nil
	case !errors.Is(err, ErrNoVault):
		return nil, err
	}

	for _, p := range profiles {
		var s Stats
		found, err := readJSON(ctx, m.kv, namespace.StatsKey(p.ID), &s)
		if err != nil {
			m.log.Warn().Err(err).Str("profile", p.ID).Msg("unreadable stats")
			continue
		}
		if found {
			st.Stats[p.ID] = s
		}
	}
	return st, nil
}
