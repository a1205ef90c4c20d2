package datastore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/vaultkeep/internal/crypto"
	"github.com/illarion/vaultkeep/internal/namespace"
	"github.com/illarion/vaultkeep/internal/storage"
	"github.com/illarion/vaultkeep/internal/vault"
)

type account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fixture struct {
	kv    storage.KV
	vault *vault.Manager
	store *Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv, err := storage.Open(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	m, err := vault.New(context.Background(), kv, vault.Options{
		KDF: crypto.KDFParams{Time: 1, MemoryKiB: 64, Threads: 1},
	})
	require.NoError(t, err)

	s := New(kv, m, nil)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return &fixture{kv: kv, vault: m, store: s}
}

func (f *fixture) raw(t *testing.T, physical string) string {
	t.Helper()
	v, ok, err := f.kv.Get(context.Background(), physical)
	require.NoError(t, err)
	require.True(t, ok, "row %s missing", physical)
	return v
}

func TestLockedVaultScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.vault.Setup(ctx, "correct-horse-battery", "Personal")
	require.NoError(t, err)

	want := []account{{ID: "a1", Name: "GitHub"}}
	require.NoError(t, f.store.Set(ctx, AccountsKey, want))
	assert.NotContains(t, f.raw(t, namespace.PhysicalKey(AccountsKey, vault.DefaultProfileID)), "GitHub")

	require.NoError(t, f.vault.Lock(ctx))
	got, err := f.store.Get(ctx, AccountsKey)
	assert.ErrorIs(t, err, vault.ErrLocked)
	assert.Nil(t, got)

	_, err = f.vault.Unlock(ctx, "correct-horse-battery", "")
	require.NoError(t, err)

	var accounts []account
	found, err := f.store.GetInto(ctx, AccountsKey, &accounts)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, accounts)
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t)

	got, err := f.store.Get(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Nil(t, got)

	var v any
	found, err := f.store.GetInto(context.Background(), "nothing", &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPlaintextFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Before any vault exists writes are plain
	require.NoError(t, f.store.Set(ctx, "settings", map[string]int{"length": 16}))
	physical := namespace.PhysicalKey("settings", vault.DefaultProfileID)
	assert.JSONEq(t, `{"length":16}`, f.raw(t, physical))

	_, err := f.vault.Setup(ctx, "password-one", "Personal")
	require.NoError(t, err)
	require.NoError(t, f.vault.Lock(ctx))

	// A plain row that slipped in after setup is readable without a key
	require.NoError(t, f.kv.Put(ctx, physical, `{"length":20}`))
	got, err := f.store.Get(ctx, "settings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"length":20}`, string(got))

	_, err = f.vault.Unlock(ctx, "password-one", "")
	require.NoError(t, err)
	require.NoError(t, f.store.Set(ctx, "settings", map[string]int{"length": 24}))
	assert.True(t, crypto.IsEnvelope([]byte(f.raw(t, physical))))

	got, err = f.store.Get(ctx, "settings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"length":24}`, string(got))
}

func TestSetRefusedWhileLocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.vault.Setup(ctx, "password-one", "Personal")
	require.NoError(t, err)
	require.NoError(t, f.vault.Lock(ctx))

	err = f.store.Set(ctx, "notes", "would be plaintext")
	assert.ErrorIs(t, err, vault.ErrLocked)

	_, ok, err := f.kv.Get(ctx, namespace.PhysicalKey("notes", vault.DefaultProfileID))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReservedKeysStayPlain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.vault.Setup(ctx, "password-one", "Personal")
	require.NoError(t, err)
	require.NoError(t, f.vault.Lock(ctx))

	got, err := f.store.Get(ctx, namespace.ProfilesKey)
	require.NoError(t, err)
	var profiles []vault.Profile
	require.NoError(t, json.Unmarshal(got, &profiles))
	require.Len(t, profiles, 1)
	assert.Equal(t, "Personal", profiles[0].Name)

	got, err = f.store.Get(ctx, namespace.MetaKey(vault.DefaultProfileID))
	require.NoError(t, err)
	assert.Contains(t, string(got), `"salt"`)
}

func TestStatsFollowCountedKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.vault.Setup(ctx, "password-one", "Personal")
	require.NoError(t, err)

	require.NoError(t, f.store.Set(ctx, AccountsKey, []account{{ID: "a1"}, {ID: "a2"}}))
	require.NoError(t, f.store.Set(ctx, ProjectsKey, []map[string]string{{"id": "p1"}}))
	require.NoError(t, f.store.Set(ctx, "notes", []string{"ignored", "for", "stats"}))

	st, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Accounts)
	assert.Equal(t, 1, st.Projects)
	assert.Equal(t, 2026, st.UpdatedAt.Year())

	// Stats are readable while locked
	require.NoError(t, f.vault.Lock(ctx))
	status, err := f.vault.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Stats[vault.DefaultProfileID].Accounts)

	_, err = f.vault.Unlock(ctx, "password-one", "")
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, AccountsKey))
	st, err = f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Accounts)
	assert.Equal(t, 1, st.Projects)
}

func TestDeleteAndKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Set(ctx, "b", 2))
	require.NoError(t, f.store.Set(ctx, "a", 1))

	keys, err := f.store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, f.store.Delete(ctx, "a"))
	require.NoError(t, f.store.Delete(ctx, "a"), "deleting an absent key is not an error")

	got, err := f.store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProfilesDoNotShareData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.vault.Setup(ctx, "password-x", "X")
	require.NoError(t, err)
	require.NoError(t, f.store.Set(ctx, AccountsKey, []account{{ID: "x1"}}))

	_, err = f.vault.CreateProfile(ctx, "Y", "y")
	require.NoError(t, err)
	_, err = f.vault.Setup(ctx, "password-y", "")
	require.NoError(t, err)

	got, err := f.store.Get(ctx, AccountsKey)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, f.vault.SelectProfile(ctx, vault.DefaultProfileID))
	got, err = f.store.Get(ctx, AccountsKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"x1","name":""}]`, string(got))
}

func TestGetReportsDecryptFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.vault.Setup(ctx, "password-one", "Personal")
	require.NoError(t, err)

	otherKey, err := crypto.GenerateRandom(crypto.KeySize)
	require.NoError(t, err)
	env, err := crypto.Encrypt([]byte(`"x"`), otherKey)
	require.NoError(t, err)
	data, _ := env.Marshal()
	require.NoError(t, f.kv.Put(ctx, namespace.PhysicalKey("foreign", vault.DefaultProfileID), string(data)))

	_, err = f.store.Get(ctx, "foreign")
	assert.ErrorIs(t, err, crypto.ErrDecrypt)
}

func TestPasswordChangeThroughFacade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.vault.Setup(ctx, "password-one", "Personal")
	require.NoError(t, err)
	require.NoError(t, f.store.Set(ctx, AccountsKey, []account{{ID: "a1", Name: "GitHub"}}))

	_, err = f.vault.ChangePassword(ctx, "password-one", "password-two", "")
	require.NoError(t, err)
	require.NoError(t, f.vault.Lock(ctx))

	_, err = f.vault.Unlock(ctx, "password-one", "")
	assert.ErrorIs(t, err, vault.ErrWrongPassword)
	_, err = f.vault.Unlock(ctx, "password-two", "")
	require.NoError(t, err)

	var accounts []account
	_, err = f.store.GetInto(ctx, AccountsKey, &accounts)
	require.NoError(t, err)
	assert.Equal(t, []account{{ID: "a1", Name: "GitHub"}}, accounts)
}
