package bundle

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps JSON values in a map
type memStore map[string]json.RawMessage

func (m memStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	return m[key], nil
}

func (m memStore) Set(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m[key] = data
	return nil
}

var exportTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func seeded() memStore {
	return memStore{
		"projects": json.RawMessage(`[{"id":"p1","name":"Website"},{"id":"p2","name":"Billing"}]`),
		"accounts": json.RawMessage(`[
			{"id":"a1","projectId":"p1","name":"GitHub","port":8080},
			{"id":"a2","projectId":"p2","name":"Stripe"},
			{"id":"a3","projectId":"p1","name":"AWS"}
		]`),
	}
}

func TestExport(t *testing.T) {
	b, err := Export(context.Background(), seeded(), "p1", exportTime)
	require.NoError(t, err)

	assert.Equal(t, Version, b.Version)
	assert.Equal(t, exportTime, b.ExportedAt)
	assert.Equal(t, "Website", b.Project["name"])
	require.Len(t, b.Accounts, 2)
	assert.Equal(t, "a1", b.Accounts[0].ID())
	assert.Equal(t, "a3", b.Accounts[1].ID())
	assert.Equal(t, json.Number("8080"), b.Accounts[0]["port"])

	_, err = Export(context.Background(), seeded(), "missing", exportTime)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := Export(ctx, seeded(), "p1", exportTime)
	require.NoError(t, err)
	data, err := b.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	target := memStore{}
	res, err := Import(ctx, target, parsed, false)
	require.NoError(t, err)
	assert.Equal(t, "p1", res.ProjectID)
	assert.False(t, res.ProjectReplaced)
	assert.Equal(t, 2, res.AccountsAdded)

	again, err := Export(ctx, target, "p1", exportTime)
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestImportConflicts(t *testing.T) {
	ctx := context.Background()
	s := seeded()

	b, err := Parse([]byte(`{"version":1,"project":{"id":"p1","name":"Website v2"},
		"accounts":[{"id":"a1","name":"GitHub (new)"},{"name":"Fresh"}]}`))
	require.NoError(t, err)

	_, err = Import(ctx, s, b, false)
	assert.ErrorIs(t, err, ErrProjectExists)

	res, err := Import(ctx, s, b, true)
	require.NoError(t, err)
	assert.True(t, res.ProjectReplaced)
	assert.Equal(t, 1, res.AccountsReplaced)
	assert.Equal(t, 1, res.AccountsAdded)

	var accounts []Record
	require.NoError(t, json.Unmarshal(s["accounts"], &accounts))
	require.Len(t, accounts, 4)
	assert.Equal(t, "GitHub (new)", accounts[0]["name"])
	assert.Equal(t, "p1", accounts[3]["projectId"])
	assert.Len(t, accounts[3].ID(), 36)
}

func TestParseRejects(t *testing.T) {
	for name, input := range map[string]string{
		"not json":      `nope`,
		"wrong version": `{"version":2,"project":{"id":"p1"}}`,
		"no project id": `{"version":1,"project":{"name":"x"}}`,
		"null account":  `{"version":1,"project":{"id":"p1"},"accounts":[null]}`,
	} {
		_, err := Parse([]byte(input))
		assert.ErrorIs(t, err, ErrInvalidBundle, name)
	}
}

func TestDiff(t *testing.T) {
	ctx := context.Background()
	s := seeded()

	b, err := Export(ctx, s, "p1", exportTime)
	require.NoError(t, err)

	out, err := Diff(ctx, s, b)
	require.NoError(t, err)
	assert.Empty(t, out, "unchanged bundle has no diff")

	b.Project["name"] = "Website v2"
	out, err = Diff(ctx, s, b)
	require.NoError(t, err)
	assert.Contains(t, out, "--- vault/p1")
	assert.Contains(t, out, `-    "name": "Website"`)
	assert.Contains(t, out, `+    "name": "Website v2"`)

	fresh, err := Parse([]byte(`{"version":1,"project":{"id":"p9","name":"New"}}`))
	require.NoError(t, err)
	out, err = Diff(ctx, s, fresh)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[2:] {
		assert.True(t, strings.HasPrefix(line, "+"), "new project should be all additions: %q", line)
	}
}
