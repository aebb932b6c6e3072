package sshconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpulab/gpulab/internal/fault"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(filepath.Join(t.TempDir(), "config"))
	require.NoError(t, err)
	return reg
}

func entry(alias, id string) Entry {
	return Entry{
		Alias:        alias,
		InstanceID:   id,
		HostName:     "203.0.113.7",
		User:         "ubuntu",
		IdentityFile: "/home/u/.ssh/id_ed25519",
		Port:         22,
	}
}

func TestAddAndList(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	require.NoError(t, reg.Add(entry("gpu1", "i-0aaa")))
	require.NoError(t, reg.Add(entry("gpu2", "i-0bbb")))

	entries, err := reg.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "gpu1", entries[0].Alias)
	assert.Equal(t, "i-0bbb", entries[1].InstanceID)
}

func TestAdd_DuplicateAliasRejected(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	require.NoError(t, reg.Add(entry("gpu1", "i-0aaa")))

	err := reg.Add(entry("gpu1", "i-0bbb"))
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Validation))
}

func TestNextAlias(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)

	// Empty registry starts at 1.
	alias, err := reg.NextAlias("gpu")
	require.NoError(t, err)
	assert.Equal(t, "gpu1", alias)

	// Gaps are reused.
	require.NoError(t, reg.Add(entry("gpu1", "i-0aaa")))
	require.NoError(t, reg.Add(entry("gpu3", "i-0ccc")))
	alias, err = reg.NextAlias("gpu")
	require.NoError(t, err)
	assert.Equal(t, "gpu2", alias)

	// Contiguous aliases extend the sequence.
	require.NoError(t, reg.Add(entry("gpu2", "i-0bbb")))
	alias, err = reg.NextAlias("gpu")
	require.NoError(t, err)
	assert.Equal(t, "gpu4", alias)
}

func TestNextAlias_IgnoresForeignAliases(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	require.NoError(t, reg.Add(entry("myserver", "i-0aaa")))
	require.NoError(t, reg.Add(entry("gpu0", "i-0bbb")))

	alias, err := reg.NextAlias("gpu")
	require.NoError(t, err)
	assert.Equal(t, "gpu1", alias)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	require.NoError(t, reg.Add(entry("gpu1", "i-0aaa")))

	removed, err := reg.Remove("gpu1")
	require.NoError(t, err)
	assert.True(t, removed)

	// Removing an absent alias is not an error.
	removed, err = reg.Remove("gpu1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRemoveByInstance(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	require.NoError(t, reg.Add(entry("gpu1", "i-0aaa")))

	alias, err := reg.RemoveByInstance("i-0aaa")
	require.NoError(t, err)
	assert.Equal(t, "gpu1", alias)

	alias, err = reg.RemoveByInstance("i-0aaa")
	require.NoError(t, err)
	assert.Equal(t, "", alias)
}

func TestPreservesUnmanagedContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config")
	userBlock := "# my own config\nHost work\n    HostName work.example.com\n    User me\n"
	require.NoError(t, os.WriteFile(path, []byte(userBlock), 0o600))

	reg, err := NewRegistry(path)
	require.NoError(t, err)
	require.NoError(t, reg.Add(entry("gpu1", "i-0aaa")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Host work")
	assert.Contains(t, string(data), "HostName work.example.com")
	assert.Contains(t, string(data), beginMarker+"gpu1 (i-0aaa) >>>")

	// Removing the managed entry leaves the user's block untouched.
	_, err = reg.Remove("gpu1")
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Host work")
	assert.NotContains(t, string(data), "gpu1")
}

func TestMalformedManagedBlockLeftAlone(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config")
	// Begin marker without end marker: hand-edited beyond recognition.
	broken := beginMarker + "gpu9 (i-0zzz) >>>\nHost gpu9\n"
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o600))

	reg, err := NewRegistry(path)
	require.NoError(t, err)

	entries, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A rewrite keeps the broken block as raw text.
	require.NoError(t, reg.Add(entry("gpu1", "i-0aaa")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gpu9 (i-0zzz)")
}

func TestResolve(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	require.NoError(t, reg.Add(entry("gpu1", "i-0123456789abcdef0")))

	// Raw instance ids pass through without touching the registry.
	id, err := reg.Resolve("i-0123456789abcdef0")
	require.NoError(t, err)
	assert.Equal(t, "i-0123456789abcdef0", id)

	id, err = reg.Resolve("gpu1")
	require.NoError(t, err)
	assert.Equal(t, "i-0123456789abcdef0", id)

	_, err = reg.Resolve("nonsense")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.NotFound))
}

func TestNonDefaultPortRoundTrip(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	e := entry("gpu1", "i-0aaa")
	e.Port = 2222
	require.NoError(t, reg.Add(e))

	got, err := reg.FindByAlias("gpu1")
	require.NoError(t, err)
	assert.Equal(t, 2222, got.Port)

	data, err := os.ReadFile(reg.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "Port 2222")
}

func TestMissingFileParsesEmpty(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	entries, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
