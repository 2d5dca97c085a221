package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLoadRegistry_MissingFileIsEmpty(t *testing.T) {
	r, err := LoadRegistry(filepath.Join(t.TempDir(), "profiles.yaml"))
	require.NoError(t, err)
	require.Equal(t, 0, r.Len())

	_, ok := r.Current()
	require.False(t, ok)
}

func TestRegistry_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")

	r := NewRegistry()
	r.Insert("local", FileKind())
	r.Insert("sub", RemoteKind("https://example.com/sub?token=abc"))
	r.Insert("t1.generated", DerivedKind("t1"))
	r.SetCurrent(Profile{Name: "sub"})
	require.NoError(t, r.Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Equal(t, []string{"local", "sub", "t1.generated"}, loaded.All())

	kind, ok := loaded.Get("sub")
	require.True(t, ok)
	assert.Equal(t, RemoteKind("https://example.com/sub?token=abc"), kind)

	kind, ok = loaded.Get("t1.generated")
	require.True(t, ok)
	assert.Equal(t, DerivedKind("t1"), kind)

	cur, ok := loaded.Current()
	require.True(t, ok)
	assert.Equal(t, "sub", cur.Name)
}

func TestLoadRegistry_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `entries:
  a: File
  b:
    Url: https://example.com/b
  t.generated:
    Generated: t
current: b
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := LoadRegistry(path)
	require.NoError(t, err)

	kind, _ := r.Get("a")
	assert.Equal(t, FileKind(), kind)
	kind, _ = r.Get("b")
	assert.Equal(t, RemoteKind("https://example.com/b"), kind)
	kind, _ = r.Get("t.generated")
	assert.Equal(t, DerivedKind("t"), kind)

	cur, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, "b", cur.Name)
}

func TestLoadRegistry_DanglingCurrentDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries:\n  a: File\ncurrent: gone\n"), 0o600))

	r, err := LoadRegistry(path)
	require.NoError(t, err)
	_, ok := r.Current()
	require.False(t, ok)
}

func TestLoadRegistry_InvalidKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries:\n  a: Folder\n"), 0o600))

	_, err := LoadRegistry(path)
	require.Error(t, err)
}

func TestRegistry_SetCurrentUnknownPanics(t *testing.T) {
	r := NewRegistry()
	require.Panics(t, func() {
		r.SetCurrent(Profile{Name: "missing"})
	})
}

func TestRegistry_RemoveCurrentClearsPointer(t *testing.T) {
	r := NewRegistry()
	r.Insert("a", FileKind())
	r.Insert("b", FileKind())
	r.SetCurrent(Profile{Name: "a"})

	_, ok := r.Remove("b")
	require.True(t, ok)
	cur, ok := r.Current()
	require.True(t, ok)
	require.Equal(t, "a", cur.Name)

	_, ok = r.Remove("a")
	require.True(t, ok)
	_, ok = r.Current()
	require.False(t, ok, "removing the current profile must clear the pointer")
}

func TestRegistry_InsertReturnsPrevious(t *testing.T) {
	r := NewRegistry()
	_, existed := r.Insert("a", FileKind())
	require.False(t, existed)

	prev, existed := r.Insert("a", RemoteKind("https://x"))
	require.True(t, existed)
	require.Equal(t, FileKind(), prev)
}

func genKind(t *rapid.T) Kind {
	switch rapid.IntRange(0, 2).Draw(t, "tag") {
	case 0:
		return FileKind()
	case 1:
		return RemoteKind(rapid.StringMatching(`https://[a-z]{1,8}\.example/[a-z0-9]{0,6}`).Draw(t, "url"))
	default:
		return DerivedKind(rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "template"))
	}
}

func TestProperty_InsertThenGet(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRegistry()
		names := rapid.SliceOfDistinct(rapid.StringMatching(`[a-z][a-z0-9._-]{0,12}`), rapid.ID[string]).Draw(rt, "names")
		want := make(map[string]Kind, len(names))
		for _, n := range names {
			k := genKind(rt)
			r.Insert(n, k)
			want[n] = k
		}

		for n, k := range want {
			got, ok := r.Get(n)
			require.True(rt, ok)
			require.Equal(rt, k, got)
		}
		require.Len(rt, r.All(), len(want))

		for _, n := range names {
			_, ok := r.Remove(n)
			require.True(rt, ok)
			_, ok = r.Get(n)
			require.False(rt, ok)
		}
		require.Equal(rt, 0, r.Len())
	})
}

func TestProperty_SetCurrentVisible(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRegistry()
		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,6}`), 1, 8, rapid.ID[string]).Draw(rt, "names")
		for _, n := range names {
			r.Insert(n, FileKind())
		}
		pick := rapid.SampledFrom(names).Draw(rt, "pick")

		r.SetCurrent(Profile{Name: pick})
		cur, ok := r.Current()
		require.True(rt, ok)
		require.Equal(rt, pick, cur.Name)

		unknown := pick + "-missing"
		require.Panics(rt, func() { r.SetCurrent(Profile{Name: unknown}) })
	})
}

func TestProperty_SaveLoadPreservesEntries(t *testing.T) {
	dir := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRegistry()
		names := rapid.SliceOfDistinct(rapid.StringMatching(`[a-z]{1,6}`), rapid.ID[string]).Draw(rt, "names")
		for _, n := range names {
			r.Insert(n, genKind(rt))
		}
		path := filepath.Join(dir, "profiles.yaml")
		require.NoError(rt, r.Save(path))

		loaded, err := LoadRegistry(path)
		require.NoError(rt, err)
		require.Equal(rt, r.All(), loaded.All())
		for _, n := range names {
			want, _ := r.Get(n)
			got, _ := loaded.Get(n)
			require.Equal(rt, want, got)
		}
	})
}
