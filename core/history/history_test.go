package history

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memHistory(flags Flags) *History {
	return New(afero.NewMemMapFs(), "/state/history", 100, flags)
}

func TestAddAssignsSequentialIDs(t *testing.T) {
	h := memHistory(0)

	assert.Equal(t, uint64(1), h.Add("first"))
	assert.Equal(t, uint64(2), h.Add("second"))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, "first", h.Entry(0).Line)
	assert.Equal(t, -1, h.Entry(0).Status)
}

func TestAddFiltering(t *testing.T) {
	tests := []struct {
		name  string
		flags Flags
		lines []string
		want  []string
	}{
		{
			"empty lines dropped",
			IgnoreEmpty,
			[]string{"ls", "", "   ", "pwd"},
			[]string{"ls", "pwd"},
		},
		{
			"leading space dropped",
			IgnoreSpace,
			[]string{"ls", " secret", "pwd"},
			[]string{"ls", "pwd"},
		},
		{
			"consecutive dups dropped",
			IgnoreDups,
			[]string{"ls", "ls", "pwd", "ls"},
			[]string{"ls", "pwd", "ls"},
		},
		{
			"trailing whitespace trimmed",
			TrimTrailing,
			[]string{"ls -l  \t"},
			[]string{"ls -l"},
		},
		{
			"trim makes dups visible",
			TrimTrailing | IgnoreDups,
			[]string{"ls", "ls  "},
			[]string{"ls"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := memHistory(tc.flags)
			for _, line := range tc.lines {
				h.Add(line)
			}
			var got []string
			for _, e := range h.Entries() {
				got = append(got, e.Line)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAddFilteredReturnsZero(t *testing.T) {
	h := memHistory(IgnoreEmpty)
	assert.Zero(t, h.Add("   "))
}

func TestSetStatusLast(t *testing.T) {
	h := memHistory(0)
	h.SetStatusLast(3) // empty history: no-op

	h.Add("false")
	h.SetStatusLast(1)
	assert.Equal(t, 1, h.Entry(0).Status)
}

func TestStifleKeepsNewest(t *testing.T) {
	h := New(afero.NewMemMapFs(), "/h", 3, 0)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		h.Add(l)
	}

	require.Equal(t, 3, h.Len())
	assert.Equal(t, "c", h.Entry(0).Line)
	assert.Equal(t, "e", h.Entry(2).Line)
}

func TestClear(t *testing.T) {
	h := memHistory(0)
	h.Add("x")
	h.Clear()
	assert.Zero(t, h.Len())
}

func TestSaveLoadRoundtrip(t *testing.T) {
	fs := afero.NewMemMapFs()

	h := New(fs, "/state/history", 100, 0)
	h.Add("echo one")
	h.SetStatusLast(0)
	h.Add("false")
	h.SetStatusLast(1)
	require.NoError(t, h.Save())

	loaded := New(fs, "/state/history", 100, 0)
	require.NoError(t, loaded.Load())

	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, "echo one", loaded.Entry(0).Line)
	assert.Equal(t, 0, loaded.Entry(0).Status)
	assert.Equal(t, "false", loaded.Entry(1).Line)
	assert.Equal(t, 1, loaded.Entry(1).Status)
	assert.False(t, loaded.Entry(0).When.IsZero())
}

func TestLoadMissingFile(t *testing.T) {
	h := New(afero.NewMemMapFs(), "/nope", 100, 0)
	assert.NoError(t, h.Load())
	assert.Zero(t, h.Len())
}

func TestLoadPlainTextFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/old", []byte("ls -l\ncd /tmp\n"), 0o600))

	h := New(fs, "/old", 100, 0)
	require.NoError(t, h.Load())

	require.Equal(t, 2, h.Len())
	assert.Equal(t, "ls -l", h.Entry(0).Line)
	assert.Equal(t, -1, h.Entry(0).Status)
}

func TestLoadRespectsCap(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/h", []byte("a\nb\nc\nd\n"), 0o600))

	h := New(fs, "/h", 2, 0)
	require.NoError(t, h.Load())
	require.Equal(t, 2, h.Len())
	assert.Equal(t, "c", h.Entry(0).Line)
}

func TestSaveCreatesParentDirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	h := New(fs, "/deeply/nested/dir/history", 100, 0)
	h.Add("x")
	require.NoError(t, h.Save())

	exists, err := afero.Exists(fs, "/deeply/nested/dir/history")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDefaultPathHonorsXDG(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/xdg/state/thrash/history", path)

	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/u")
	path, err = DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/home/u/.thrash_history", path)
}
