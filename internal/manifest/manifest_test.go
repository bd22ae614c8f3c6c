package manifest

import "testing"

import "github.com/stretchr/testify/require"

func TestParseFiltersGlobalAndEmptySource(t *testing.T) {
	data := []byte(`
[[entry]]
type = "entry"
source = ".gitconfig"
target = "home/.gitconfig"
flags = "fg"

[[entry]]
type = "entry"
source = ""
target = "ignored"

[[entry]]
type = "entry"
source = ".global-thing"
target = "ignored"
flags = "G"

[[entry]]
type = "comment"
source = "should-not-appear"
`)
	entries, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ".gitconfig", entries[0].Source)
}

func TestEntryFlagHelpers(t *testing.T) {
	e := Entry{Flags: "dsp"}
	require.True(t, e.IsDir())
	require.True(t, e.IsSecret())
	require.True(t, e.HasFlag('p'))
	require.False(t, e.HasFlag('g'))
	require.False(t, e.IsGlobal())
}

func TestDefaultManifestHasNoGlobalEntries(t *testing.T) {
	for _, e := range Default() {
		require.False(t, e.IsGlobal())
		require.NotEmpty(t, e.Source)
	}
}
