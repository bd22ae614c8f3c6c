package argvclassify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsContainerCreate(t *testing.T) {
	require.True(t, IsContainerCreate([]string{"run", "alpine"}))
	require.True(t, IsContainerCreate([]string{"create", "alpine"}))
	require.True(t, IsContainerCreate([]string{"container", "run", "alpine"}))
	require.False(t, IsContainerCreate([]string{"container", "ls"}))
	require.False(t, IsContainerCreate([]string{"ps"}))
}

func TestIsContainerCreateIgnoresFlags(t *testing.T) {
	require.True(t, IsContainerCreate([]string{"-D", "run", "alpine"}))
}

func TestIsContainerTargeting(t *testing.T) {
	sub, target, ok := IsContainerTargeting([]string{"exec", "-it", "mycontainer", "bash"})
	require.True(t, ok)
	require.Equal(t, "exec", sub)
	require.Equal(t, "mycontainer", target)

	_, _, ok = IsContainerTargeting([]string{"ps", "-a"})
	require.False(t, ok)
}

func TestHasContextFlag(t *testing.T) {
	require.True(t, HasContextFlag([]string{"--context", "foo", "ps"}))
	require.True(t, HasContextFlag([]string{"--context=foo", "ps"}))
	require.False(t, HasContextFlag([]string{"ps"}))
}

func TestStripWrapperFlags(t *testing.T) {
	in := []string{"--verbose", "run", "--quiet", "alpine"}
	require.Equal(t, []string{"run", "alpine"}, StripWrapperFlags(in))
}

func TestExtractLabels(t *testing.T) {
	args := []string{
		"--label", "devcontainer.config_file=/w/.devcontainer/devcontainer.json",
		"--label=devcontainer.local_folder=/w",
		"run", "mybuilder",
	}
	l := ExtractLabels(args)
	require.Equal(t, "/w/.devcontainer/devcontainer.json", l.ConfigFile)
	require.Equal(t, "/w", l.LocalFolder)
}

func TestExtractLabelsMissing(t *testing.T) {
	l := ExtractLabels([]string{"run", "alpine"})
	require.Empty(t, l.ConfigFile)
	require.Empty(t, l.LocalFolder)
}

func TestRunOrCreateIndices(t *testing.T) {
	idx := RunOrCreateIndices([]string{"--label", "run", "run", "alpine"})
	require.Equal(t, []int{1, 2}, idx)
}
