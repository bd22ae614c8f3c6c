package configstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	path := filepath.Join(t.TempDir(), "config.toml")
	s, err := Open(path)
	require.NoError(t, err)
	return s
}

func TestSetAndGetGlobalKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("image.channel", "nightly", ""))

	v, ok, err := s.Get("image.channel", "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "nightly", v)
}

func TestAgentAliasNormalizesToAgentDefault(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("agent", "my-agent", ""))

	v, ok, err := s.Get("agent.default", "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "my-agent", v)
}

func TestImageChannelRejectsInvalidValue(t *testing.T) {
	s := newTestStore(t)
	err := s.Set("image.channel", "beta", "")
	require.Error(t, err)
}

func TestGlobalDataVolumeIsRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.Set("data_volume", "v", "")
	require.Error(t, err)
}

func TestWorkspaceScopedDataVolume(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("data_volume", "ws-vol", "/home/user/my-ws"))

	v, ok, err := s.Get("data_volume", "/home/user/my-ws")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ws-vol", v)

	_, ok, err = s.Get("data_volume", "/home/user/other-ws")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUnsetClearsKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("agent.default", "my-agent", ""))
	require.NoError(t, s.Unset("agent.default", ""))

	v, ok, err := s.Get("agent.default", "")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "", v)
}

func TestLoadOnMissingFileReturnsEmptyConfig(t *testing.T) {
	s := newTestStore(t)
	cfg, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, cfg.Image.Channel)
	require.NotNil(t, cfg.Workspace)
}

func TestSetPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set("agent.data_volume", "v1", ""))

	s2, err := Open(path)
	require.NoError(t, err)
	v, ok, err := s2.Get("agent.data_volume", "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", v)
}

func TestCanonicalWorkspaceKeyIsAbsoluteAndClean(t *testing.T) {
	key, err := CanonicalWorkspaceKey(".")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(key))
}

func TestWorkspaceConfigPathWalksUpToNearestMatch(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o700))

	cfgDir := filepath.Join(root, "a", ".containai")
	require.NoError(t, os.MkdirAll(cfgDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte("[agent]\ndefault = \"x\"\n"), 0o600))

	found := WorkspaceConfigPath(nested)
	require.Equal(t, filepath.Join(root, "a", ".containai", "config.toml"), found)
}

func TestWorkspaceConfigPathReturnsEmptyWhenNoneExists(t *testing.T) {
	root := t.TempDir()
	require.Equal(t, "", WorkspaceConfigPath(root))
}
