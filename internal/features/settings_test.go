package features

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseContainAIFeature(t *testing.T) {
	src := []byte(`{
		// leading comment
		"features": {
			"ghcr.io/novotnyllc/containai/agent:1": {
				"dataVolume": "containai-data",
				"remoteUser": "agent",
				"enableCredentials": "true"
			}
		}
	}`)

	s, err := Parse(src)
	require.NoError(t, err)
	require.True(t, s.HasContainAIFeature)
	require.Equal(t, "containai-data", s.DataVolume)
	require.Equal(t, "agent", s.RemoteUser)
	require.True(t, s.EnableCredentials)
}

func TestParseNoFeature(t *testing.T) {
	s, err := Parse([]byte(`{"features": {"ghcr.io/devcontainers/features/go:1": {}}}`))
	require.NoError(t, err)
	require.False(t, s.HasContainAIFeature)
	require.Equal(t, "containai-data", s.DataVolume)
	require.Equal(t, "vscode", s.RemoteUser)
	require.False(t, s.EnableCredentials)
}

func TestParseTopLevelRemoteUserOverrides(t *testing.T) {
	src := []byte(`{
		"remoteUser": "root",
		"features": {"containai/agent": {"remoteUser": "agent"}}
	}`)
	s, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, "root", s.RemoteUser)
}

func TestParseInvalidTopLevelRemoteUserIgnored(t *testing.T) {
	src := []byte(`{
		"remoteUser": "Invalid-User",
		"features": {"containai/agent": {"remoteUser": "agent"}}
	}`)
	s, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, "agent", s.RemoteUser)
}

func TestParseInvalidDataVolumeFallsBackToDefault(t *testing.T) {
	src := []byte(`{"features": {"containai/agent": {"dataVolume": "../escape"}}}`)
	s, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, "containai-data", s.DataVolume)
}

func TestStripCommentsIdempotent(t *testing.T) {
	src := []byte("{\n  // comment\n  \"a\": 1,\n  /* block\n  comment */\n  \"b\": 2\n}\n")
	once := StripComments(src)
	twice := StripComments(once)
	require.Equal(t, string(once), string(twice))
}

func TestIsValidVolumeName(t *testing.T) {
	valid := []string{"containai-data", "a", "a.b_c-1"}
	invalid := []string{"", ".", "..", "a:b", "a/b", "a~b", "-leading"}

	for _, v := range valid {
		require.True(t, IsValidVolumeName(v), v)
	}
	for _, v := range invalid {
		require.False(t, IsValidVolumeName(v), v)
	}
}
