package datavolume

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/containai/cai/internal/common"
)

func TestResolvePrefersFlagOverEverything(t *testing.T) {
	got := Resolve(Sources{Flag: "flag-vol", Env: "env-vol", WorkspaceConfig: "ws-vol", GlobalConfig: "global-vol"})
	require.Equal(t, "flag-vol", got)
}

func TestResolveFallsThroughToEnv(t *testing.T) {
	got := Resolve(Sources{Env: "env-vol", WorkspaceConfig: "ws-vol", GlobalConfig: "global-vol"})
	require.Equal(t, "env-vol", got)
}

func TestResolveFallsThroughToWorkspaceConfig(t *testing.T) {
	got := Resolve(Sources{WorkspaceConfig: "ws-vol", GlobalConfig: "global-vol"})
	require.Equal(t, "ws-vol", got)
}

func TestResolveFallsThroughToGlobalConfig(t *testing.T) {
	got := Resolve(Sources{GlobalConfig: "global-vol"})
	require.Equal(t, "global-vol", got)
}

func TestResolveDefaultsWhenNothingSet(t *testing.T) {
	got := Resolve(Sources{})
	require.Equal(t, common.DefaultDataVolume, got)
}
