package labels

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndFromMapRoundTrip(t *testing.T) {
	m := Build(BuildOptions{Workspace: "my-ws", DataVol: "containai-data", SSHPort: 2401, Keep: true})

	s := FromMap(m)
	require.True(t, s.Managed)
	require.Equal(t, TypeDevcontainer, s.Type)
	require.Equal(t, "my-ws", s.Workspace)
	require.Equal(t, "containai-data", s.DataVol)
	require.Equal(t, 2401, s.SSHPort)
	require.True(t, s.Keep)
	require.False(t, s.Created.IsZero())
}

func TestBuildOmitsKeepWhenFalse(t *testing.T) {
	m := Build(BuildOptions{Workspace: "ws", DataVol: "v", SSHPort: 2400})
	_, ok := m[Keep]
	require.False(t, ok)

	s := FromMap(m)
	require.False(t, s.Keep)
}

func TestArgsIsStableOrder(t *testing.T) {
	m := Build(BuildOptions{Workspace: "ws", DataVol: "v", SSHPort: 2400, Keep: true})
	args1 := Args(m)
	args2 := Args(m)
	require.Equal(t, args1, args2)
	require.Contains(t, args1, "--label")
	require.Contains(t, args1, Managed+"=true")
}

func TestFromMapHandlesMissingFields(t *testing.T) {
	s := FromMap(map[string]string{})
	require.False(t, s.Managed)
	require.Equal(t, 0, s.SSHPort)
	require.True(t, s.Created.IsZero())
}
