package portalloc

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	allPorts   map[int]bool
	owned      map[string]int
	hasOwnedOk map[string]bool
}

func (f fakeLookup) AllManagedSSHPorts(ctx context.Context) (map[int]bool, error) {
	return f.allPorts, nil
}

func (f fakeLookup) WorkspaceOwnedPort(ctx context.Context, workspaceName string) (int, bool, error) {
	p, ok := f.owned[workspaceName]
	return p, ok, nil
}

func newTestAllocator(t *testing.T, lookup ContainerLookup) *Allocator {
	dir := t.TempDir()
	a := New(dir, lookup, nil)
	a.isListening = func(int) bool { return false }
	return a
}

func TestAllocateFreshWorkspace(t *testing.T) {
	a := newTestAllocator(t, fakeLookup{allPorts: map[int]bool{}})
	p, err := a.Allocate(context.Background(), "w", "w")
	require.NoError(t, err)
	require.Equal(t, 2400, p)
}

func TestAllocateReusesPersistedPort(t *testing.T) {
	a := newTestAllocator(t, fakeLookup{allPorts: map[int]bool{}})
	p1, err := a.Allocate(context.Background(), "w", "w")
	require.NoError(t, err)
	p2, err := a.Allocate(context.Background(), "w", "w")
	require.NoError(t, err)
	require.Equal(t, p1, p2)

	data, err := os.ReadFile(filepath.Join(a.portsDir, "devcontainer-w"))
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(p1), string(data))
}

func TestAllocateSkipsReservedPorts(t *testing.T) {
	a := newTestAllocator(t, fakeLookup{allPorts: map[int]bool{2400: true}})
	p, err := a.Allocate(context.Background(), "w2", "w2")
	require.NoError(t, err)
	require.Equal(t, 2401, p)
}

func TestAllocateDistinctWorkspacesDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	lookup := fakeLookup{allPorts: map[int]bool{}}
	a := New(dir, lookup, nil)
	a.isListening = func(int) bool { return false }

	p1, err := a.Allocate(context.Background(), "a", "a")
	require.NoError(t, err)
	p2, err := a.Allocate(context.Background(), "b", "b")
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)
}

func TestAllocateFallsBackWhenExhausted(t *testing.T) {
	reserved := make(map[int]bool)
	for p := 2400; p <= 2499; p++ {
		reserved[p] = true
	}
	a := newTestAllocator(t, fakeLookup{allPorts: reserved})
	p, err := a.Allocate(context.Background(), "w", "w")
	require.NoError(t, err)
	require.Equal(t, 2322, p)
}

func TestAllocateStaleListeningPortReconciledByOwner(t *testing.T) {
	a := newTestAllocator(t, fakeLookup{
		allPorts: map[int]bool{},
		owned:    map[string]int{"w": 2400},
	})
	require.NoError(t, os.MkdirAll(a.portsDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(a.portsDir, "devcontainer-w"), []byte("2400"), 0o600))
	a.isListening = func(p int) bool { return p == 2400 }

	p, err := a.Allocate(context.Background(), "w", "w")
	require.NoError(t, err)
	require.Equal(t, 2400, p)
}
