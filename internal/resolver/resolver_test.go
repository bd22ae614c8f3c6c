package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/require"

	"github.com/containai/cai/internal/ctnrerr"
)

type fakeEngine struct {
	inspectByName map[string]container.InspectResponse
	byLabel       []container.Summary
	listErr       error
}

func (f fakeEngine) InspectContainer(ctx context.Context, contextName, nameOrID string) (container.InspectResponse, error) {
	if info, ok := f.inspectByName[nameOrID]; ok {
		return info, nil
	}
	return container.InspectResponse{}, errors.New("no such container")
}

func (f fakeEngine) ListContainersByLabel(ctx context.Context, contextName, label, value string) ([]container.Summary, error) {
	return f.byLabel, f.listErr
}

func TestResolveByConfiguredContainerName(t *testing.T) {
	eng := fakeEngine{inspectByName: map[string]container.InspectResponse{
		"my-container": {ContainerJSONBase: &container.ContainerJSONBase{Name: "/my-container"}},
	}}
	r := New(eng)

	name, err := r.Resolve(context.Background(), "containai-docker", "my-ws", "my-container")
	require.NoError(t, err)
	require.Equal(t, "my-container", name)
}

func TestResolveFallsBackToLabelLookupWhenConfiguredNameFails(t *testing.T) {
	eng := fakeEngine{
		byLabel: []container.Summary{{Names: []string{"/resolved-container"}}},
	}
	r := New(eng)

	name, err := r.Resolve(context.Background(), "containai-docker", "my-ws", "missing-container")
	require.NoError(t, err)
	require.Equal(t, "resolved-container", name)
}

func TestResolveNoMatchesReturnsEmpty(t *testing.T) {
	r := New(fakeEngine{})
	name, err := r.Resolve(context.Background(), "containai-docker", "my-ws", "")
	require.NoError(t, err)
	require.Equal(t, "", name)
}

func TestResolveAmbiguousReturnsError(t *testing.T) {
	eng := fakeEngine{byLabel: []container.Summary{
		{Names: []string{"/one"}},
		{Names: []string{"/two"}},
	}}
	r := New(eng)

	_, err := r.Resolve(context.Background(), "containai-docker", "my-ws", "")
	require.Error(t, err)
	require.True(t, ctnrerr.Is(err, ctnrerr.CodeAmbiguous))
}

func TestResolveListErrorPropagates(t *testing.T) {
	r := New(fakeEngine{listErr: errors.New("engine down")})
	_, err := r.Resolve(context.Background(), "containai-docker", "my-ws", "")
	require.Error(t, err)
}
