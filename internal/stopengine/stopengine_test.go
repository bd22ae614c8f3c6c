package stopengine

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/require"

	"github.com/containai/cai/internal/ctnrerr"
)

type fakeEngine struct {
	byContext map[string][]container.Summary
	stopped   []string
	removed   []string
	stopErr   map[string]error
}

func (f *fakeEngine) EnumerateContexts(ctx context.Context) []string {
	var out []string
	for c := range f.byContext {
		out = append(out, c)
	}
	return out
}

func (f *fakeEngine) ListContainersByLabel(ctx context.Context, contextName, label, value string) ([]container.Summary, error) {
	return f.byContext[contextName], nil
}

func (f *fakeEngine) StopContainer(ctx context.Context, contextName, nameOrID string) error {
	if err, ok := f.stopErr[nameOrID]; ok {
		return err
	}
	f.stopped = append(f.stopped, nameOrID)
	return nil
}

func (f *fakeEngine) RemoveContainer(ctx context.Context, contextName, nameOrID string) error {
	f.removed = append(f.removed, nameOrID)
	return nil
}

type fakeExporter struct {
	failFor map[string]bool
	calls   []string
}

func (f *fakeExporter) Export(ctx context.Context, contextName, containerName string) error {
	f.calls = append(f.calls, containerName)
	if f.failFor[containerName] {
		return errors.New("export failed")
	}
	return nil
}

func TestValidateOptionsRejectsAllWithContainer(t *testing.T) {
	err := ValidateOptions(Options{All: true, Container: "x"})
	require.Error(t, err)
}

func TestValidateOptionsRejectsAllWithExport(t *testing.T) {
	err := ValidateOptions(Options{All: true, Export: true})
	require.Error(t, err)
}

func TestResolveAllCollectsAcrossContexts(t *testing.T) {
	fe := &fakeEngine{byContext: map[string][]container.Summary{
		"containai-docker": {{ID: "a", Names: []string{"/ws-a"}}},
		"default":          {{ID: "b", Names: []string{"/ws-b"}}},
	}}
	e := New(fe, nil)
	targets, err := e.Resolve(context.Background(), Options{All: true})
	require.NoError(t, err)
	require.Len(t, targets, 2)
}

func TestResolveNamedContainerAmbiguousAcrossContexts(t *testing.T) {
	fe := &fakeEngine{byContext: map[string][]container.Summary{
		"containai-docker": {{ID: "a", Names: []string{"/dup"}}},
		"containai-secure": {{ID: "b", Names: []string{"/dup"}}},
	}}
	e := New(fe, nil)
	_, err := e.Resolve(context.Background(), Options{Container: "dup"})
	require.Error(t, err)
	require.True(t, ctnrerr.Is(err, ctnrerr.CodeAmbiguous))
}

func TestResolveByWorkspaceLabel(t *testing.T) {
	fe := &fakeEngine{byContext: map[string][]container.Summary{
		"default": {
			{ID: "a", Names: []string{"/ws-a"}, Labels: map[string]string{"containai.workspace": "myws"}},
			{ID: "b", Names: []string{"/ws-b"}, Labels: map[string]string{"containai.workspace": "other"}},
		},
	}}
	e := New(fe, nil)
	targets, err := e.Resolve(context.Background(), Options{WorkspaceName: "myws"})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, "ws-a", targets[0].ContainerName)
}

func TestRunStopsAndRemoves(t *testing.T) {
	fe := &fakeEngine{byContext: map[string][]container.Summary{
		"default": {{ID: "a", Names: []string{"/ws-a"}}},
	}}
	e := New(fe, nil)
	res, err := e.Run(context.Background(), Options{All: true, Remove: true})
	require.NoError(t, err)
	require.Len(t, res.Stopped, 1)
	require.Contains(t, fe.stopped, "ws-a")
	require.Contains(t, fe.removed, "ws-a")
}

func TestRunExportFailureSkipsStopWithoutForce(t *testing.T) {
	fe := &fakeEngine{byContext: map[string][]container.Summary{
		"default": {{ID: "a", Names: []string{"/ws-a"}}},
	}}
	exp := &fakeExporter{failFor: map[string]bool{"ws-a": true}}
	e := New(fe, exp)
	res, err := e.Run(context.Background(), Options{Container: "ws-a", Export: true})
	require.Error(t, err)
	require.Len(t, res.Failed, 1)
	require.Empty(t, fe.stopped)
}

func TestRunExportFailureForcesStopAnyway(t *testing.T) {
	fe := &fakeEngine{byContext: map[string][]container.Summary{
		"default": {{ID: "a", Names: []string{"/ws-a"}}},
	}}
	exp := &fakeExporter{failFor: map[string]bool{"ws-a": true}}
	e := New(fe, exp)
	res, err := e.Run(context.Background(), Options{Container: "ws-a", Export: true, Force: true})
	require.NoError(t, err)
	require.Len(t, res.Stopped, 1)
	require.Contains(t, fe.stopped, "ws-a")
}

func TestRunAggregatesFailures(t *testing.T) {
	fe := &fakeEngine{
		byContext: map[string][]container.Summary{
			"default": {
				{ID: "a", Names: []string{"/ws-a"}},
				{ID: "b", Names: []string{"/ws-b"}},
			},
		},
		stopErr: map[string]error{"ws-b": errors.New("boom")},
	}
	e := New(fe, nil)
	res, err := e.Run(context.Background(), Options{All: true})
	require.Error(t, err)
	require.Len(t, res.Stopped, 1)
	require.Len(t, res.Failed, 1)
}
