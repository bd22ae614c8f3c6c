package exportengine

import (
	"context"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/require"

	"github.com/containai/cai/internal/procrunner"
)

type fakeEngine struct {
	info      container.InspectResponse
	inspectErr error
	captured  []string
	exitCode  int
}

func (f *fakeEngine) InspectContainer(ctx context.Context, contextName, nameOrID string) (container.InspectResponse, error) {
	return f.info, f.inspectErr
}

func (f *fakeEngine) Capture(ctx context.Context, contextName string, args ...string) (procrunner.CaptureResult, error) {
	f.captured = args
	return procrunner.CaptureResult{ExitCode: f.exitCode}, nil
}

func withDataVolumeLabel(volume string) container.InspectResponse {
	return container.InspectResponse{
		Config: &container.Config{Labels: map[string]string{"containai.data-volume": volume}},
	}
}

func TestExportRunsTarWithVolumeAndBackupDir(t *testing.T) {
	fe := &fakeEngine{info: withDataVolumeLabel("containai-data")}
	fixedNow := func() time.Time { return time.Unix(1000, 0) }
	e := New(fe, "/tmp/backups", fixedNow)

	require.NoError(t, e.Export(context.Background(), "containai-docker", "devcontainer-w"))
	require.Contains(t, fe.captured, "containai-data:/mnt/agent-data:ro")
	require.Contains(t, fe.captured, "/tmp/backups:/out")
	require.Contains(t, fe.captured, "/out/devcontainer-w-1000.tgz")
}

func TestExportFailsWithoutDataVolumeLabel(t *testing.T) {
	fe := &fakeEngine{info: container.InspectResponse{Config: &container.Config{Labels: map[string]string{}}}}
	e := New(fe, "/tmp/backups", nil)

	err := e.Export(context.Background(), "containai-docker", "devcontainer-w")
	require.Error(t, err)
}

func TestExportFailsWhenTarExitsNonzero(t *testing.T) {
	fe := &fakeEngine{info: withDataVolumeLabel("containai-data"), exitCode: 1}
	e := New(fe, "/tmp/backups", nil)

	err := e.Export(context.Background(), "containai-docker", "devcontainer-w")
	require.Error(t, err)
}
