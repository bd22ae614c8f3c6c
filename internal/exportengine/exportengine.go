// Package exportengine implements the stop engine's pre-stop data-volume
// export path (spec.md §4.9's "invoking the export path for each target"):
// tar the container's data volume out to a host backup directory through a
// disposable container, the same copy-via-disposable-container idiom C14
// uses for imports, run in reverse.
package exportengine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/procrunner"
)

// EngineClient is the narrowed slice of *engine.Adapter the exporter needs.
type EngineClient interface {
	InspectContainer(ctx context.Context, contextName, nameOrID string) (container.InspectResponse, error)
	Capture(ctx context.Context, contextName string, args ...string) (procrunner.CaptureResult, error)
}

// Exporter runs the pre-stop data-volume export used by `cai stop --export`.
type Exporter struct {
	Adapter   EngineClient
	BackupDir string // used as given; New applies no default
	Now       func() time.Time
}

// New creates an Exporter. now defaults to time.Now.
func New(adapter EngineClient, backupDir string, now func() time.Time) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{Adapter: adapter, BackupDir: backupDir, Now: now}
}

// Export tars containerName's data volume to BackupDir/<containerName>-<ts>.tgz.
func (e *Exporter) Export(ctx context.Context, contextName, containerName string) error {
	info, err := e.Adapter.InspectContainer(ctx, contextName, containerName)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", containerName, err)
	}
	if info.Config == nil {
		return fmt.Errorf("container %s has no config", containerName)
	}
	volume := info.Config.Labels[common.LabelPrefix+"data-volume"]
	if volume == "" {
		return fmt.Errorf("container %s has no %sdata-volume label", containerName, common.LabelPrefix)
	}

	archive := fmt.Sprintf("%s-%d.tgz", containerName, e.Now().Unix())
	outDir := e.BackupDir

	res, err := e.Adapter.Capture(ctx, contextName,
		"run", "--rm",
		"-v", volume+":"+common.DataVolumeMountPath+":ro",
		"-v", outDir+":/out",
		common.ProbeImage,
		"tar", "czf", "/out/"+archive, "-C", common.DataVolumeMountPath, ".",
	)
	if err != nil {
		return fmt.Errorf("export %s: %w", containerName, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("export %s: tar exited %d: %s", containerName, res.ExitCode, res.Stderr)
	}
	return nil
}

// ArchivePath returns the path Export would have written to, for callers
// that want to report it without re-deriving the timestamp.
func ArchivePath(backupDir, containerName string, ts time.Time) string {
	return filepath.Join(backupDir, fmt.Sprintf("%s-%d.tgz", containerName, ts.Unix()))
}
