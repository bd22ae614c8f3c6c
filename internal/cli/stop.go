package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/doctor"
	"github.com/containai/cai/internal/exportengine"
	"github.com/containai/cai/internal/output"
	"github.com/containai/cai/internal/stopengine"
)

var (
	stopAll       bool
	stopContainer string
	stopExport    bool
	stopForce     bool
	stopRemove    bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop managed containers across every enumerated context",
	Long: `stop resolves target containers — across all contexts, by name,
or by the current workspace — optionally exports each one's data volume
first, stops it, and removes it with --remove.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "stop every managed container")
	stopCmd.Flags().StringVar(&stopContainer, "container", "", "stop the named container")
	stopCmd.Flags().BoolVar(&stopExport, "export", false, "export each target's data volume before stopping")
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "stop even when export fails")
	stopCmd.Flags().BoolVar(&stopRemove, "remove", false, "remove each container after stopping")
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	adapter := newAdapter()

	configDir := doctor.UserConfigDir(homeDirOrEmpty())
	exporter := exportengine.New(adapter, filepath.Join(configDir, "backups"), nil)

	engine := stopengine.New(adapter, exporter)

	opts := stopengine.Options{
		All:           stopAll,
		Container:     stopContainer,
		WorkspaceName: common.SanitizeWorkspaceName(common.WorkspaceName(workspacePath)),
		Export:        stopExport,
		Force:         stopForce,
		Remove:        stopRemove,
	}
	if err := stopengine.ValidateOptions(opts); err != nil {
		return err
	}

	res, err := engine.Run(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		return output.JSON(res)
	}
	for _, t := range res.Stopped {
		output.Println("stopped", t.ContainerName, "in", t.ContextName)
	}
	for _, t := range res.Failed {
		output.Warning("failed to stop %s in %s", t.ContainerName, t.ContextName)
	}
	if len(res.Failed) > 0 {
		return exitError{code: 1}
	}
	return nil
}
