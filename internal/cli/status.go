package cli

import (
	"github.com/spf13/cobra"

	"github.com/containai/cai/internal/doctor"
	"github.com/containai/cai/internal/output"
)

var (
	statusWorkspaceLabel string
	statusContainer      string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report on a single managed container",
	Long: `status resolves exactly one managed container — by --container,
by --workspace label, or by the current directory's derived workspace
name — and reports its lifecycle state, image, uptime, and (when
running) live memory/CPU usage.`,
	RunE: runStatus,
}

func init() {
	// Shadows the persistent --workspace (directory) flag for this command
	// only: here --workspace names the containai.workspace label to match,
	// per spec.md §4.10 ("by --workspace, --container, or CWD").
	statusCmd.Flags().StringVar(&statusWorkspaceLabel, "workspace", "", "match containai.workspace label exactly")
	statusCmd.Flags().StringVar(&statusContainer, "container", "", "match container name exactly")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reporter := doctor.NewStatusReporter(newAdapter())

	report, err := reporter.Report(ctx, doctor.StatusOptions{
		Workspace: statusWorkspaceLabel,
		Container: statusContainer,
		CWD:       workspacePath,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return doctor.RenderJSON(output.Global().Writer(), report)
	}
	return doctor.RenderStatusHuman(output.Global().Writer(), report)
}
