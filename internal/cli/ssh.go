package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/containai/cai/internal/output"
	"github.com/containai/cai/internal/sshmanager"
	"github.com/containai/cai/internal/watchloop"
)

var sshCmd = &cobra.Command{
	Use:   "ssh",
	Short: "SSH config fragment management",
}

var (
	sshCleanupDryRun bool
	sshCleanupWatch  bool
)

var sshCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove SSH fragments whose container no longer exists",
	Long: `cleanup probes every fragment written under
~/.ssh/containai.d/ and removes the ones whose backing container is gone,
keeping ~/.ssh/config's managed include in sync with reality.`,
	RunE: runSSHCleanup,
}

func init() {
	sshCleanupCmd.Flags().BoolVar(&sshCleanupDryRun, "dry-run", false, "report what would be removed without removing it")
	sshCleanupCmd.Flags().BoolVar(&sshCleanupWatch, "watch", false, "re-run whenever the fragment directory changes")
	sshCmd.AddCommand(sshCleanupCmd)
}

func runSSHCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	home := homeDirOrEmpty()
	mgr := sshmanager.New(home, currentLogger())
	adapter := newAdapter()

	probe := func(ctx context.Context, name string) bool {
		contextName, ok := adapter.ManagedContext(ctx)
		if !ok {
			return false
		}
		_, err := adapter.InspectContainer(ctx, contextName, name)
		return err == nil
	}

	run := func(ctx context.Context) error {
		results, err := mgr.Cleanup(ctx, probe, sshCleanupDryRun)
		if err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(results)
		}
		for _, r := range results {
			verb := "removed"
			if !r.Removed {
				verb = "would remove"
			}
			output.Println(verb, "stale fragment for", r.Sanitized)
		}
		return nil
	}

	if !sshCleanupWatch {
		return run(ctx)
	}
	return watchloop.Run(ctx, []string{home + "/.ssh/containai.d"}, run, currentLogger())
}
