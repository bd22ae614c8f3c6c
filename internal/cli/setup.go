package cli

import (
	"github.com/spf13/cobra"

	"github.com/containai/cai/internal/doctor"
	"github.com/containai/cai/internal/output"
	"github.com/containai/cai/internal/procrunner"
)

var (
	setupDryRun         bool
	setupSkipTemplates  bool
	setupBuildTemplates bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Bootstrap the managed docker context, SSH key, and templates",
	Long: `setup idempotently bootstraps everything cai needs: config and SSH
directories, an Ed25519 SSH key, the containai-docker systemd unit (when
installed), the Lima VM (macOS only), the managed docker context, and the
default devcontainer template. Every step checks for the already-satisfied
case first and only mutates when genuinely absent.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&setupDryRun, "dry-run", false, "report what would change without mutating anything")
	setupCmd.Flags().BoolVar(&setupSkipTemplates, "skip-templates", false, "do not install the default template")
	setupCmd.Flags().BoolVar(&setupBuildTemplates, "build-templates", false, "smoke-build installed templates as part of the final health check")
}

func runSetup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s := doctor.NewSetup(newAdapter(), procrunner.New(currentLogger()))

	res := s.Run(ctx, doctor.SetupOptions{
		HomeDir:        homeDirOrEmpty(),
		SkipTemplates:  setupSkipTemplates,
		DryRun:         setupDryRun,
		BuildTemplates: setupBuildTemplates,
	})

	if jsonOutput {
		return doctor.RenderJSON(output.Global().Writer(), res)
	}
	if err := doctor.RenderSetupHuman(output.Global().Writer(), res); err != nil {
		return err
	}
	if !res.Doctor.OK() {
		return exitError{code: 1}
	}
	return nil
}
