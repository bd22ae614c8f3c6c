package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/containai/cai/internal/doctor"
	"github.com/containai/cai/internal/output"
	"github.com/containai/cai/internal/watchloop"
)

var (
	doctorWatch          bool
	doctorBuildTemplates bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check CLI, managed context, engine, and runtime health",
	Long: `doctor runs the four health probes: the CLI binary is on PATH,
the managed docker context exists, the engine is reachable under that
context, and sysbox-runc is registered as a runtime.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorWatch, "watch", false, "re-run on every change under the config/ssh-fragment directories")
	doctorCmd.Flags().BoolVar(&doctorBuildTemplates, "build-templates", false, "smoke-build every installed template")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d := doctor.New(newAdapter())
	configDir := doctor.UserConfigDir(homeDirOrEmpty())
	opts := doctor.Options{
		BuildTemplates: doctorBuildTemplates,
		TemplateDirs:   map[string]string{doctor.DefaultTemplateName: configDir + "/templates/" + doctor.DefaultTemplateName},
	}

	run := func(ctx context.Context) error {
		res := d.Run(ctx, opts)
		return renderDoctorResult(res)
	}

	if !doctorWatch {
		return run(ctx)
	}

	dirs := []string{configDir, configDir + "/ports", homeDirOrEmpty() + "/.ssh/containai.d"}
	return watchloop.Run(ctx, dirs, run, currentLogger())
}

func renderDoctorResult(res doctor.Result) error {
	if jsonOutput {
		return doctor.RenderJSON(output.Global().Writer(), res)
	}
	if err := doctor.RenderDoctorHuman(output.Global().Writer(), res); err != nil {
		return err
	}
	if !res.OK() {
		return exitError{code: 1}
	}
	return nil
}

func homeDirOrEmpty() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return h
}

// exitError carries a bare process exit code without a user-facing message
// (the doctor/status tables have already reported the failure).
type exitError struct{ code int }

func (e exitError) Error() string { return "" }
func (e exitError) ExitCode() int { return e.code }
