// Package cli implements the cai subcommand router: setup, doctor, status,
// stop, gc, ssh, config, import, and a manifest stub. Each subcommand
// constructs its own collaborators from the shared global flags and
// delegates to the package that actually implements the behavior.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/containai/cai/internal/clog"
	"github.com/containai/cai/internal/ctnrerr"
	"github.com/containai/cai/internal/engine"
	"github.com/containai/cai/internal/output"
)

// Global flags shared by every subcommand.
var (
	workspacePath string
	jsonOutput    bool
	noColor       bool
	quiet         bool
	verbose       bool
	engineBinary  string
)

// rootCmd is the base `cai` command.
var rootCmd = &cobra.Command{
	Use:   "cai",
	Short: "ContainAI CLI",
	Long: `cai manages the ContainAI managed Docker context: hardened
devcontainers running under sysbox-runc, per-workspace data volumes, and
SSH access over loopback ports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format := output.FormatText
		if jsonOutput {
			format = output.FormatJSON
		}
		verbosity := output.VerbosityNormal
		switch {
		case quiet:
			verbosity = output.VerbosityQuiet
		case verbose:
			verbosity = output.VerbosityVerbose
		}
		output.Configure(output.Config{
			Format:    format,
			Verbosity: verbosity,
			NoColor:   noColor,
			Writer:    os.Stdout,
			ErrWriter: os.Stderr,
		})
		clog.Configure(verbose, quiet, os.Getenv("CONTAINAI_LOG_FILE"))

		if workspacePath == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve current directory: %w", err)
			}
			workspacePath = wd
		}
		return nil
	},
}

// Execute runs the root command and returns the process exit code, mapping
// any error through ctnrerr.ExitCode per spec.md §6/§7.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			output.Error("%s", msg)
		}
		return ctnrerr.ExitCode(err)
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspacePath, "workspace", "w", "", "workspace directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "minimal output (errors only)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&engineBinary, "engine-binary", "docker", "container engine binary to invoke")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(sshCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(manifestCmd)
}

// newAdapter builds the shared engine adapter every subcommand needs.
func newAdapter() *engine.Adapter {
	return engine.New(engineBinary, clog.Logger())
}

func currentLogger() *slog.Logger {
	return clog.Logger()
}
