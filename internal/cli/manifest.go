package cli

import (
	"github.com/spf13/cobra"

	"github.com/containai/cai/internal/ctnrerr"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Manifest grammar tooling (not implemented)",
}

var manifestCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a manifest file (not implemented)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return ctnrerr.New(ctnrerr.CategoryUser, ctnrerr.CodeInternal, "manifest check is not implemented")
	},
}

func init() {
	manifestCmd.AddCommand(manifestCheckCmd)
}
