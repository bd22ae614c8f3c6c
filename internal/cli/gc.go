package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/containai/cai/internal/gcengine"
	"github.com/containai/cai/internal/output"
)

var (
	gcAge     string
	gcDryRun  bool
	gcForce   bool
	gcImages  bool
	gcContext string
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Prune managed containers (and optionally images) past an age threshold",
	Long: `gc enumerates managed containers in a context, removes every one
whose age exceeds --age (default 30d) and that is not running or labeled
containai.keep, confirming interactively unless --force or --dry-run.
With --images (and --force or --dry-run), also sweeps every image tagged
under a ContainAI repository prefix.`,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().StringVar(&gcAge, "age", "30d", "age threshold, <int>(d|h)")
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "report what would be removed without removing it")
	gcCmd.Flags().BoolVar(&gcForce, "force", false, "skip the interactive confirmation prompt")
	gcCmd.Flags().BoolVar(&gcImages, "images", false, "also remove containai-prefixed images")
	gcCmd.Flags().StringVar(&gcContext, "context", "", "engine context to sweep (default: managed context)")
}

func runGC(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	adapter := newAdapter()

	contextName := gcContext
	if contextName == "" {
		name, ok := adapter.ManagedContext(ctx)
		if !ok {
			return exitError{code: 1}
		}
		contextName = name
	}

	e := gcengine.New(adapter, output.Global().Writer())
	res, err := e.Run(ctx, gcengine.Options{
		ContextName: contextName,
		Age:         gcAge,
		DryRun:      gcDryRun,
		Force:       gcForce,
		Images:      gcImages,
		IsTTY:       term.IsTerminal(int(os.Stdout.Fd())),
		Confirm:     confirmPrompt,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return output.JSON(res)
	}
	containerVerb, imageVerb := "removed container", "removed image"
	if gcDryRun {
		containerVerb, imageVerb = "Would remove container", "Would remove image"
	}
	for _, id := range res.Removed {
		output.Println(containerVerb, id)
	}
	for _, id := range res.Failed {
		output.Warning("failed to remove container %s", id)
	}
	for _, id := range res.ImagesRemoved {
		output.Println(imageVerb, id)
	}
	for _, id := range res.ImagesFailed {
		output.Warning("failed to remove image %s", id)
	}
	if len(res.Failed) > 0 || len(res.ImagesFailed) > 0 {
		return exitError{code: 1}
	}
	return nil
}

func confirmPrompt(prompt string) bool {
	output.Print("%s [y/N] ", prompt)
	var reply string
	_, _ = fmt.Scanln(&reply)
	return reply == "y" || reply == "Y"
}
