package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/containai/cai/internal/configstore"
	"github.com/containai/cai/internal/importengine"
)

var (
	importVolume     string
	importManifest   string
	importFrom       string
	importDryRun     bool
	importNoExcludes bool
	importNoSecrets  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Sync host dotfiles, secrets, and git config into a data volume",
	Long: `import materializes host state into a named data volume through a
disposable container: dotfiles, secrets, git config, and workspace-relative
env files, honoring the manifest's permission, symlink, and allowlist
invariants.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importVolume, "volume", "", "target data volume (default: resolved per §4.11 precedence)")
	importCmd.Flags().StringVar(&importManifest, "manifest", "", "path to a manifest overriding the built-in default")
	importCmd.Flags().StringVar(&importFrom, "from", "", "host directory or .tgz archive to import from (default: $HOME)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "report what would be imported without mutating the volume")
	importCmd.Flags().BoolVar(&importNoExcludes, "no-excludes", false, "ignore import.exclude_priv and copy every matched entry")
	importCmd.Flags().BoolVar(&importNoSecrets, "no-secrets", false, "skip entries flagged as secrets in the manifest")
}

// configReaderAdapter adapts *configstore.Store (which returns *Config) to
// importengine.ConfigReader (which wants Config by value).
type configReaderAdapter struct{ store *configstore.Store }

func (a configReaderAdapter) Load() (configstore.Config, error) {
	cfg, err := a.store.Load()
	if err != nil {
		return configstore.Config{}, err
	}
	return *cfg, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	adapter := newAdapter()

	contextName, ok := adapter.ManagedContext(ctx)
	if !ok {
		return exitError{code: 1}
	}

	path, err := configstore.ResolveConfigPath(workspacePath)
	if err != nil {
		return err
	}
	store, err := configstore.Open(path)
	if err != nil {
		return err
	}

	im := importengine.New(adapter, configReaderAdapter{store: store}, os.Stderr)

	return im.Run(ctx, importengine.Options{
		ContextName:   contextName,
		WorkspacePath: workspacePath,
		Volume:        importVolume,
		ManifestPath:  importManifest,
		From:          importFrom,
		DryRun:        importDryRun,
		NoExcludes:    importNoExcludes,
		NoSecrets:     importNoSecrets,
		Verbose:       verbose,
	})
}
