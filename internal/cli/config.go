package cli

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/pterm/pterm"

	"github.com/containai/cai/internal/configstore"
	"github.com/containai/cai/internal/output"
)

var configWorkspaceScope bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write the merged TOML configuration store",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Dump the effective merged configuration",
	Long: `list shows the user-level config.toml, overlaid with the
current workspace's .containai/config.toml when one exists, as a table
or (with --json) structured JSON.`,
	RunE: runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read one config key",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write one config key",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Clear one config key back to its zero value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

func init() {
	for _, c := range []*cobra.Command{configGetCmd, configSetCmd, configUnsetCmd} {
		c.Flags().BoolVar(&configWorkspaceScope, "workspace-scope", false, "operate on the current workspace's subtable instead of the global one")
	}
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configUnsetCmd)
}

func runConfigList(cmd *cobra.Command, args []string) error {
	store, err := openUserStore()
	if err != nil {
		return err
	}
	cfg, err := store.Load()
	if err != nil {
		return err
	}
	if wsPath := configstore.WorkspaceConfigPath(workspacePath); wsPath != "" {
		if _, err := toml.DecodeFile(wsPath, cfg); err != nil {
			return fmt.Errorf("parse workspace config: %w", err)
		}
	}

	if jsonOutput {
		return output.JSON(cfg)
	}

	rows := pterm.TableData{
		{"Key", "Value"},
		{"image.channel", cfg.Image.Channel},
		{"agent.default", cfg.Agent.Default},
		{"agent.data_volume", cfg.Agent.DataVolume},
		{"env.env_file", cfg.Env.EnvFile},
		{"import.exclude_priv", boolString(cfg.Import.ExcludePrivOrDefault())},
	}
	for ws, wc := range cfg.Workspace {
		rows = append(rows, []string{"workspace[" + ws + "].data_volume", wc.DataVolume})
		rows = append(rows, []string{"workspace[" + ws + "].container_name", wc.ContainerName})
	}

	pterm.SetDefaultOutput(output.Global().Writer())
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	store, err := openUserStore()
	if err != nil {
		return err
	}
	wsKey, err := workspaceKeyIfScoped()
	if err != nil {
		return err
	}
	value, ok, err := store.Get(args[0], wsKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	output.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	store, err := openUserStore()
	if err != nil {
		return err
	}
	wsKey, err := workspaceKeyIfScoped()
	if err != nil {
		return err
	}
	return store.Set(args[0], args[1], wsKey)
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	store, err := openUserStore()
	if err != nil {
		return err
	}
	wsKey, err := workspaceKeyIfScoped()
	if err != nil {
		return err
	}
	return store.Unset(args[0], wsKey)
}

func openUserStore() (*configstore.Store, error) {
	path, err := configstore.UserConfigPath()
	if err != nil {
		return nil, err
	}
	return configstore.Open(path)
}

func workspaceKeyIfScoped() (string, error) {
	if !configWorkspaceScope {
		return "", nil
	}
	return configstore.CanonicalWorkspaceKey(workspacePath)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
