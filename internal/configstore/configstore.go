// Package configstore implements the per-user and per-workspace TOML
// configuration store (C13): get/set/unset global and per-workspace keys,
// with `agent` normalizing to `agent.default`.
package configstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ImageConfig holds the `image` table.
type ImageConfig struct {
	Channel string `toml:"channel"`
}

// AgentConfig holds the `agent` table.
type AgentConfig struct {
	DataVolume string `toml:"data_volume"`
	Default    string `toml:"default"`
}

// EnvConfig holds the `env` table.
type EnvConfig struct {
	Import   []string `toml:"import"`
	EnvFile  string   `toml:"env_file"`
	FromHost bool     `toml:"from_host"`
}

// ImportConfig holds the `import` table. ExcludePriv is a pointer so the
// import engine can tell "unset" (defaults to true) apart from an explicit
// false.
type ImportConfig struct {
	ExcludePriv     *bool    `toml:"exclude_priv"`
	AdditionalPaths []string `toml:"additional_paths"`
}

// ExcludePrivOrDefault returns ExcludePriv's value, defaulting to true when
// the key was never set (spec.md §4.3 step 3).
func (c ImportConfig) ExcludePrivOrDefault() bool {
	if c.ExcludePriv == nil {
		return true
	}
	return *c.ExcludePriv
}

// WorkspaceConfig holds the per-workspace subtable.
type WorkspaceConfig struct {
	DataVolume    string `toml:"data_volume"`
	ContainerName string `toml:"container_name"`
}

// Config is the full shape of config.toml.
type Config struct {
	Image     ImageConfig                `toml:"image"`
	Agent     AgentConfig                `toml:"agent"`
	Env       EnvConfig                  `toml:"env"`
	Import    ImportConfig               `toml:"import"`
	Workspace map[string]WorkspaceConfig `toml:"workspace"`
}

// Store reads and writes a single config.toml file.
type Store struct {
	path string
}

// UserConfigPath returns $XDG_CONFIG_HOME/containai/config.toml, falling
// back to ~/.config/containai/config.toml.
func UserConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "containai", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "containai", "config.toml"), nil
}

// WorkspaceConfigPath discovers an optional `.containai/config.toml` by
// walking up from workspacePath, returning "" when none exists.
func WorkspaceConfigPath(workspacePath string) string {
	dir := workspacePath
	for {
		candidate := filepath.Join(dir, ".containai", "config.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Open returns a Store for path without reading it; Load reads the file and
// treats a missing file as an empty config.
func Open(path string) (*Store, error) {
	return &Store{path: path}, nil
}

// Load parses the store's file into a Config.
func (s *Store) Load() (*Config, error) {
	cfg := &Config{Workspace: map[string]WorkspaceConfig{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Workspace == nil {
		cfg.Workspace = map[string]WorkspaceConfig{}
	}
	return cfg, nil
}

// Save writes cfg back to the store's file, creating parent directories.
func (s *Store) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("open config for write: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// NormalizeKey applies the `agent` → `agent.default` alias and returns the
// canonical dotted key.
func NormalizeKey(key string) string {
	if key == "agent" {
		return "agent.default"
	}
	return key
}

// CanonicalWorkspaceKey returns the absolute, cleaned path used as the
// workspace subtable's key.
func CanonicalWorkspaceKey(workspacePath string) (string, error) {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		return "", fmt.Errorf("resolve workspace path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// Get reads a dotted key, optionally scoped to a workspace. Global keys
// under `workspace.*` are rejected (workspace keys only make sense scoped).
func (s *Store) Get(key, workspaceKey string) (string, bool, error) {
	cfg, err := s.Load()
	if err != nil {
		return "", false, err
	}
	return get(cfg, NormalizeKey(key), workspaceKey)
}

func get(cfg *Config, key, workspaceKey string) (string, bool, error) {
	if workspaceKey != "" {
		ws, ok := cfg.Workspace[workspaceKey]
		if !ok {
			return "", false, nil
		}
		switch key {
		case "data_volume":
			return ws.DataVolume, ws.DataVolume != "", nil
		case "container_name":
			return ws.ContainerName, ws.ContainerName != "", nil
		}
		return "", false, fmt.Errorf("unrecognized workspace key %q", key)
	}

	switch key {
	case "image.channel":
		return cfg.Image.Channel, cfg.Image.Channel != "", nil
	case "agent.data_volume":
		return cfg.Agent.DataVolume, cfg.Agent.DataVolume != "", nil
	case "agent.default":
		return cfg.Agent.Default, cfg.Agent.Default != "", nil
	case "env.env_file":
		return cfg.Env.EnvFile, cfg.Env.EnvFile != "", nil
	}
	return "", false, fmt.Errorf("unrecognized key %q", key)
}

// Set writes a dotted key, optionally scoped to a workspace, and persists
// the store. Setting `data_volume` at the global scope is rejected — the
// global table has no such key (only `agent.data_volume` does).
func (s *Store) Set(key, value, workspaceKey string) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}

	key = NormalizeKey(key)

	if workspaceKey != "" {
		ws := cfg.Workspace[workspaceKey]
		switch key {
		case "data_volume":
			ws.DataVolume = value
		case "container_name":
			ws.ContainerName = value
		default:
			return fmt.Errorf("unrecognized workspace key %q", key)
		}
		cfg.Workspace[workspaceKey] = ws
		return s.Save(cfg)
	}

	switch key {
	case "image.channel":
		if value != "stable" && value != "nightly" {
			return fmt.Errorf("image.channel must be 'stable' or 'nightly', got %q", value)
		}
		cfg.Image.Channel = value
	case "agent.data_volume":
		cfg.Agent.DataVolume = value
	case "agent.default":
		cfg.Agent.Default = value
	case "env.env_file":
		cfg.Env.EnvFile = value
	case "data_volume":
		return fmt.Errorf("data_volume has no global form; did you mean agent.data_volume?")
	default:
		return fmt.Errorf("unrecognized key %q", key)
	}
	return s.Save(cfg)
}

// Unset clears a dotted key back to its zero value and persists the store.
func (s *Store) Unset(key, workspaceKey string) error {
	if workspaceKey == "" && NormalizeKey(key) == "image.channel" {
		cfg, err := s.Load()
		if err != nil {
			return err
		}
		cfg.Image.Channel = ""
		return s.Save(cfg)
	}
	return s.Set(key, "", workspaceKey)
}

// ResolveUserConfigPath returns the user-level config path unconditionally,
// bypassing any workspace-local override. image.channel is deliberately
// global: callers that need its value must read through this path rather
// than a workspace-aware resolver.
func ResolveUserConfigPath() (string, error) {
	return UserConfigPath()
}

// ResolveConfigPath returns the workspace-local config path if one exists
// by walking up from workspacePath, else the user-level path.
func ResolveConfigPath(workspacePath string) (string, error) {
	if p := WorkspaceConfigPath(workspacePath); p != "" {
		return p, nil
	}
	return UserConfigPath()
}
