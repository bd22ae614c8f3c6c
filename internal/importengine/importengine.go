// Package importengine materializes host state — dotfiles, secrets, git
// config, workspace-relative env files — into a named data volume through
// disposable containers, honoring a manifest of permission, symlink, and
// allowlist invariants (C14).
package importengine

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/configstore"
	"github.com/containai/cai/internal/datavolume"
	"github.com/containai/cai/internal/manifest"
	"github.com/containai/cai/internal/procrunner"
)

// EngineClient is the narrowed slice of *engine.Adapter the import engine needs.
type EngineClient interface {
	Capture(ctx context.Context, contextName string, args ...string) (procrunner.CaptureResult, error)
	CaptureWithStdin(ctx context.Context, contextName, stdin string, args ...string) (procrunner.CaptureResult, error)
	EnsureVolume(ctx context.Context, contextName, name string) error
}

// ConfigReader is the narrowed slice of *configstore.Store the import engine
// needs to read (never writes).
type ConfigReader interface {
	Load() (configstore.Config, error)
}

// Options configures one import run.
type Options struct {
	ContextName   string
	WorkspacePath string
	Volume        string
	ManifestPath  string
	From          string
	DryRun        bool
	NoExcludes    bool
	NoSecrets     bool
	Verbose       bool
}

// Importer runs the host→volume sync algorithm in spec.md §4.3.
type Importer struct {
	Adapter    EngineClient
	Configs    ConfigReader
	Stderr     io.Writer
	RsyncImage string
}

// New creates an Importer. RsyncImage defaults to CONTAINAI_RSYNC_IMAGE or
// common.DefaultRsyncImage.
func New(adapter EngineClient, configs ConfigReader, stderr io.Writer) *Importer {
	image := os.Getenv("CONTAINAI_RSYNC_IMAGE")
	if image == "" {
		image = common.DefaultRsyncImage
	}
	return &Importer{Adapter: adapter, Configs: configs, Stderr: stderr, RsyncImage: image}
}

func (im *Importer) warn(format string, args ...any) {
	fmt.Fprintf(im.Stderr, "[WARN] "+format+"\n", args...)
}

func (im *Importer) verbosef(opts Options, format string, args ...any) {
	if opts.Verbose {
		fmt.Fprintf(im.Stderr, format+"\n", args...)
	}
}

// Run executes the full import in the order spec.md §4.3 prescribes.
func (im *Importer) Run(ctx context.Context, opts Options) error {
	cfg, err := im.Configs.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	volume := im.resolveVolume(opts, cfg)

	sourceRoot, isArchive, err := im.resolveSource(opts)
	if err != nil {
		return err
	}

	excludePriv := cfg.Import.ExcludePrivOrDefault() && !opts.NoExcludes

	if !opts.DryRun {
		if err := im.Adapter.EnsureVolume(ctx, opts.ContextName, volume); err != nil {
			return fmt.Errorf("ensure volume %s: %w", volume, err)
		}
	}

	if isArchive {
		return im.runArchive(ctx, opts, volume, sourceRoot, excludePriv)
	}
	return im.runDirectory(ctx, opts, volume, sourceRoot, excludePriv, cfg)
}

func (im *Importer) resolveVolume(opts Options, cfg configstore.Config) string {
	workspaceCfg := ""
	if key, err := configstore.CanonicalWorkspaceKey(opts.WorkspacePath); err == nil {
		workspaceCfg = cfg.Workspace[key].DataVolume
	}
	return datavolume.Resolve(datavolume.Sources{
		Flag:            opts.Volume,
		Env:             os.Getenv("CONTAINAI_DATA_VOLUME"),
		WorkspaceConfig: workspaceCfg,
		GlobalConfig:    cfg.Agent.DataVolume,
	})
}

func (im *Importer) resolveSource(opts Options) (root string, isArchive bool, err error) {
	p := opts.From
	if p == "" {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", false, fmt.Errorf("resolve home directory: %w", herr)
		}
		p = home
	} else if strings.HasPrefix(p, "~/") {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", false, fmt.Errorf("resolve home directory: %w", herr)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~/"))
	}

	if strings.HasSuffix(p, ".tgz") {
		if _, err := os.Stat(p); err != nil {
			return "", false, fmt.Errorf("archive %s does not exist: %w", p, err)
		}
		return p, true, nil
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", false, fmt.Errorf("source %s does not exist: %w", p, err)
	}
	if !info.IsDir() {
		return "", false, fmt.Errorf("source %s is not a directory", p)
	}
	return p, false, nil
}

func (im *Importer) capture(ctx context.Context, opts Options, desc string, args ...string) error {
	if opts.DryRun {
		im.verbosef(opts, "Would %s", desc)
		return nil
	}
	res, err := im.Adapter.Capture(ctx, opts.ContextName, nameDisposableRun(args)...)
	if err != nil {
		return fmt.Errorf("%s: %w", desc, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s: exit %d: %s", desc, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// nameDisposableRun tags every disposable `run --rm` invocation with a
// unique container name, so overlapping imports never collide and a stuck
// container can be traced back to the step that spawned it.
func nameDisposableRun(args []string) []string {
	if len(args) < 2 || args[0] != "run" || args[1] != "--rm" {
		return args
	}
	name := "containai-import-" + uuid.New().String()[:8]
	out := append([]string{"run", "--rm", "--name", name}, args[2:]...)
	return out
}

func (im *Importer) runArchive(ctx context.Context, opts Options, volume, archivePath string, excludePriv bool) error {
	if err := im.capture(ctx, opts, "clear volume",
		"run", "--rm", "-v", volume+":/mnt/agent-data", common.ProbeImage,
		"sh", "-c", "find /mnt/agent-data -mindepth 1 -delete"); err != nil {
		return err
	}

	name := filepath.Base(archivePath)
	script := fmt.Sprintf("tar -xzf /backup/%s -C /mnt/agent-data", name)
	if excludePriv {
		script += " --exclude='./shell/bashrc.d/*.priv.*' --exclude='shell/bashrc.d/*.priv.*'"
	}
	if err := im.capture(ctx, opts, "extract archive",
		"run", "--rm",
		"-v", volume+":/mnt/agent-data",
		"-v", filepath.Dir(archivePath)+":/backup:ro",
		common.ProbeImage, "sh", "-c", script); err != nil {
		return err
	}

	entries, err := im.loadEntries(opts)
	if err != nil {
		im.warn("load manifest for overlay mapping: %v", err)
	}
	return im.applyOverlays(ctx, opts, volume, entries)
}

func (im *Importer) loadEntries(opts Options) ([]manifest.Entry, error) {
	if opts.ManifestPath == "" {
		return manifest.Default(), nil
	}
	return manifest.Load(opts.ManifestPath)
}

func (im *Importer) runDirectory(ctx context.Context, opts Options, volume, sourceRoot string, excludePriv bool, cfg configstore.Config) error {
	entries, err := im.loadEntries(opts)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	secretDirs := map[string]bool{}
	secretFiles := map[string]bool{}

	for _, e := range entries {
		if opts.NoSecrets && e.IsSecret() {
			continue
		}

		srcPath := filepath.Join(sourceRoot, e.Source)
		if _, err := os.Stat(srcPath); err != nil {
			if e.Optional {
				continue
			}
			im.verbosef(opts, "[WARN] missing required source %s", srcPath)
			continue
		}

		if err := im.initTarget(ctx, opts, volume, e); err != nil {
			im.warn("init target for %s: %v", e.Target, err)
		}
		if err := im.copyEntry(ctx, opts, volume, sourceRoot, e, excludePriv); err != nil {
			im.warn("copy %s: %v", e.Source, err)
			continue
		}
		if e.HasFlag('g') {
			if err := im.filterGitConfig(ctx, opts, volume, e); err != nil {
				im.warn("filter git config %s: %v", e.Target, err)
			}
		}
		if e.IsSecret() {
			if e.IsDir() {
				secretDirs[e.Target] = true
			} else {
				secretFiles[e.Target] = true
			}
		}
		im.relinkSymlinks(ctx, opts, volume, sourceRoot, e)
	}

	im.enforceSecretPermissions(ctx, opts, volume, secretDirs, secretFiles)

	if err := im.importAdditionalPaths(ctx, opts, volume, cfg); err != nil {
		im.warn("additional paths: %v", err)
	}

	if err := im.importEnv(ctx, opts, volume, cfg); err != nil {
		im.warn("env import: %v", err)
	}

	return im.applyOverlays(ctx, opts, volume, entries)
}

func (im *Importer) initTarget(ctx context.Context, opts Options, volume string, e manifest.Entry) error {
	target := path.Join("/target", e.Target)
	var script string
	if e.IsDir() {
		script = fmt.Sprintf("mkdir -p %s && chown -R 1000:1000 %s", target, target)
		if e.IsSecret() {
			script += fmt.Sprintf(" && chmod 700 %s", target)
		}
	} else {
		script = fmt.Sprintf("mkdir -p $(dirname %s) && touch %s", target, target)
		if e.HasFlag('j') {
			script += fmt.Sprintf(" && [ -s %s ] || echo '{}' > %s", target, target)
		}
		script += fmt.Sprintf(" && chown 1000:1000 %s", target)
		if e.IsSecret() {
			script += fmt.Sprintf(" && chmod 600 %s", target)
		}
	}
	return im.capture(ctx, opts, "init "+e.Target,
		"run", "--rm", "-v", volume+":/target", common.ProbeImage, "sh", "-c", script)
}

func (im *Importer) copyEntry(ctx context.Context, opts Options, volume, sourceRoot string, e manifest.Entry, excludePriv bool) error {
	src := "/source/" + e.Source
	if e.IsDir() {
		src += "/"
	}
	dst := "/target/" + e.Target

	args := []string{"rsync", "-a"}
	if e.HasFlag('m') {
		args = append(args, "--delete")
	}
	if e.HasFlag('x') {
		args = append(args, "--exclude=.system/")
	}
	if e.HasFlag('p') && excludePriv {
		args = append(args, "--exclude=*.priv.*")
	}
	args = append(args, src, dst)

	return im.capture(ctx, opts, "rsync "+e.Source,
		"run", "--rm",
		"-v", volume+":/target",
		"-v", sourceRoot+":/source:ro",
		im.RsyncImage, "sh", "-c", strings.Join(args, " "))
}

var gitFilteredKeys = []string{
	"credential.helper", "commit.gpgsign", "tag.gpgsign",
	"gpg.program", "gpg.format", "user.signingkey",
}

func (im *Importer) filterGitConfig(ctx context.Context, opts Options, volume string, e manifest.Entry) error {
	target := path.Join("/target", e.Target)
	var pattern strings.Builder
	for i, k := range gitFilteredKeys {
		if i > 0 {
			pattern.WriteString("|")
		}
		pattern.WriteString(strings.ReplaceAll(k, ".", `\.`))
	}
	script := fmt.Sprintf(`sed -i -E '/^\s*(%s)\s*=/d' %s || true
grep -q '\[safe\]' %s || printf '\n[safe]\n\tdirectory = /home/agent/workspace\n' >> %s`,
		pattern.String(), target, target, target)
	return im.capture(ctx, opts, "filter git config",
		"run", "--rm", "-v", volume+":/target", common.ProbeImage, "sh", "-c", script)
}

func (im *Importer) enforceSecretPermissions(ctx context.Context, opts Options, volume string, dirs, files map[string]bool) {
	if len(dirs) == 0 && len(files) == 0 {
		return
	}
	var parts []string
	for d := range dirs {
		t := path.Join("/target", d)
		parts = append(parts, fmt.Sprintf("chmod 700 %s", t))
	}
	for f := range files {
		t := path.Join("/target", f)
		parts = append(parts, fmt.Sprintf("chmod 700 $(dirname %s)", t), fmt.Sprintf("chmod 600 %s", t))
	}
	sort.Strings(parts)
	script := strings.Join(parts, " && ")
	if err := im.capture(ctx, opts, "enforce secret permissions",
		"run", "--rm", "-v", volume+":/target", common.ProbeImage, "sh", "-c", script); err != nil {
		im.warn("enforce secret permissions: %v", err)
	}
}

// relinkSymlinks walks a directory entry's source tree, replacing any
// absolute internal symlink with an equivalent relative one under the
// target subtree. External-absolute or unresolvable links are left as the
// rsync pass already copied them, with a warning.
func (im *Importer) relinkSymlinks(ctx context.Context, opts Options, volume, sourceRoot string, e manifest.Entry) {
	if !e.IsDir() {
		return
	}
	root := filepath.Join(sourceRoot, e.Source)
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		linkTarget, err := os.Readlink(p)
		if err != nil || !filepath.IsAbs(linkTarget) {
			return nil
		}
		if !strings.HasPrefix(linkTarget, sourceRoot+string(filepath.Separator)) {
			im.warn("preserving external symlink %s -> %s", p, linkTarget)
			return nil
		}
		if _, err := os.Lstat(linkTarget); err != nil {
			im.warn("preserving unresolvable symlink %s -> %s", p, linkTarget)
			return nil
		}

		relInEntry, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		relDest, err := filepath.Rel(filepath.Dir(p), linkTarget)
		if err != nil {
			return nil
		}

		linkContainerPath := path.Join("/target", e.Target, filepath.ToSlash(relInEntry))
		script := fmt.Sprintf("mkdir -p $(dirname %s) && ln -sfn %s %s",
			linkContainerPath, filepath.ToSlash(relDest), linkContainerPath)
		if err := im.capture(ctx, opts, "relink "+relInEntry,
			"run", "--rm", "-v", volume+":/target", common.ProbeImage, "sh", "-c", script); err != nil {
			im.warn("relink %s: %v", p, err)
		}
		return nil
	})
}

func (im *Importer) importAdditionalPaths(ctx context.Context, opts Options, volume string, cfg configstore.Config) error {
	if len(cfg.Import.AdditionalPaths) == 0 {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	for _, raw := range cfg.Import.AdditionalPaths {
		p := raw
		if strings.HasPrefix(p, "~/") {
			p = filepath.Join(home, strings.TrimPrefix(p, "~/"))
		} else if !filepath.IsAbs(p) {
			im.warn("additional path %q must be ~/... or absolute under home, skipping", raw)
			continue
		}
		if !strings.HasPrefix(p, home+string(filepath.Separator)) {
			im.warn("additional path %q escapes home, skipping", raw)
			continue
		}
		if _, err := os.Stat(p); err != nil {
			im.warn("additional path %q does not exist, skipping", raw)
			continue
		}
		if hasSymlinkComponent(home, p) {
			im.warn("additional path %q contains a symlink component, skipping", raw)
			continue
		}

		rel, err := filepath.Rel(home, p)
		if err != nil {
			continue
		}
		segments := strings.Split(filepath.ToSlash(rel), "/")
		segments[0] = strings.TrimPrefix(segments[0], ".")
		target := strings.Join(segments, "/")

		flags := "f"
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			flags = "d"
		}
		if strings.Contains(filepath.ToSlash(rel), ".bashrc.d/") {
			flags += "p"
		}

		e := manifest.Entry{Source: rel, Target: target, Flags: flags}
		if err := im.initTarget(ctx, opts, volume, e); err != nil {
			im.warn("init additional path %s: %v", raw, err)
		}
		if err := im.copyEntry(ctx, opts, volume, home, e, cfg.Import.ExcludePrivOrDefault() && !opts.NoExcludes); err != nil {
			im.warn("copy additional path %s: %v", raw, err)
		}
	}
	return nil
}

func hasSymlinkComponent(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return true
	}
	cur := root
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		cur = filepath.Join(cur, seg)
		info, err := os.Lstat(cur)
		if err != nil {
			return false
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return true
		}
	}
	return false
}
