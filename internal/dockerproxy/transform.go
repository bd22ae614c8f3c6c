// Package dockerproxy implements the central docker-proxy transform (C9):
// it rewrites a `docker` argument vector into a managed devcontainer create,
// or passes it through to the engine with an injected --context when the
// invocation targets the managed context anyway.
package dockerproxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/containai/cai/internal/argvclassify"
	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/ctnrerr"
	"github.com/containai/cai/internal/engine"
	"github.com/containai/cai/internal/features"
	"github.com/containai/cai/internal/labels"
	"github.com/containai/cai/internal/portalloc"
	"github.com/containai/cai/internal/sshmanager"
	"github.com/containai/cai/internal/volcred"
)

// EngineClient is the slice of *engine.Adapter the transform depends on,
// narrowed so tests can substitute a fake.
type EngineClient interface {
	Binary() string
	ManagedContext(ctx context.Context) (string, bool)
	Interactive(ctx context.Context, contextName string, args ...string) (int, error)
	InspectContainer(ctx context.Context, contextName, nameOrID string) error
	VolumeExists(ctx context.Context, contextName, name string) (bool, error)
}

// PortAllocator is the allocation seam (C6).
type PortAllocator interface {
	Allocate(ctx context.Context, sanitized, workspaceName string) (int, error)
}

// FragmentWriter is the SSH-fragment seam (C7).
type FragmentWriter interface {
	WriteFragment(sanitized string, port int, remoteUser string) error
}

// CredentialProber is the volume-credential seam (C8).
type CredentialProber interface {
	Probe(ctx context.Context, contextName, volume string) (volcred.Result, error)
}

// Transform holds every collaborator the create-path algorithm in spec.md
// §4.1 depends on.
type Transform struct {
	Adapter   EngineClient
	Ports     PortAllocator
	SSH       FragmentWriter
	Volcred   CredentialProber
	Logger    *slog.Logger
	ParseFile func(path string) (*features.Settings, error)

	Stderr io.Writer
}

// adapterClient adapts *engine.Adapter to EngineClient, discarding the
// typed inspect payload the transform never needs beyond error-or-not.
type adapterClient struct{ *engine.Adapter }

func (a adapterClient) InspectContainer(ctx context.Context, contextName, nameOrID string) error {
	_, err := a.Adapter.InspectContainer(ctx, contextName, nameOrID)
	return err
}

// New builds a Transform with its default ParseFile wired to
// features.ParseFile.
func New(adapter *engine.Adapter, ports *portalloc.Allocator, ssh *sshmanager.Manager, vc *volcred.Validator, logger *slog.Logger, stderr io.Writer) *Transform {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transform{
		Adapter:   adapterClient{adapter},
		Ports:     ports,
		SSH:       ssh,
		Volcred:   vc,
		Logger:    logger,
		ParseFile: features.ParseFile,
		Stderr:    stderr,
	}
}

// Run executes the full transform over args and returns the process exit
// code to propagate to the caller.
func (t *Transform) Run(ctx context.Context, args []string, quiet, verbose bool) (int, error) {
	if argvclassify.IsContainerCreate(args) {
		return t.runCreatePath(ctx, args, quiet, verbose)
	}
	return t.runPassthroughPath(ctx, args)
}

func (t *Transform) managedContext(ctx context.Context) (string, bool) {
	return t.Adapter.ManagedContext(ctx)
}

func (t *Transform) runPassthroughPath(ctx context.Context, args []string) (int, error) {
	contextName := ""
	if !argvclassify.HasContextFlag(args) {
		inject := argvclassify.MentionsManaged(args)
		if !inject {
			if subcommand, target, ok := argvclassify.IsContainerTargeting(args); ok && target != "" {
				_ = subcommand
				if managed, has := t.managedContext(ctx); has {
					if _, err := t.Adapter.InspectContainer(ctx, managed, target); err == nil {
						inject = true
						contextName = managed
					}
				}
			}
		} else if managed, has := t.managedContext(ctx); has {
			contextName = managed
		}
	}

	code, err := t.Adapter.Interactive(ctx, contextName, args...)
	if err != nil {
		return code, ctnrerr.Wrap(err, ctnrerr.CategoryEngine, ctnrerr.CodeEngineFailed, "run engine command")
	}
	return code, nil
}

func (t *Transform) runCreatePath(ctx context.Context, args []string, quiet, verbose bool) (int, error) {
	stripped := argvclassify.StripWrapperFlags(args)
	lbl := argvclassify.ExtractLabels(stripped)

	if lbl.ConfigFile == "" || lbl.LocalFolder == "" {
		return t.invokeUnchanged(ctx, args)
	}

	settings, err := t.ParseFile(lbl.ConfigFile)
	if err != nil || !settings.HasContainAIFeature {
		return t.invokeUnchanged(ctx, args)
	}

	managedCtx, ok := t.managedContext(ctx)
	if !ok {
		fmt.Fprintln(t.Stderr, "ContainAI: Not set up. Run: cai setup")
		return 1, nil
	}

	workspaceName := common.WorkspaceName(lbl.LocalFolder)
	sanitized := common.SanitizeWorkspaceName(workspaceName)

	port, err := t.Ports.Allocate(ctx, sanitized, workspaceName)
	if err != nil {
		return 1, ctnrerr.Wrap(err, ctnrerr.CategoryInternal, ctnrerr.CodeInternal, "allocate SSH port")
	}

	mountVolume := true
	if !settings.EnableCredentials {
		res, probeErr := t.Volcred.Probe(ctx, managedCtx, settings.DataVolume)
		if probeErr != nil || !res.SentinelPresent {
			if !quiet {
				for _, w := range volcred.Warnings() {
					fmt.Fprintln(t.Stderr, "[cai-docker] "+w)
				}
			}
			mountVolume = false
		}
	}

	volumeExists, _ := t.Adapter.VolumeExists(ctx, managedCtx, settings.DataVolume)

	rewritten := t.rewrite(stripped, rewriteOptions{
		mountVolume:  mountVolume && volumeExists,
		dataVolume:   settings.DataVolume,
		port:         port,
		workspace:    workspaceName,
	})

	if err := t.SSH.WriteFragment(sanitized, port, settings.RemoteUser); err != nil {
		return 1, ctnrerr.Wrap(err, ctnrerr.CategoryInternal, ctnrerr.CodeIO, "write SSH fragment")
	}

	if verbose && !quiet {
		fmt.Fprintln(t.Stderr, "[cai-docker]", t.Adapter.Binary(), rewritten)
	}

	code, err := t.Adapter.Interactive(ctx, managedCtx, rewritten...)
	if err != nil {
		return code, ctnrerr.Wrap(err, ctnrerr.CategoryEngine, ctnrerr.CodeEngineFailed, "run engine command")
	}
	return code, nil
}

func (t *Transform) invokeUnchanged(ctx context.Context, args []string) (int, error) {
	code, err := t.Adapter.Interactive(ctx, "", args...)
	if err != nil {
		return code, ctnrerr.Wrap(err, ctnrerr.CategoryEngine, ctnrerr.CodeEngineFailed, "run engine command")
	}
	return code, nil
}

type rewriteOptions struct {
	mountVolume bool
	dataVolume  string
	port        int
	workspace   string
}

// rewrite builds the new argument vector by injecting runtime, mount, env,
// and label flags immediately after every bare run/create token (spec.md
// §4.1 step 8).
func (t *Transform) rewrite(args []string, opts rewriteOptions) []string {
	insertAt := argvclassify.RunOrCreateIndices(args)
	if len(insertAt) == 0 {
		return args
	}

	insertSet := make(map[int]bool, len(insertAt))
	for _, i := range insertAt {
		insertSet[i] = true
	}

	lbls := labels.Build(labels.BuildOptions{
		Workspace: opts.workspace,
		DataVol:   opts.dataVolume,
		SSHPort:   opts.port,
	})
	labelArgs := labels.Args(lbls)

	var injected []string
	injected = append(injected, "--runtime=sysbox-runc")
	if opts.mountVolume {
		injected = append(injected, "--mount", fmt.Sprintf("type=volume,src=%s,dst=%s,readonly=false", opts.dataVolume, common.DataVolumeMountPath))
	}
	injected = append(injected, "-e", "CONTAINAI_SSH_PORT="+strconv.Itoa(opts.port))
	injected = append(injected, labelArgs...)

	out := make([]string, 0, len(args)+len(injected))
	for i, a := range args {
		out = append(out, a)
		if insertSet[i] {
			out = append(out, injected...)
		}
	}
	return out
}
