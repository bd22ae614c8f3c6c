// Package portalloc implements the cross-process, file-locked SSH port
// allocator over [2400, 2499] (C6).
package portalloc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/engine"
)

// ContainerLookup reports the set of `containai.ssh-port` label values across
// managed containers, and (for the same-workspace reconciliation step) the
// port already owned by a container of the given workspace, if any.
type ContainerLookup interface {
	AllManagedSSHPorts(ctx context.Context) (map[int]bool, error)
	WorkspaceOwnedPort(ctx context.Context, workspaceName string) (int, bool, error)
}

// engineLookup adapts an *engine.Adapter to ContainerLookup.
type engineLookup struct {
	adapter     *engine.Adapter
	contextName string
}

func (l engineLookup) AllManagedSSHPorts(ctx context.Context) (map[int]bool, error) {
	containers, err := l.adapter.ListContainersByLabel(ctx, l.contextName, common.LabelPrefix+"ssh-port", "")
	if err != nil {
		return nil, err
	}
	ports := make(map[int]bool)
	for _, c := range containers {
		if v, ok := c.Labels[common.LabelPrefix+"ssh-port"]; ok {
			if p, err := strconv.Atoi(v); err == nil {
				ports[p] = true
			}
		}
	}
	return ports, nil
}

func (l engineLookup) WorkspaceOwnedPort(ctx context.Context, workspaceName string) (int, bool, error) {
	containers, err := l.adapter.ListContainersByLabel(ctx, l.contextName, common.LabelPrefix+"devcontainer.workspace", workspaceName)
	if err != nil {
		return 0, false, err
	}
	for _, c := range containers {
		if v, ok := c.Labels[common.LabelPrefix+"ssh-port"]; ok {
			if p, err := strconv.Atoi(v); err == nil {
				return p, true, nil
			}
		}
	}
	return 0, false, nil
}

// NewEngineLookup builds a ContainerLookup backed by the real engine adapter.
func NewEngineLookup(adapter *engine.Adapter, contextName string) ContainerLookup {
	return engineLookup{adapter: adapter, contextName: contextName}
}

// Allocator implements the port allocation algorithm in spec.md §4.4.
type Allocator struct {
	portsDir string
	lockPath string
	lookup   ContainerLookup
	logger   *slog.Logger

	// isListening is overridable for tests.
	isListening func(port int) bool
}

// New creates an Allocator rooted at configDir (typically
// $XDG_CONFIG_HOME/containai).
func New(configDir string, lookup ContainerLookup, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{
		portsDir:    filepath.Join(configDir, "ports"),
		lockPath:    filepath.Join(configDir, ".ssh-port.lock"),
		lookup:      lookup,
		logger:      logger,
		isListening: defaultIsListening,
	}
}

func defaultIsListening(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return true
	}
	_ = ln.Close()
	return false
}

func portFilePath(dir, sanitized string) string {
	return filepath.Join(dir, "devcontainer-"+sanitized)
}

// Allocate runs the full locked allocation algorithm for a sanitized
// workspace name, returning a port in [2400, 2499] or the fallback 2322.
func (a *Allocator) Allocate(ctx context.Context, sanitized, workspaceName string) (int, error) {
	if err := os.MkdirAll(a.portsDir, 0o700); err != nil {
		return 0, fmt.Errorf("create ports dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(a.lockPath), 0o700); err != nil {
		return 0, fmt.Errorf("create config dir: %w", err)
	}

	fl := flock.New(a.lockPath)

	locked, err := a.tryLockWithRetry(ctx, fl)
	if err != nil {
		return 0, err
	}
	if locked {
		defer fl.Unlock()
	}

	return a.allocateLocked(ctx, sanitized, workspaceName)
}

// tryLockWithRetry retries up to 100 times with 100ms backoff; after
// exhaustion it proceeds unlocked as a best-effort fallback (spec.md §4.4,
// §5's timeout note).
func (a *Allocator) tryLockWithRetry(ctx context.Context, fl *flock.Flock) (bool, error) {
	const attempts = 100
	const backoff = 100 * time.Millisecond

	for i := 0; i < attempts; i++ {
		ok, err := fl.TryLock()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(backoff):
		}
	}
	a.logger.Warn("port lock contended, proceeding best-effort unlocked")
	return false, nil
}

func (a *Allocator) allocateLocked(ctx context.Context, sanitized, workspaceName string) (int, error) {
	path := portFilePath(a.portsDir, sanitized)

	if data, err := os.ReadFile(path); err == nil {
		if p, convErr := strconv.Atoi(strings.TrimSpace(string(data))); convErr == nil {
			if !a.isListening(p) {
				return p, nil
			}
			if owned, ok, lookupErr := a.lookup.WorkspaceOwnedPort(ctx, workspaceName); lookupErr == nil && ok && owned == p {
				return p, nil
			}
		}
	}

	reserved := make(map[int]bool)
	if ports, err := a.lookup.AllManagedSSHPorts(ctx); err == nil {
		for p := range ports {
			reserved[p] = true
		}
	}
	entries, _ := os.ReadDir(a.portsDir)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(a.portsDir, e.Name()))
		if err != nil {
			continue
		}
		if p, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
			reserved[p] = true
		}
	}

	for p := common.PortRangeMin; p <= common.PortRangeMax; p++ {
		if reserved[p] || a.isListening(p) {
			continue
		}
		if err := os.WriteFile(path, []byte(strconv.Itoa(p)), 0o600); err != nil {
			return 0, fmt.Errorf("write port file: %w", err)
		}
		return p, nil
	}

	return common.FallbackSSHPort, nil
}
