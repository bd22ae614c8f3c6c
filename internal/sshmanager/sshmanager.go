// Package sshmanager maintains ~/.ssh/config's Include directive and the
// per-workspace fragment files under ~/.ssh/containai.d (C7).
package sshmanager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/containai/cai/internal/common"
)

// IncludeLine is the canonical include directive ensured at the top of
// ~/.ssh/config.
const IncludeLine = "Include ~/.ssh/containai.d/*.conf"

// Manager edits the host's SSH config under an exclusive file lock.
type Manager struct {
	sshDir   string
	fragDir  string
	lockPath string
	logger   *slog.Logger
}

// New creates a Manager rooted at homeDir/.ssh.
func New(homeDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	sshDir := filepath.Join(homeDir, ".ssh")
	return &Manager{
		sshDir:   sshDir,
		fragDir:  filepath.Join(sshDir, "containai.d"),
		lockPath: filepath.Join(sshDir, "config.containai.lock"),
		logger:   logger,
	}
}

func (m *Manager) withLock(fn func() error) error {
	if err := os.MkdirAll(m.sshDir, 0o700); err != nil {
		return fmt.Errorf("create .ssh dir: %w", err)
	}
	fl := flock.New(m.lockPath)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire ssh config lock: %w", err)
	}
	defer fl.Unlock()
	return fn()
}

func (m *Manager) configPath() string {
	return filepath.Join(m.sshDir, "config")
}

// EnsureInclude makes sure ~/.ssh/config contains exactly one canonical
// Include directive referencing containai.d/, at the top of the file.
func (m *Manager) EnsureInclude() error {
	return m.withLock(func() error {
		path := m.configPath()
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return os.WriteFile(path, []byte(IncludeLine+"\n"), 0o600)
			}
			return fmt.Errorf("read ssh config: %w", err)
		}

		lines := strings.Split(string(content), "\n")
		var filtered []string
		for _, line := range lines {
			tokens := strings.Fields(line)
			if len(tokens) >= 2 && strings.EqualFold(tokens[0], "Include") && strings.Contains(tokens[1], "containai.d/") {
				continue
			}
			filtered = append(filtered, line)
		}

		newContent := IncludeLine + "\n" + strings.TrimLeft(strings.Join(filtered, "\n"), "\n")
		return os.WriteFile(path, []byte(newContent), 0o600)
	})
}

func fragmentPath(fragDir, sanitized string) string {
	return filepath.Join(fragDir, "devcontainer-"+sanitized+".conf")
}

// WriteFragment ensures ~/.ssh and ~/.ssh/containai.d exist, writes the
// per-workspace Host block, and ensures the Include directive is present
// (spec.md §4.5 / §3's "SSH include fragment").
func (m *Manager) WriteFragment(sanitized string, port int, remoteUser string) error {
	if err := os.MkdirAll(m.fragDir, 0o700); err != nil {
		return fmt.Errorf("create containai.d: %w", err)
	}
	if err := m.EnsureInclude(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# written %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Host %s%s\n", common.SSHHostPrefix, sanitized)
	b.WriteString("  HostName localhost\n")
	fmt.Fprintf(&b, "  Port %d\n", port)
	if remoteUser != "" {
		fmt.Fprintf(&b, "  User %s\n", remoteUser)
	}
	b.WriteString("  StrictHostKeyChecking accept-new\n")
	b.WriteString("  UserKnownHostsFile ~/.ssh/containai.d/known_hosts\n")
	b.WriteString("  PreferredAuthentications publickey,keyboard-interactive\n")

	return os.WriteFile(fragmentPath(m.fragDir, sanitized), []byte(b.String()), 0o600)
}

// ContainerProbe reports whether a container named containai-devcontainer-<sanitized>
// still exists in the managed context, used to decide whether to clean up a
// stale fragment.
type ContainerProbe func(ctx context.Context, name string) bool

// CleanupResult describes one fragment's disposition.
type CleanupResult struct {
	Sanitized string
	Removed   bool
}

// Cleanup enumerates ~/.ssh/containai.d/*.conf and removes any fragment
// whose corresponding container no longer exists. dryRun reports what would
// be removed without deleting anything.
func (m *Manager) Cleanup(ctx context.Context, probe ContainerProbe, dryRun bool) ([]CleanupResult, error) {
	entries, err := os.ReadDir(m.fragDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read containai.d: %w", err)
	}

	var results []CleanupResult
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "devcontainer-") || !strings.HasSuffix(name, ".conf") {
			continue
		}
		sanitized := strings.TrimSuffix(strings.TrimPrefix(name, "devcontainer-"), ".conf")
		containerName := common.SSHHostPrefix + sanitized

		if probe(ctx, containerName) {
			continue
		}

		results = append(results, CleanupResult{Sanitized: sanitized, Removed: !dryRun})
		if dryRun {
			m.logger.Info("would remove stale SSH fragment", "sanitized", sanitized)
			continue
		}
		if err := os.Remove(filepath.Join(m.fragDir, name)); err != nil {
			return results, fmt.Errorf("remove fragment %s: %w", name, err)
		}
	}
	return results, nil
}

// IncludeCount counts how many times the canonical include line appears in
// ~/.ssh/config, used by tests to assert the "exactly once" invariant.
func (m *Manager) IncludeCount() (int, error) {
	content, err := os.ReadFile(m.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	count := 0
	for _, line := range strings.Split(string(content), "\n") {
		tokens := strings.Fields(line)
		if len(tokens) >= 2 && strings.EqualFold(tokens[0], "Include") && strings.Contains(tokens[1], "containai.d/") {
			count++
		}
	}
	return count, nil
}

// ParsePortFromFragment is a small test/debug helper reading back the Port
// line of a fragment.
func ParsePortFromFragment(content string) (int, bool) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Port ") {
			p, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Port ")))
			if err == nil {
				return p, true
			}
		}
	}
	return 0, false
}
