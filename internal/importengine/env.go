package importengine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/configstore"
)

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// importEnv builds the merged environment file written to /mnt/agent-data/.env
// per spec.md §4.3's env-import rules: workspace-relative env file first,
// host environment values override.
func (im *Importer) importEnv(ctx context.Context, opts Options, volume string, cfg configstore.Config) error {
	if len(cfg.Env.Import) == 0 && cfg.Env.EnvFile == "" && !cfg.Env.FromHost {
		return nil
	}

	allowed := dedupeImportKeys(cfg.Env.Import, im)

	var order []string
	values := map[string]string{}

	if cfg.Env.EnvFile != "" {
		fileValues, err := im.parseEnvFile(opts, cfg.Env.EnvFile)
		if err != nil {
			im.warn("env file: %v", err)
		} else {
			for _, k := range fileValues.order {
				if _, ok := values[k]; !ok {
					order = append(order, k)
				}
				values[k] = fileValues.values[k]
			}
		}
	}

	if cfg.Env.FromHost {
		for _, key := range allowed {
			v, ok := os.LookupEnv(key)
			if !ok {
				im.warn("host env %s is not set", key)
				continue
			}
			if strings.Contains(v, "\n") {
				im.warn("host env %s is multiline, skipping", key)
				continue
			}
			if _, seen := values[key]; !seen {
				order = append(order, key)
			}
			values[key] = v
		}
	}

	if len(order) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, k := range order {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(values[k])
		sb.WriteByte('\n')
	}

	script := `if [ -L /mnt/agent-data/.env ]; then echo "refusing to write through symlink" >&2; exit 1; fi
cat > /mnt/agent-data/.env.tmp
chmod 600 /mnt/agent-data/.env.tmp
chown 1000:1000 /mnt/agent-data/.env.tmp
mv -f /mnt/agent-data/.env.tmp /mnt/agent-data/.env`

	if opts.DryRun {
		im.verbosef(opts, "Would write %d env vars to /mnt/agent-data/.env", len(order))
		return nil
	}
	res, err := im.Adapter.CaptureWithStdin(ctx, opts.ContextName, sb.String(),
		nameDisposableRun([]string{"run", "--rm", "-i", "-v", volume + ":/mnt/agent-data", common.ProbeImage, "sh", "-c", script})...)
	if err != nil {
		return fmt.Errorf("write env: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("write env: exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func dedupeImportKeys(keys []string, im *Importer) []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range keys {
		if !envKeyPattern.MatchString(k) {
			im.warn("env.import key %q is invalid, dropping", k)
			continue
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

type envFileValues struct {
	order  []string
	values map[string]string
}

func (im *Importer) parseEnvFile(opts Options, relPath string) (envFileValues, error) {
	result := envFileValues{values: map[string]string{}}

	if filepath.IsAbs(relPath) {
		return result, fmt.Errorf("env_file %q must be workspace-relative", relPath)
	}

	abs := filepath.Join(opts.WorkspacePath, relPath)
	workspaceAbs, err := filepath.Abs(opts.WorkspacePath)
	if err != nil {
		return result, err
	}
	fileAbs, err := filepath.Abs(abs)
	if err != nil {
		return result, err
	}
	if !strings.HasPrefix(fileAbs, workspaceAbs+string(filepath.Separator)) {
		return result, fmt.Errorf("env_file %q escapes the workspace root", relPath)
	}

	info, err := os.Lstat(fileAbs)
	if err != nil {
		return result, fmt.Errorf("env_file %q: %w", relPath, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return result, fmt.Errorf("env_file %q is a symlink", relPath)
	}

	f, err := os.Open(fileAbs)
	if err != nil {
		return result, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		if !envKeyPattern.MatchString(key) {
			im.warn("env file key %q is invalid, skipping", key)
			continue
		}
		value := line[idx+1:]
		if isUnterminatedQuoted(value) {
			im.warn("env file value for %q looks like an unterminated multiline quote, skipping", key)
			continue
		}
		if _, ok := result.values[key]; !ok {
			result.order = append(result.order, key)
		}
		result.values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func isUnterminatedQuoted(v string) bool {
	if len(v) == 0 {
		return false
	}
	quote := v[0]
	if quote != '"' && quote != '\'' {
		return false
	}
	return len(v) < 2 || v[len(v)-1] != quote
}
