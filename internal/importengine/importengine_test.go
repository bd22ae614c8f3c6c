package importengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/containai/cai/internal/configstore"
	"github.com/containai/cai/internal/manifest"
	"github.com/containai/cai/internal/procrunner"
)

type call struct {
	args  []string
	stdin string
}

type fakeEngine struct {
	calls       []call
	ensuredVols []string
}

func (f *fakeEngine) Capture(ctx context.Context, contextName string, args ...string) (procrunner.CaptureResult, error) {
	f.calls = append(f.calls, call{args: args})
	return procrunner.CaptureResult{ExitCode: 0}, nil
}

func (f *fakeEngine) CaptureWithStdin(ctx context.Context, contextName, stdin string, args ...string) (procrunner.CaptureResult, error) {
	f.calls = append(f.calls, call{args: args, stdin: stdin})
	return procrunner.CaptureResult{ExitCode: 0}, nil
}

func (f *fakeEngine) EnsureVolume(ctx context.Context, contextName, name string) error {
	f.ensuredVols = append(f.ensuredVols, name)
	return nil
}

type fakeConfigReader struct {
	cfg configstore.Config
}

func (f *fakeConfigReader) Load() (configstore.Config, error) { return f.cfg, nil }

func newImporter(t *testing.T, cfg configstore.Config) (*Importer, *fakeEngine) {
	t.Helper()
	fe := &fakeEngine{}
	im := New(fe, &fakeConfigReader{cfg: cfg}, os.Stderr)
	return im, fe
}

func TestResolveVolumePrecedence(t *testing.T) {
	im, _ := newImporter(t, configstore.Config{Agent: configstore.AgentConfig{DataVolume: "global-vol"}})
	v := im.resolveVolume(Options{Volume: "flag-vol"}, configstore.Config{Agent: configstore.AgentConfig{DataVolume: "global-vol"}})
	require.Equal(t, "flag-vol", v)

	v = im.resolveVolume(Options{}, configstore.Config{Agent: configstore.AgentConfig{DataVolume: "global-vol"}})
	require.Equal(t, "global-vol", v)

	v = im.resolveVolume(Options{}, configstore.Config{})
	require.Equal(t, "containai-data", v)
}

func TestResolveSourceDetectsArchive(t *testing.T) {
	im, _ := newImporter(t, configstore.Config{})
	dir := t.TempDir()
	archive := filepath.Join(dir, "backup.tgz")
	require.NoError(t, os.WriteFile(archive, []byte("x"), 0o600))

	root, isArchive, err := im.resolveSource(Options{From: archive})
	require.NoError(t, err)
	require.True(t, isArchive)
	require.Equal(t, archive, root)
}

func TestResolveSourceRejectsMissingDirectory(t *testing.T) {
	im, _ := newImporter(t, configstore.Config{})
	_, _, err := im.resolveSource(Options{From: "/nonexistent/path/xyz"})
	require.Error(t, err)
}

func TestRunDirectoryEnsuresVolumeAndCopiesEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitconfig"), []byte("[user]\nname=x\n"), 0o600))

	im, fe := newImporter(t, configstore.Config{})
	err := im.Run(context.Background(), Options{
		ContextName:   "default",
		WorkspacePath: dir,
		From:          dir,
		ManifestPath:  "",
	})
	require.NoError(t, err)
	require.Contains(t, fe.ensuredVols, "containai-data")
	require.NotEmpty(t, fe.calls)
}

func TestRunDryRunNeverEnsuresVolume(t *testing.T) {
	dir := t.TempDir()
	im, fe := newImporter(t, configstore.Config{})
	err := im.Run(context.Background(), Options{
		WorkspacePath: dir,
		From:          dir,
		DryRun:        true,
	})
	require.NoError(t, err)
	require.Empty(t, fe.ensuredVols)
}

func TestDedupeImportKeysDropsInvalidAndDuplicates(t *testing.T) {
	im, _ := newImporter(t, configstore.Config{})
	out := dedupeImportKeys([]string{"FOO", "FOO", "1BAD", "BAR"}, im)
	require.Equal(t, []string{"FOO", "BAR"}, out)
}

func TestParseEnvFileRejectsAbsolutePath(t *testing.T) {
	im, _ := newImporter(t, configstore.Config{})
	_, err := im.parseEnvFile(Options{WorkspacePath: t.TempDir()}, "/etc/passwd")
	require.Error(t, err)
}

func TestParseEnvFileRejectsEscapingPath(t *testing.T) {
	im, _ := newImporter(t, configstore.Config{})
	_, err := im.parseEnvFile(Options{WorkspacePath: t.TempDir()}, "../outside.env")
	require.Error(t, err)
}

func TestParseEnvFileSkipsCommentsAndExportPrefix(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".env"), []byte("# comment\nexport FOO=bar\nBAZ=qux\n\n"), 0o600))

	im, _ := newImporter(t, configstore.Config{})
	vals, err := im.parseEnvFile(Options{WorkspacePath: ws}, ".env")
	require.NoError(t, err)
	require.Equal(t, "bar", vals.values["FOO"])
	require.Equal(t, "qux", vals.values["BAZ"])
	require.Equal(t, []string{"FOO", "BAZ"}, vals.order)
}

func TestParseEnvFileRejectsSymlink(t *testing.T) {
	ws := t.TempDir()
	real := filepath.Join(ws, "real.env")
	require.NoError(t, os.WriteFile(real, []byte("A=1\n"), 0o600))
	link := filepath.Join(ws, "link.env")
	require.NoError(t, os.Symlink(real, link))

	im, _ := newImporter(t, configstore.Config{})
	_, err := im.parseEnvFile(Options{WorkspacePath: ws}, "link.env")
	require.Error(t, err)
}

func TestIsUnterminatedQuotedDetectsOpenQuote(t *testing.T) {
	require.True(t, isUnterminatedQuoted(`"unterminated`))
	require.False(t, isUnterminatedQuoted(`"closed"`))
	require.False(t, isUnterminatedQuoted("plain"))
}

func TestHasSymlinkComponentDetectsIntermediateLink(t *testing.T) {
	root := t.TempDir()
	realDir := filepath.Join(root, "real")
	require.NoError(t, os.MkdirAll(realDir, 0o700))
	linkDir := filepath.Join(root, "linked")
	require.NoError(t, os.Symlink(realDir, linkDir))
	target := filepath.Join(linkDir, "file.txt")
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "file.txt"), []byte("x"), 0o600))

	require.True(t, hasSymlinkComponent(root, target))
	require.False(t, hasSymlinkComponent(root, filepath.Join(realDir, "file.txt")))
}

func TestMatchOverlayTargetPrefersLongestDirPrefix(t *testing.T) {
	entries := []manifest.Entry{
		{Source: "shell", Target: "home/.shell", Flags: "d"},
		{Source: "shell/bashrc.d", Target: "home/.bashrc.d", Flags: "d"},
	}
	target, ok := matchOverlayTarget(entries, ".shell/bashrc.d/extra.sh")
	require.True(t, ok)
	require.Equal(t, "home/.bashrc.d/extra.sh", target.path)
}

func TestMatchOverlayTargetExactFileMatch(t *testing.T) {
	entries := []manifest.Entry{
		{Source: ".gitconfig", Target: "home/.gitconfig", Flags: "f"},
	}
	target, ok := matchOverlayTarget(entries, ".gitconfig")
	require.True(t, ok)
	require.Equal(t, "home/.gitconfig", target.path)
}

func TestMatchOverlayTargetUnmapped(t *testing.T) {
	entries := []manifest.Entry{
		{Source: ".gitconfig", Target: "home/.gitconfig", Flags: "f"},
	}
	_, ok := matchOverlayTarget(entries, ".unrelated")
	require.False(t, ok)
}
