package importengine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/manifest"
)

// applyOverlays copies every file under
// ~/.config/containai/import-overrides/** onto the manifest target whose
// source prefix it matches longest, skipping symlinks, unmapped paths, and
// secret overlays under --no-secrets.
func (im *Importer) applyOverlays(ctx context.Context, opts Options, volume string, entries []manifest.Entry) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	overridesRoot := filepath.Join(home, ".config", "containai", "import-overrides")

	var files []string
	err = filepath.WalkDir(overridesRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			im.warn("skipping symlink overlay %s", p)
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, f := range files {
		rel, err := filepath.Rel(overridesRoot, f)
		if err != nil {
			continue
		}
		relSlash := filepath.ToSlash(rel)
		if !strings.HasPrefix(relSlash, ".") {
			relSlash = "." + relSlash
		}

		target, ok := matchOverlayTarget(entries, relSlash)
		if !ok {
			im.verbosef(opts, "[WARN] overlay %s has no manifest target, skipping", rel)
			continue
		}
		if opts.NoSecrets && target.secret {
			continue
		}

		if err := im.copyOverlayFile(ctx, opts, volume, f, target.path); err != nil {
			im.warn("overlay %s: %v", rel, err)
		}
	}
	return nil
}

type overlayTarget struct {
	path   string
	secret bool
}

func matchOverlayTarget(entries []manifest.Entry, relSlash string) (overlayTarget, bool) {
	best := ""
	var bestEntry manifest.Entry
	found := false

	for _, e := range entries {
		srcSlash := e.Source
		if !strings.HasPrefix(srcSlash, ".") {
			srcSlash = "." + srcSlash
		}
		if e.IsDir() {
			prefix := srcSlash
			if !strings.HasSuffix(prefix, "/") {
				prefix += "/"
			}
			if strings.HasPrefix(relSlash, prefix) && len(prefix) > len(best) {
				best = prefix
				bestEntry = e
				found = true
			}
		} else if srcSlash == relSlash {
			if len(srcSlash) > len(best) {
				best = srcSlash
				bestEntry = e
				found = true
			}
		}
	}
	if !found {
		return overlayTarget{}, false
	}

	suffix := strings.TrimPrefix(relSlash, best)
	targetPath := bestEntry.Target
	if bestEntry.IsDir() {
		targetPath = strings.TrimSuffix(targetPath, "/") + "/" + suffix
	}
	return overlayTarget{path: targetPath, secret: bestEntry.IsSecret()}, true
}

func (im *Importer) copyOverlayFile(ctx context.Context, opts Options, volume, hostPath, targetPath string) error {
	containerTarget := "/target/" + targetPath
	script := "mkdir -p $(dirname " + containerTarget + ") && cp -f /overlay/" + filepath.Base(hostPath) + " " + containerTarget + " && chown 1000:1000 " + containerTarget

	return im.capture(ctx, opts, "apply overlay "+targetPath,
		"run", "--rm",
		"-v", volume+":/target",
		"-v", hostPath+":/overlay/"+filepath.Base(hostPath)+":ro",
		common.ProbeImage, "sh", "-c", script)
}
