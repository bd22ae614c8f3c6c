// Package manifest describes the host→volume copy list the import engine
// (C14) walks: one entry per file or directory to materialize into the
// data volume, tagged with a small set of behavior flags.
package manifest

import (
	"strings"

	"github.com/BurntSushi/toml"
)

// Entry is one row of the import manifest.
//
// Flags is a string whose characters form a set:
//
//	d directory        f file              s secret
//	m mirror-delete     x exclude .system/  p honor .priv. filter
//	g git-config filter j seed empty JSON   G global (never per-workspace)
type Entry struct {
	Type     string `toml:"type"`
	Source   string `toml:"source"`
	Target   string `toml:"target"`
	Flags    string `toml:"flags"`
	Optional bool   `toml:"optional"`
}

// HasFlag reports whether c appears in e.Flags.
func (e Entry) HasFlag(c byte) bool {
	return strings.IndexByte(e.Flags, c) >= 0
}

// IsDir reports whether the entry targets a directory.
func (e Entry) IsDir() bool { return e.HasFlag('d') }

// IsSecret reports whether the entry carries secret-like content.
func (e Entry) IsSecret() bool { return e.HasFlag('s') }

// IsGlobal reports whether the entry is never copied per-workspace.
func (e Entry) IsGlobal() bool { return e.HasFlag('G') }

type document struct {
	Entry []Entry `toml:"entry"`
}

// Load reads a manifest TOML document from path, returning only rows with
// Type=="entry", a non-empty Source, and the 'G' flag absent (spec.md
// §4.3 step 5).
func Load(path string) ([]Entry, error) {
	var doc document
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, err
	}
	return filter(doc.Entry), nil
}

// Parse decodes a manifest document already held in memory, applying the
// same filter as Load.
func Parse(data []byte) ([]Entry, error) {
	var doc document
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, err
	}
	return filter(doc.Entry), nil
}

func filter(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Type != "entry" || e.Source == "" || e.IsGlobal() {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Default returns the baked-in manifest used when no manifest file is
// configured: the dotfiles, shell customization, and git identity every
// devcontainer workspace expects to find pre-populated in its data volume.
func Default() []Entry {
	return []Entry{
		{Type: "entry", Source: ".gitconfig", Target: "home/.gitconfig", Flags: "fg"},
		{Type: "entry", Source: ".ssh", Target: "home/.ssh", Flags: "dsp", Optional: true},
		{Type: "entry", Source: ".npmrc", Target: "home/.npmrc", Flags: "fs", Optional: true},
		{Type: "entry", Source: "shell/bashrc.d", Target: "home/.bashrc.d", Flags: "dp", Optional: true},
		{Type: "entry", Source: ".config/containai/env.json", Target: "home/.config/containai/env.json", Flags: "fj", Optional: true},
	}
}
