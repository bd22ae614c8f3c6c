// Package labels builds and reads the containai.* label schema attached to
// managed containers, replacing the teacher's much richer
// hash/lifecycle/compose label set with the smaller schema spec.md's data
// model calls for.
package labels

import (
	"fmt"
	"time"

	"github.com/containai/cai/internal/common"
)

// Label keys, all under the common.LabelPrefix ("containai.") namespace.
const (
	Managed             = common.LabelPrefix + "managed"
	Type                = common.LabelPrefix + "type"
	DevcontainerWorkspace = common.LabelPrefix + "devcontainer.workspace"
	DataVolume          = common.LabelPrefix + "data-volume"
	SSHPort             = common.LabelPrefix + "ssh-port"
	Created             = common.LabelPrefix + "created"
	Workspace           = common.LabelPrefix + "workspace"
	Keep                = common.LabelPrefix + "keep"
)

// TypeDevcontainer is the Type label value for a proxied devcontainer
// create.
const TypeDevcontainer = "devcontainer"

// Set is a parsed view over a container's label map.
type Set struct {
	Managed   bool
	Type      string
	Workspace string
	DataVol   string
	SSHPort   int
	Created   time.Time
	Keep      bool
}

// BuildOptions describes a newly created managed container's labels.
type BuildOptions struct {
	Workspace string
	DataVol   string
	SSHPort   int
	Keep      bool
}

// Build renders BuildOptions into the `--label k=v` map to attach to a
// `docker create`/`run` invocation.
func Build(opts BuildOptions) map[string]string {
	m := map[string]string{
		Managed:               "true",
		Type:                  TypeDevcontainer,
		DevcontainerWorkspace: opts.Workspace,
		Workspace:             opts.Workspace,
		DataVolume:            opts.DataVol,
		SSHPort:               fmt.Sprintf("%d", opts.SSHPort),
		Created:               time.Now().UTC().Format(time.RFC3339),
	}
	if opts.Keep {
		m[Keep] = "true"
	}
	return m
}

// Args renders the label map as a flat `--label k=v` argv fragment, in a
// stable order for reproducible invocations.
func Args(m map[string]string) []string {
	order := []string{Managed, Type, DevcontainerWorkspace, Workspace, DataVolume, SSHPort, Created, Keep}
	var out []string
	for _, k := range order {
		if v, ok := m[k]; ok {
			out = append(out, "--label", k+"="+v)
		}
	}
	return out
}

// FromMap parses a container's label map into a Set.
func FromMap(m map[string]string) Set {
	s := Set{
		Managed:   m[Managed] == "true",
		Type:      m[Type],
		Workspace: m[Workspace],
		DataVol:   m[DataVolume],
		Keep:      m[Keep] == "true",
	}
	if v, ok := m[SSHPort]; ok {
		fmt.Sscanf(v, "%d", &s.SSHPort)
	}
	if v, ok := m[Created]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			s.Created = t
		}
	}
	return s
}
