// Package common provides shared utilities and constants used across containai packages.
package common

const (
	// SSHHostPrefix is the prefix used for per-workspace SSH host aliases:
	// "containai-devcontainer-<sanitized>".
	SSHHostPrefix = "containai-devcontainer-"

	// LabelPrefix namespaces every managed-container label.
	LabelPrefix = "containai."

	// ManagedRuntime is the sandboxed container runtime injected into every
	// managed create/run invocation.
	ManagedRuntime = "sysbox-runc"

	// DataVolumeMountPath is where the data volume is mounted in managed containers.
	DataVolumeMountPath = "/mnt/agent-data"

	// DefaultDataVolume is used when no data volume is configured anywhere in
	// the precedence chain (C11).
	DefaultDataVolume = "containai-data"

	// DefaultRemoteUser is used when neither the feature block nor the
	// top-level devcontainer.json remoteUser field supplies one.
	DefaultRemoteUser = "vscode"

	// PortRangeMin and PortRangeMax bound the SSH port allocator (C6).
	PortRangeMin = 2400
	PortRangeMax = 2499

	// FallbackSSHPort is returned when the allocator's range is exhausted.
	FallbackSSHPort = 2322
)

// ManagedImagePrefixes lists the image repository prefixes the GC engine's
// `--images` pass is allowed to remove. Not specified by name anywhere else,
// so fixed here as the two forms ContainAI images are published under.
var ManagedImagePrefixes = []string{"ghcr.io/containai/", "containai/"}

const (
	// DefaultRsyncImage backs the disposable copy containers the import
	// engine runs, overridable via CONTAINAI_RSYNC_IMAGE.
	DefaultRsyncImage = "instrumentisto/rsync-ssh"

	// ProbeImage backs the volume-credential sentinel probe and other
	// throwaway shell invocations that do not need rsync.
	ProbeImage = "alpine:3.20"

	// ManagedSocketPath is the engine socket setup bootstraps and the
	// managed docker context points at.
	ManagedSocketPath = "/var/run/containai-docker.sock"

	// SystemdUnitName is the service setup starts when present.
	SystemdUnitName = "containai-docker.service"

	// LimaVMName is the Lima instance setup starts on macOS.
	LimaVMName = "containai"
)
