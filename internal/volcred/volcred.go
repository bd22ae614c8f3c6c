// Package volcred implements the volume credential validator (C8): a
// throwaway-container probe for the data volume's "no secrets" sentinel
// file, used to decide whether the data volume is safe to mount into a
// passthrough create.
package volcred

import (
	"context"

	"github.com/containai/cai/internal/engine"
	"github.com/containai/cai/internal/procrunner"
)

// SentinelPath is the file whose presence in a data volume marks it as
// free of credential material.
const SentinelPath = "/vol/.containai-no-secrets"

const probeImage = "alpine"

// Capturer is the slice of *engine.Adapter that Validator depends on,
// narrowed so tests can substitute a fake without shelling out.
type Capturer interface {
	Capture(ctx context.Context, contextName string, args ...string) (procrunner.CaptureResult, error)
}

// Validator probes a data volume's credential sentinel via a throwaway
// container run through the engine adapter.
type Validator struct {
	adapter Capturer
}

// New creates a Validator backed by adapter.
func New(adapter *engine.Adapter) *Validator {
	return &Validator{adapter: adapter}
}

// NewWithCapturer creates a Validator backed by an arbitrary Capturer,
// primarily for tests.
func NewWithCapturer(c Capturer) *Validator {
	return &Validator{adapter: c}
}

// Result is the outcome of probing a volume.
type Result struct {
	// SentinelPresent is true when the volume already contains the
	// no-secrets sentinel file.
	SentinelPresent bool
}

// Probe runs `run --rm -v <volume>:/vol:ro alpine test -f <sentinel>` in
// contextName and reports whether the sentinel file is present.
func (v *Validator) Probe(ctx context.Context, contextName, volume string) (Result, error) {
	args := []string{
		"run", "--rm",
		"-v", volume + ":/vol:ro",
		probeImage,
		"test", "-f", SentinelPath,
	}
	res, err := v.adapter.Capture(ctx, contextName, args...)
	if err != nil {
		return Result{}, err
	}
	return Result{SentinelPresent: res.ExitCode == 0}, nil
}

// ShouldMount decides whether the data volume should be mounted into the
// outgoing create command, per spec.md §4.1 step 7: EnableCredentials=true
// always mounts; otherwise mount only when the sentinel is present.
func ShouldMount(enableCredentials bool, sentinelPresent bool) bool {
	if enableCredentials {
		return true
	}
	return sentinelPresent
}

// Warnings returns the two warning lines to emit (unless quiet) when the
// sentinel is absent and credentials were not explicitly enabled.
func Warnings() []string {
	return []string{
		"Warning: data volume has not been marked free of secrets",
		"Warning: skipping data volume mount for this container; set enableCredentials to override",
	}
}
