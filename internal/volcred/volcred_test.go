package volcred

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/containai/cai/internal/procrunner"
)

type fakeCapturer struct {
	exitCode int
	lastArgs []string
}

func (f *fakeCapturer) Capture(ctx context.Context, contextName string, args ...string) (procrunner.CaptureResult, error) {
	f.lastArgs = args
	return procrunner.CaptureResult{ExitCode: f.exitCode}, nil
}

func TestProbeSentinelPresent(t *testing.T) {
	fc := &fakeCapturer{exitCode: 0}
	v := NewWithCapturer(fc)

	res, err := v.Probe(context.Background(), "containai-docker", "containai-data")
	require.NoError(t, err)
	require.True(t, res.SentinelPresent)
	require.Contains(t, fc.lastArgs, "containai-data:/vol:ro")
	require.Contains(t, fc.lastArgs, SentinelPath)
}

func TestProbeSentinelAbsent(t *testing.T) {
	fc := &fakeCapturer{exitCode: 1}
	v := NewWithCapturer(fc)

	res, err := v.Probe(context.Background(), "containai-docker", "containai-data")
	require.NoError(t, err)
	require.False(t, res.SentinelPresent)
}

func TestShouldMount(t *testing.T) {
	require.True(t, ShouldMount(true, false), "EnableCredentials always mounts")
	require.True(t, ShouldMount(true, true))
	require.True(t, ShouldMount(false, true), "mount when sentinel present")
	require.False(t, ShouldMount(false, false))
}

func TestWarningsHasTwoLines(t *testing.T) {
	require.Len(t, Warnings(), 2)
}
