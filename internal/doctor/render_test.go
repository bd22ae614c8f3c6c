package doctor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderJSONEncodesResult(t *testing.T) {
	var buf bytes.Buffer
	res := Result{CLIPresent: true, ContextPresent: true, EngineReachable: true, SysboxPresent: true, ManagedContext: "containai-docker"}
	require.NoError(t, RenderJSON(&buf, res))
	require.Contains(t, buf.String(), `"cliPresent": true`)
	require.Contains(t, buf.String(), "containai-docker")
}

func TestRenderDoctorHumanProducesNonEmptyOutput(t *testing.T) {
	var buf bytes.Buffer
	res := Result{CLIPresent: true, ContextPresent: false}
	require.NoError(t, RenderDoctorHuman(&buf, res))
	require.NotEmpty(t, buf.String())
	require.Contains(t, buf.String(), "Managed context")
}

func TestRenderSetupHumanIncludesStepsAndDoctorTable(t *testing.T) {
	var buf bytes.Buffer
	res := SetupResult{
		Steps:  []SetupStep{{Name: "config directory", Did: true, Detail: "/tmp/x"}, {Name: "Lima VM", Skipped: true, Detail: "not macOS"}},
		Doctor: Result{CLIPresent: true},
	}
	require.NoError(t, RenderSetupHuman(&buf, res))
	out := buf.String()
	require.Contains(t, out, "config directory")
	require.Contains(t, out, "Lima VM")
	require.Contains(t, out, "CLI present")
}

func TestRenderStatusHumanOmitsEmptyOptionalFields(t *testing.T) {
	var buf bytes.Buffer
	report := StatusReport{Name: "w", ContextName: "containai-docker", Status: "exited", Image: "alpine"}
	require.NoError(t, RenderStatusHuman(&buf, report))
	out := buf.String()
	require.Contains(t, out, "w")
	require.NotContains(t, out, "Uptime")
}
