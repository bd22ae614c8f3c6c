package doctor

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

// RenderJSON marshals v as indented JSON to w.
func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkMark(ok bool) string {
	if ok {
		return pterm.FgGreen.Sprint("✓")
	}
	return pterm.FgRed.Sprint("✗")
}

// renderTable points pterm's default output at w for the duration of one
// table render, the same global-writer idiom the CLI's own table helper
// uses (ui.go's SetDefaultOutput before Render).
func renderTable(w io.Writer, rows pterm.TableData) error {
	pterm.SetDefaultOutput(w)
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// RenderDoctorHuman prints res as a pterm table: one row per probe, plus one
// row per template smoke build when present.
func RenderDoctorHuman(w io.Writer, res Result) error {
	rows := pterm.TableData{
		{"Check", "Result", "Detail"},
		{"CLI present", checkMark(res.CLIPresent), ""},
		{"Managed context", checkMark(res.ContextPresent), res.ManagedContext},
		{"Engine reachable", checkMark(res.EngineReachable), ""},
		{"sysbox-runc runtime", checkMark(res.SysboxPresent), ""},
	}
	for _, t := range res.Templates {
		rows = append(rows, []string{"Template: " + t.Name, checkMark(t.OK), t.Message})
	}
	return renderTable(w, rows)
}

// RenderSetupHuman prints each bootstrap step, then the final doctor table.
func RenderSetupHuman(w io.Writer, res SetupResult) error {
	rows := pterm.TableData{{"Step", "Result", "Detail"}}
	for _, step := range res.Steps {
		mark := pterm.FgGray.Sprint("-")
		switch {
		case step.Skipped:
			mark = pterm.FgYellow.Sprint("skip")
		case step.Did:
			mark = pterm.FgGreen.Sprint("done")
		}
		rows = append(rows, []string{step.Name, mark, step.Detail})
	}
	if err := renderTable(w, rows); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return RenderDoctorHuman(w, res.Doctor)
}

// RenderStatusHuman prints one StatusReport as a key/value table.
func RenderStatusHuman(w io.Writer, report StatusReport) error {
	rows := pterm.TableData{
		{"Field", "Value"},
		{"Name", report.Name},
		{"Context", report.ContextName},
		{"Status", report.Status},
		{"Image", report.Image},
	}
	if report.Uptime != "" {
		rows = append(rows, []string{"Uptime", report.Uptime})
	}
	if report.MemUsage != "" {
		rows = append(rows, []string{"Memory", report.MemUsage})
	}
	if report.CPUPerc != "" {
		rows = append(rows, []string{"CPU", report.CPUPerc})
	}
	return renderTable(w, rows)
}
