// Package template rewrites a Dockerfile's FROM line into a build-arg
// indirection (ARG BASE_IMAGE / FROM ${BASE_IMAGE}), the same pattern the
// devcontainers UID-update build step relies on, so the base image can be
// swapped at build time without editing the Dockerfile (C12).
package template

import "strings"

const (
	baseImageArg = "ARG BASE_IMAGE"
	baseImageRef = "FROM ${BASE_IMAGE}"
)

// Rewrite applies the FROM-to-ARG indirection to src. It is a no-op when
// both markers are already present, and idempotent: Rewrite(Rewrite(src))
// == Rewrite(src).
func Rewrite(src string) string {
	if strings.Contains(src, "${BASE_IMAGE}") && containsArgBaseImage(src) {
		return src
	}

	trailingNewline := strings.HasSuffix(src, "\n")
	lines := strings.Split(src, "\n")

	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if len(trimmed) < 5 || !strings.EqualFold(trimmed[:5], "from ") {
			continue
		}
		indent := line[:len(line)-len(trimmed)]
		payload := strings.TrimSpace(trimmed[5:])

		baseImage, stage, hasStage := splitStage(payload)

		replacement := []string{
			indent + "ARG BASE_IMAGE=" + baseImage,
		}
		if hasStage {
			replacement = append(replacement, indent+"FROM ${BASE_IMAGE} AS "+stage)
		} else {
			replacement = append(replacement, indent+baseImageRef)
		}

		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:i]...)
		out = append(out, replacement...)
		out = append(out, lines[i+1:]...)

		result := strings.Join(out, "\n")
		if trailingNewline && !strings.HasSuffix(result, "\n") {
			result += "\n"
		}
		return result
	}

	return src
}

func containsArgBaseImage(src string) bool {
	for _, line := range strings.Split(src, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), baseImageArg) {
			return true
		}
	}
	return false
}

// splitStage splits a FROM payload on a case-insensitive " AS " boundary.
func splitStage(payload string) (baseImage, stage string, hasStage bool) {
	idx := indexCaseInsensitive(payload, " as ")
	if idx < 0 {
		return payload, "", false
	}
	return strings.TrimSpace(payload[:idx]), strings.TrimSpace(payload[idx+4:]), true
}

func indexCaseInsensitive(s, substr string) int {
	lower := strings.ToLower(s)
	return strings.Index(lower, strings.ToLower(substr))
}
