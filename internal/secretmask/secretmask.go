// Package secretmask masks sensitive values out of a logged argv vector
// before it reaches a debug log line, the way S4 in SPEC_FULL.md requires
// for every child-process invocation.
package secretmask

import "strings"

// MaskValue replaces a sensitive value in logged output.
const MaskValue = "********"

// SensitiveSubstrings denylists env-var key fragments (case-insensitive)
// that mark a `-e KEY=VALUE` token as carrying a secret.
var SensitiveSubstrings = []string{
	"PASSWORD", "SECRET", "TOKEN", "KEY", "CREDENTIAL", "AUTH", "PRIVATE",
}

// IsSensitiveKey reports whether key matches any denylisted substring,
// case-insensitively.
func IsSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, frag := range SensitiveSubstrings {
		if strings.Contains(upper, frag) {
			return true
		}
	}
	return false
}

// MaskArgv returns a copy of args with the value half of any `-e KEY=VALUE`
// or `--env KEY=VALUE` token masked when the key is sensitive. Both the
// split form (`-e`, `KEY=VALUE` as separate tokens) and the combined form
// (`-e=KEY=VALUE`, `--env=KEY=VALUE`) are recognized.
func MaskArgv(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)

	for i := 0; i < len(out); i++ {
		switch {
		case out[i] == "-e" || out[i] == "--env":
			if i+1 < len(out) {
				out[i+1] = maskToken(out[i+1])
			}
		case strings.HasPrefix(out[i], "-e="):
			out[i] = "-e=" + maskToken(strings.TrimPrefix(out[i], "-e="))
		case strings.HasPrefix(out[i], "--env="):
			out[i] = "--env=" + maskToken(strings.TrimPrefix(out[i], "--env="))
		}
	}
	return out
}

func maskToken(token string) string {
	key, _, ok := strings.Cut(token, "=")
	if !ok || !IsSensitiveKey(key) {
		return token
	}
	return key + "=" + MaskValue
}
