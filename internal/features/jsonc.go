// Package features reads a devcontainer config, strips JSONC comments, and
// extracts the ContainAI feature block (C5).
package features

import "github.com/tidwall/jsonc"

// StripComments removes // and /* */ comments and trailing commas from JSONC
// source, returning valid JSON. It is idempotent: StripComments(StripComments(c))
// == StripComments(c), since re-running it on already-valid JSON is a no-op.
func StripComments(c []byte) []byte {
	return jsonc.ToJSON(c)
}
