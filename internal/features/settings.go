package features

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/containai/cai/internal/common"
)

var (
	volumeNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	remoteUserPattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)
)

// IsValidVolumeName reports whether v matches spec.md §8's volume-name
// invariant: ^[A-Za-z0-9][A-Za-z0-9._-]*$, none of ':', '/', '~', and not
// "." or "..".
func IsValidVolumeName(v string) bool {
	if v == "" || v == "." || v == ".." {
		return false
	}
	if strings.ContainsAny(v, ":/~") {
		return false
	}
	return volumeNamePattern.MatchString(v)
}

// Settings is the set of ContainAI-relevant fields extracted from a
// devcontainer.json's feature block and top-level fields (spec.md §3).
type Settings struct {
	HasContainAIFeature bool
	DataVolume          string
	EnableCredentials   bool
	RemoteUser          string
}

// devcontainerDoc is the minimal shape read out of the stripped JSON.
type devcontainerDoc struct {
	Features   map[string]json.RawMessage `json:"features"`
	RemoteUser string                     `json:"remoteUser"`
}

type featureBody struct {
	DataVolume        json.RawMessage `json:"dataVolume"`
	EnableCredentials json.RawMessage `json:"enableCredentials"`
	RemoteUser        json.RawMessage `json:"remoteUser"`
}

// ParseFile reads path, strips JSONC comments, and extracts Settings.
func ParseFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read devcontainer config: %w", err)
	}
	return Parse(data)
}

// Parse extracts Settings from raw (possibly JSONC) devcontainer.json bytes.
func Parse(raw []byte) (*Settings, error) {
	stripped := StripComments(raw)

	var doc devcontainerDoc
	if err := json.Unmarshal(stripped, &doc); err != nil {
		return nil, fmt.Errorf("parse devcontainer config: %w", err)
	}

	s := &Settings{
		DataVolume: common.DefaultDataVolume,
		RemoteUser: common.DefaultRemoteUser,
	}

	var matched featureBody
	for key, body := range doc.Features {
		if !strings.Contains(strings.ToLower(key), "containai") {
			continue
		}
		s.HasContainAIFeature = true
		_ = json.Unmarshal(body, &matched)
	}

	if v, ok := decodeString(matched.DataVolume); ok && IsValidVolumeName(v) {
		s.DataVolume = v
	}
	if b, ok := decodeTruthy(matched.EnableCredentials); ok {
		s.EnableCredentials = b
	}
	if v, ok := decodeString(matched.RemoteUser); ok && remoteUserPattern.MatchString(v) {
		s.RemoteUser = v
	}

	// Top-level remoteUser overrides the feature block when present and valid.
	if doc.RemoteUser != "" && remoteUserPattern.MatchString(doc.RemoteUser) {
		s.RemoteUser = doc.RemoteUser
	}

	return s, nil
}

func decodeString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// decodeTruthy decodes a bool or bool-shaped string ("true"/"false",
// case-insensitive) per spec.md §3's EnableCredentials rule.
func decodeTruthy(raw json.RawMessage) (bool, bool) {
	if len(raw) == 0 {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseBool(strings.ToLower(s)); err == nil {
			return parsed, true
		}
	}
	return false, false
}
