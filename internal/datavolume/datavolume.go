// Package datavolume resolves which named volume backs a workspace's
// persistent home state (C11), by precedence: flag, env, workspace config,
// global config, default.
package datavolume

import "github.com/containai/cai/internal/common"

// Sources bundles every precedence input; empty strings mean "absent".
type Sources struct {
	Flag            string
	Env             string
	WorkspaceConfig string
	GlobalConfig    string
}

// Resolve walks Sources in precedence order and falls back to
// common.DefaultDataVolume when none are set.
func Resolve(s Sources) string {
	for _, v := range []string{s.Flag, s.Env, s.WorkspaceConfig, s.GlobalConfig} {
		if v != "" {
			return v
		}
	}
	return common.DefaultDataVolume
}
