// Package main provides the entry point for cai-docker: the drop-in
// `docker` replacement that classifies, rewrites, and forwards its
// argument vector per the create-command transform (C9).
package main

import (
	"context"
	"os"

	"github.com/containai/cai/internal/clog"
	"github.com/containai/cai/internal/ctnrerr"
	"github.com/containai/cai/internal/dockerproxy"
	"github.com/containai/cai/internal/engine"
	"github.com/containai/cai/internal/portalloc"
	"github.com/containai/cai/internal/sshmanager"
	"github.com/containai/cai/internal/volcred"
)

func main() {
	os.Exit(run())
}

func run() int {
	quiet := hasFlag("--quiet", "-q")
	verbose := hasFlag("--verbose", "-v")
	clog.Configure(verbose, quiet, os.Getenv("CONTAINAI_LOG_FILE"))

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	configDir := home + "/.config/containai"

	realDocker := os.Getenv("CONTAINAI_REAL_DOCKER")
	if realDocker == "" {
		realDocker = "docker"
	}
	adapter := engine.New(realDocker, clog.Logger())

	lookup := portalloc.NewEngineLookup(adapter, firstManagedContext(adapter))
	ports := portalloc.New(configDir, lookup, clog.Logger())
	ssh := sshmanager.New(home, clog.Logger())
	vc := volcred.New(adapter)

	t := dockerproxy.New(adapter, ports, ssh, vc, clog.Logger(), os.Stderr)

	code, err := t.Run(context.Background(), os.Args[1:], quiet, verbose)
	if err != nil {
		if msg := err.Error(); msg != "" {
			os.Stderr.WriteString(msg + "\n")
		}
		return ctnrerr.ExitCode(err)
	}
	return code
}

func firstManagedContext(adapter *engine.Adapter) string {
	if name, ok := adapter.ManagedContext(context.Background()); ok {
		return name
	}
	return engine.ManagedContextNames[0]
}

func hasFlag(names ...string) bool {
	for _, a := range os.Args[1:] {
		for _, n := range names {
			if a == n {
				return true
			}
		}
	}
	return false
}
