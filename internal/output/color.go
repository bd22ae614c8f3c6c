package output

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ANSI codes for the two prefixes cai actually prints in color: an error
// badge and a warning badge.
const (
	reset     = "\033[0m"
	boldCode  = "\033[1m"
	redCode   = "\033[31m"
	yellowCode = "\033[33m"
)

// ColorConfig decides whether ANSI codes go out on a given writer and
// applies them when they do.
type ColorConfig struct {
	enabled bool
}

// NewColorConfig detects NO_COLOR, TERM=dumb, and TTY-ness of w, in that
// order, unless forceNoColor already settled it.
func NewColorConfig(w io.Writer, forceNoColor bool) *ColorConfig {
	return &ColorConfig{enabled: !forceNoColor && shouldEnableColor(w)}
}

func shouldEnableColor(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	if _, ok := os.LookupEnv("FORCE_COLOR"); ok {
		return true
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *ColorConfig) apply(text, code string) string {
	if !c.enabled {
		return text
	}
	return code + boldCode + text + reset
}

// Error colors text for the "Error:" prefix.
func (c *ColorConfig) Error(text string) string { return c.apply(text, redCode) }

// Warning colors text for the "Warning:" prefix.
func (c *ColorConfig) Warning(text string) string { return c.apply(text, yellowCode) }
