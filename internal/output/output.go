// Package output is the single place cai's CLI writes to: plain/JSON
// rendering, quiet suppression, and the error/warning prefixes, all keyed
// off one process-wide Sink configured once from the root command's flags.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Format selects plain text or structured JSON rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Verbosity gates which of Print/Println actually write.
type Verbosity int

const (
	VerbosityQuiet   Verbosity = -1
	VerbosityNormal  Verbosity = 0
	VerbosityVerbose Verbosity = 1
)

// Config is how a subcommand's PersistentPreRunE configures the Sink once,
// from the parsed --json/--quiet/--verbose/--no-color flags.
type Config struct {
	Format    Format
	Verbosity Verbosity
	NoColor   bool
	Writer    io.Writer
	ErrWriter io.Writer
}

// Sink writes text and JSON to a configured pair of streams, respecting
// quiet mode and colorizing the Error/Warning prefixes.
type Sink struct {
	cfg   Config
	color *ColorConfig
	mu    sync.Mutex
}

var (
	sink   *Sink
	sinkMu sync.Mutex
)

func init() {
	sink = newSink(Config{Format: FormatText, Verbosity: VerbosityNormal, Writer: os.Stdout, ErrWriter: os.Stderr})
}

func newSink(cfg Config) *Sink {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.ErrWriter == nil {
		cfg.ErrWriter = os.Stderr
	}
	return &Sink{cfg: cfg, color: NewColorConfig(cfg.Writer, cfg.NoColor)}
}

// Configure replaces the process-wide Sink.
func Configure(cfg Config) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = newSink(cfg)
}

// Global returns the process-wide Sink.
func Global() *Sink {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	return sink
}

func (s *Sink) quiet() bool { return s.cfg.Verbosity == VerbosityQuiet }

// Writer returns the stdout-equivalent stream.
func (s *Sink) Writer() io.Writer { return s.cfg.Writer }

// Print writes a raw, unterminated message unless quiet.
func (s *Sink) Print(format string, args ...interface{}) {
	if s.quiet() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.cfg.Writer, format, args...)
}

// Println writes args with a trailing newline unless quiet.
func (s *Sink) Println(args ...interface{}) {
	if s.quiet() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.cfg.Writer, args...)
}

// Error writes a colorized "Error:" line to the error stream; errors are
// never suppressed by quiet mode.
func (s *Sink) Error(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.cfg.ErrWriter, "%s %s\n", s.color.Error("Error:"), fmt.Sprintf(format, args...))
}

// Warning writes a colorized "Warning:" line to the error stream unless quiet.
func (s *Sink) Warning(format string, args ...interface{}) {
	if s.quiet() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.cfg.ErrWriter, "%s %s\n", s.color.Warning("Warning:"), fmt.Sprintf(format, args...))
}

// JSON pretty-prints v to the stdout-equivalent stream.
func (s *Sink) JSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.cfg.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Print writes to the global Sink.
func Print(format string, args ...interface{}) { Global().Print(format, args...) }

// Println writes to the global Sink.
func Println(args ...interface{}) { Global().Println(args...) }

// Error writes to the global Sink.
func Error(format string, args ...interface{}) { Global().Error(format, args...) }

// Warning writes to the global Sink.
func Warning(format string, args ...interface{}) { Global().Warning(format, args...) }

// JSON writes to the global Sink.
func JSON(v interface{}) error { return Global().JSON(v) }
