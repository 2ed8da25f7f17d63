// Package logging builds the zerolog loggers used across spectree.
//
// Output goes to stderr so stdout stays clean for --json. A terminal gets the
// human-readable console format, anything else gets JSON lines.
// SPECTREE_DEBUG=1 (or --verbose) lowers the level to debug.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// DebugEnabled reports whether SPECTREE_DEBUG is set.
func DebugEnabled() bool {
	return os.Getenv("SPECTREE_DEBUG") != ""
}

// Options controls New.
type Options struct {
	Level   string // zerolog level name; empty means "warn"
	Verbose bool   // force debug
	Quiet   bool   // errors only; ignored when Verbose
	JSON    bool   // force JSON lines even on a terminal
}

// ParseLevel maps a level name to zerolog, falling back to warn.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.WarnLevel
	}
	return lvl
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) zerolog.Logger {
	level := ParseLevel(opts.Level)
	switch {
	case opts.Verbose || DebugEnabled():
		level = zerolog.DebugLevel
	case opts.Quiet:
		level = zerolog.ErrorLevel
	}

	var out io.Writer
	if !opts.JSON && isTerminal(w) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	} else {
		out = zerolog.SyncWriter(w)
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) // #nosec G115 - fd fits in int
}
