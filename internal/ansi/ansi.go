// Package ansi provides ANSI escape code constants and helpers for terminal output.
// All colored/styled terminal output should reference these constants to avoid duplication.
package ansi

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI SGR (Select Graphic Rendition) codes.
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Blue    = "\033[34m"
	Yellow  = "\033[33m"
	Green   = "\033[32m"
	Red     = "\033[31m"
	Cyan    = "\033[36m"
	Magenta = "\033[35m"
)

// Supported reports whether w is a terminal that should receive color codes.
// NO_COLOR disables color regardless of the terminal.
func Supported(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Style wraps s in codes when enabled is true.
func Style(enabled bool, s string, codes ...string) string {
	if !enabled || len(codes) == 0 {
		return s
	}
	out := ""
	for _, c := range codes {
		out += c
	}
	return out + s + Reset
}
