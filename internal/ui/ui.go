package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/papapumpkin/titlepatch/internal/ansi"
	"github.com/papapumpkin/titlepatch/internal/patch"
)

// Printer renders command output for a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// New returns a Printer writing to stderr.
func New() *Printer {
	return NewWriter(os.Stderr)
}

// NewWriter returns a Printer writing to w, colored only when w is a terminal.
func NewWriter(w io.Writer) *Printer {
	return &Printer{w: w, color: ansi.Supported(w)}
}

func (p *Printer) s(text string, codes ...string) string {
	return ansi.Style(p.color, text, codes...)
}

// TitleID formats a title id the way patch files name them.
func TitleID(id uint32) string {
	return fmt.Sprintf("%08X", id)
}

// Error prints msg as a failure.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.w, "%s%s\n", p.s("error: ", ansi.Red, ansi.Bold), msg)
}

// Info prints a dimmed status line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, p.s(msg, ansi.Dim))
}

// FileList prints one line per loaded patch file.
func (p *Printer) FileList(files []*patch.File) {
	if len(files) == 0 {
		fmt.Fprintln(p.w, p.s("  (no patch files loaded)", ansi.Dim))
		return
	}
	for _, f := range files {
		name := f.TitleName
		if name == "" {
			name = "(untitled)"
		}
		fmt.Fprintf(p.w, "%s  %-32s %s\n",
			p.s(TitleID(f.TitleID), ansi.Cyan, ansi.Bold),
			name,
			p.s(fmt.Sprintf("%d/%d enabled", f.EnabledCount(), len(f.Definitions)), ansi.Dim))
	}
}

// TitleShow prints every patch and edit loaded for a title.
func (p *Printer) TitleShow(titleID uint32, files []*patch.File) {
	if len(files) == 0 {
		fmt.Fprintf(p.w, "%s no patches for title %s\n", p.s("-", ansi.Dim), TitleID(titleID))
		return
	}
	for _, f := range files {
		fmt.Fprintf(p.w, "\n%s %s %s\n",
			p.s(TitleID(f.TitleID), ansi.Bold, ansi.Cyan),
			f.TitleName,
			p.s("("+f.Source+")", ansi.Dim))
		for _, d := range f.Definitions {
			mark := p.s("○", ansi.Dim)
			if d.Enabled {
				mark = p.s("●", ansi.Green)
			}
			fmt.Fprintf(p.w, "  %s %3d  %s", mark, d.ID, p.s(d.Name, ansi.Bold))
			if d.Author != "" {
				fmt.Fprintf(p.w, " %s", p.s("by "+d.Author, ansi.Dim))
			}
			fmt.Fprintln(p.w)
			if d.Description != "" {
				fmt.Fprintf(p.w, "        %s\n", d.Description)
			}
			if len(d.Edits) == 0 {
				fmt.Fprintln(p.w, p.s("        (no edits)", ansi.Dim))
			}
			for _, e := range d.Edits {
				fmt.Fprintf(p.w, "        %s\n", e)
			}
		}
	}
}

// Diagnostics prints each diagnostic as a bullet.
func (p *Printer) Diagnostics(diags []patch.Diagnostic) {
	for _, d := range diags {
		color := ansi.Yellow
		if d.Category == patch.CatMissingTitleID || d.Category == patch.CatSourceUnreadable {
			color = ansi.Red
		}
		fmt.Fprintf(p.w, "  %s %s\n", p.s("• "+string(d.Category), color), d.Error())
	}
}

// ValidateResult prints the outcome of loading a set of patch files.
func (p *Printer) ValidateResult(loaded, rejected int, diags []patch.Diagnostic) {
	if len(diags) == 0 {
		fmt.Fprintf(p.w, "%s — %d file(s), no problems\n", p.s("✓ patches valid", ansi.Green, ansi.Bold), loaded)
		return
	}
	head := p.s("⚠ patches loaded with warnings", ansi.Yellow, ansi.Bold)
	if rejected > 0 {
		head = p.s("✗ patches rejected", ansi.Red, ansi.Bold)
	}
	fmt.Fprintf(p.w, "%s — %d loaded, %d rejected, %d diagnostic(s):\n", head, loaded, rejected, len(diags))
	p.Diagnostics(diags)
}

// ApplyResult prints the outcome of applying a title's patches.
func (p *Printer) ApplyResult(titleID uint32, writes int, err error) {
	if err == nil {
		fmt.Fprintf(p.w, "%s %s — %d write(s)\n", p.s("✓ patched", ansi.Green, ansi.Bold), TitleID(titleID), writes)
		return
	}
	var failures []string
	for _, e := range flatten(err) {
		failures = append(failures, e.Error())
	}
	fmt.Fprintf(p.w, "%s %s — %d write(s), %d failure(s):\n",
		p.s("⚠ partially patched", ansi.Yellow, ansi.Bold), TitleID(titleID), writes, len(failures))
	fmt.Fprintf(p.w, "  %s\n", strings.Join(failures, "\n  "))
}

// Toggled confirms an enable/disable override. name is the loaded patch's
// name, empty when unknown.
func (p *Printer) Toggled(titleID, patchID uint32, name string, enabled bool, matched int) {
	state := p.s("disabled", ansi.Yellow)
	if enabled {
		state = p.s("enabled", ansi.Green)
	}
	fmt.Fprintf(p.w, "patch %d of %s %s", patchID, TitleID(titleID), state)
	if name != "" {
		fmt.Fprintf(p.w, " %s", p.s("("+name+")", ansi.Dim))
	}
	if matched == 0 {
		fmt.Fprint(p.w, p.s(" (not currently loaded; override saved)", ansi.Dim))
	}
	fmt.Fprintln(p.w)
}

// flatten expands errors.Join trees into their leaves.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range j.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}
