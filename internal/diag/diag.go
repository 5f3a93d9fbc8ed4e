// Package diag accumulates compiler diagnostics the way the source buffer
// component of the pipeline requires: ordered by coordinate, never stopping
// analysis, but gating code emission once an error is seen.
package diag

import (
	"fmt"
	"io"
	"sort"

	"github.com/gorse-io/csubc/internal/source"
)

// Kind classifies a diagnostic's severity.
type Kind int

const (
	Note Kind = iota
	Warning
	Error
)

func (k Kind) String() string {
	switch k {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "note"
	}
}

// Diagnostic is one reported problem, always carrying a source coordinate.
type Diagnostic struct {
	Kind    Kind
	Pos     source.Pos
	Message string
}

// Bag collects diagnostics for a translation unit. Ordering is applied only
// when printed, not on insertion, so callers never need to pre-sort.
type Bag struct {
	items []Diagnostic
}

// Add records a new diagnostic.
func (b *Bag) Add(kind Kind, pos source.Pos, format string, args ...any) {
	b.items = append(b.items, Diagnostic{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Errorf is shorthand for Add(Error, ...).
func (b *Bag) Errorf(pos source.Pos, format string, args ...any) {
	b.Add(Error, pos, format, args...)
}

// Warnf is shorthand for Add(Warning, ...).
func (b *Bag) Warnf(pos source.Pos, format string, args ...any) {
	b.Add(Warning, pos, format, args...)
}

// HasErrors reports whether code emission must be suppressed.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Kind == Error {
			return true
		}
	}
	return false
}

// Len returns the number of diagnostics recorded so far.
func (b *Bag) Len() int { return len(b.items) }

// Sorted returns diagnostics ordered by source coordinate, stable on ties so
// diagnostics determinism (two runs produce identical sequences) holds for
// diagnostics emitted at the same coordinate in the same analysis order.
func (b *Bag) Sorted() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pos.Line != out[j].Pos.Line {
			return out[i].Pos.Line < out[j].Pos.Line
		}
		return out[i].Pos.Column < out[j].Pos.Column
	})
	return out
}

// Print writes one line per diagnostic in the pinned "<line>: <kind>:
// <message>" format. When colorize is true (the CLI layer decides this via
// golang.org/x/term, never this package) severities are ANSI-colored; the
// pinned text itself is never altered.
func (b *Bag) Print(w io.Writer, colorize bool) {
	for _, d := range b.Sorted() {
		if colorize {
			fmt.Fprintf(w, "%d: %s: %s\n", d.Pos.Line, colorKind(d.Kind), d.Message)
		} else {
			fmt.Fprintf(w, "%d: %s: %s\n", d.Pos.Line, d.Kind, d.Message)
		}
	}
}

func colorKind(k Kind) string {
	const reset = "\x1b[0m"
	switch k {
	case Error:
		return "\x1b[31m" + k.String() + reset
	case Warning:
		return "\x1b[33m" + k.String() + reset
	default:
		return "\x1b[36m" + k.String() + reset
	}
}
