// Package source holds translation-unit text with #include lines expanded,
// and the line/column coordinate type used by diagnostics.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Pos is a source coordinate. Line and Column are 1-based.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d", p.Line)
}

// Buffer owns one translation unit's text after trivial #include
// resolution has spliced header contents in place of directive lines.
type Buffer struct {
	Filename string
	Text     []byte
}

// New wraps raw bytes read from Filename.
func New(filename string, text []byte) *Buffer {
	return &Buffer{Filename: filename, Text: text}
}

// Load reads path and splices in the contents of every `#include "..."` or
// `#include <...>` line it finds, recursively, producing the single text
// image the lexer consumes. Quoted includes resolve relative to the
// including file's directory first, then includeDirs; angle-bracket
// includes resolve against includeDirs only. No other preprocessor
// directive is recognized, matching the "trivial inclusion only" scope.
func Load(path string, includeDirs []string) (*Buffer, error) {
	text, err := expandIncludes(path, includeDirs, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return New(path, []byte(text)), nil
}

func expandIncludes(path string, includeDirs []string, seen map[string]bool) (string, error) {
	if seen[path] {
		return "", nil
	}
	seen[path] = true
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	lines := strings.Split(string(raw), "\n")
	var out strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#include") {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		rest := strings.TrimSpace(trimmed[len("#include"):])
		resolved, quoted, ok := parseIncludeOperand(rest)
		if !ok {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		found := resolveInclude(resolved, dir, quoted, includeDirs)
		if found == "" {
			return "", fmt.Errorf("%s: cannot find include file %q", path, resolved)
		}
		body, err := expandIncludes(found, includeDirs, seen)
		if err != nil {
			return "", err
		}
		out.WriteString(body)
		out.WriteByte('\n')
	}
	return out.String(), nil
}

func parseIncludeOperand(rest string) (name string, quoted bool, ok bool) {
	if len(rest) >= 2 && rest[0] == '"' {
		if end := strings.IndexByte(rest[1:], '"'); end >= 0 {
			return rest[1 : end+1], true, true
		}
	}
	if len(rest) >= 2 && rest[0] == '<' {
		if end := strings.IndexByte(rest, '>'); end > 0 {
			return rest[1:end], false, true
		}
	}
	return "", false, false
}

func resolveInclude(name, quoteDir string, quoted bool, includeDirs []string) string {
	if quoted {
		candidate := filepath.Join(quoteDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	for _, dir := range includeDirs {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
