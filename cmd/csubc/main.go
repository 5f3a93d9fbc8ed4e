// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gorse-io/csubc/internal/ast"
	"github.com/gorse-io/csubc/internal/codegen"
	"github.com/gorse-io/csubc/internal/diag"
	"github.com/gorse-io/csubc/internal/ir"
	"github.com/gorse-io/csubc/internal/lexer"
	"github.com/gorse-io/csubc/internal/parser"
	"github.com/gorse-io/csubc/internal/sem"
	"github.com/gorse-io/csubc/internal/source"
	"github.com/gorse-io/csubc/internal/symtab"
	"github.com/gorse-io/csubc/internal/types"
)

// CompileUnit carries one invocation's inputs through the pipeline: source
// read and #include expansion, lexing, parsing, semantic analysis and IL
// lowering, GAS emission, and (unless -S was given) the subprocess handoff
// to a system assembler/linker driver.
type CompileUnit struct {
	Source      string
	OutputPath  string
	IncludeDirs []string
	AssemblyOnly bool
	CompileOnly  bool
	DumpAST      bool
	DumpIR       bool
	Linker       string

	Assembly string
	diags    *diag.Bag
}

// NewCompileUnit derives the intermediate and output paths from source and
// the flags gathered by the CLI layer.
func NewCompileUnit(source, output string, includeDirs []string, assemblyOnly, compileOnly, dumpAST, dumpIR bool, linker string) (CompileUnit, error) {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	if output == "" {
		switch {
		case assemblyOnly:
			output = base + ".s"
		case compileOnly:
			output = base + ".o"
		default:
			output = "a.out"
		}
	}
	return CompileUnit{
		Source:       source,
		OutputPath:   output,
		IncludeDirs:  includeDirs,
		AssemblyOnly: assemblyOnly,
		CompileOnly:  compileOnly,
		DumpAST:      dumpAST,
		DumpIR:       dumpIR,
		Linker:       linker,
		Assembly:     base + ".s",
		diags:        &diag.Bag{},
	}, nil
}

// Translate runs the front end and code generator in process, then drives
// the external assembler/linker unless -S was requested.
func (u *CompileUnit) Translate() error {
	buf, err := source.Load(u.Source, u.IncludeDirs)
	if err != nil {
		return err
	}

	toks := lexer.Lex(buf.Filename, buf.Text, u.diags)
	syms := symtab.New()
	interp := types.NewInterner()
	tu := parser.Parse(toks, u.diags, syms, interp)

	if u.diags.HasErrors() {
		return u.printDiagnostics()
	}

	if u.DumpAST {
		fmt.Print(ast.Dump(tu))
		return u.printDiagnostics()
	}

	analyzer := sem.New(u.diags, syms, interp)
	prog := analyzer.Analyze(tu)
	if u.diags.HasErrors() || prog == nil {
		return u.printDiagnostics()
	}

	if u.DumpIR {
		fmt.Print(ir.Dump(prog))
		return u.printDiagnostics()
	}
	if err := u.printDiagnostics(); err != nil {
		return err
	}

	asmText := codegen.CompileProgram(prog)
	if err := os.WriteFile(u.Assembly, []byte(asmText), 0644); err != nil {
		return err
	}
	if u.AssemblyOnly {
		if u.Assembly != u.OutputPath {
			return os.Rename(u.Assembly, u.OutputPath)
		}
		return nil
	}
	return u.link()
}

// printDiagnostics flushes the accumulated diagnostics, colorized only when
// standard error is an interactive terminal. Returns a plain error (no
// diagnostic-line prefix) when compilation must stop because of them.
func (u *CompileUnit) printDiagnostics() error {
	colorize := term.IsTerminal(int(os.Stderr.Fd()))
	u.diags.Print(os.Stderr, colorize)
	if u.diags.HasErrors() {
		return fmt.Errorf("compilation failed with %d diagnostic(s)", u.diags.Len())
	}
	return nil
}

// link shells out to the configured linker driver, mirroring the teacher's
// clang-through-exec.Command idiom. Errors reported here are environment
// failures, not diagnosed C-language errors, so they carry no diagnostic
// prefix.
func (u *CompileUnit) link() error {
	if u.Linker == "as+ld" {
		obj := strings.TrimSuffix(u.Assembly, ".s") + ".o"
		if _, err := runCommand("as", "-o", obj, u.Assembly); err != nil {
			return err
		}
		if u.CompileOnly {
			return os.Rename(obj, u.OutputPath)
		}
		_, err := runCommand("ld", "-o", u.OutputPath, obj)
		return err
	}
	if u.CompileOnly {
		obj := strings.TrimSuffix(u.Assembly, ".s") + ".o"
		_, err := runCommand("cc", "-c", "-o", obj, u.Assembly)
		if err == nil && obj != u.OutputPath {
			err = os.Rename(obj, u.OutputPath)
		}
		return err
	}
	_, err := runCommand("cc", "-static", "-nostartfiles", "-o", u.OutputPath, u.Assembly)
	return err
}

// runCommand runs a command and extracts its output, logging the argv when
// verbose is set.
func runCommand(name string, arg ...string) (string, error) {
	if verbose {
		fmt.Fprintf(os.Stderr, "Running %v\n", append([]string{name}, arg...))
	}
	cmd := exec.Command(name, arg...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if output != nil {
			return "", errors.New(string(output))
		}
		return "", err
	}
	return string(output), nil
}

var verbose bool

var command = &cobra.Command{
	Use:  "csubc source.c [-o output]",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.PersistentFlags().GetString("output")
		assemblyOnly, _ := cmd.PersistentFlags().GetBool("assembly-only")
		compileOnly, _ := cmd.PersistentFlags().GetBool("compile-only")
		dumpAST, _ := cmd.PersistentFlags().GetBool("dump-ast")
		dumpIR, _ := cmd.PersistentFlags().GetBool("dump-ir")
		linker, _ := cmd.PersistentFlags().GetString("linker")
		includeDirs, _ := cmd.PersistentFlags().GetStringSlice("include-path")
		includeDirs = append(includeDirs, "include")

		unit, err := NewCompileUnit(args[0], output, includeDirs, assemblyOnly, compileOnly, dumpAST, dumpIR, linker)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := unit.Translate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	command.PersistentFlags().StringP("output", "o", "", "output file path")
	command.PersistentFlags().BoolP("assembly-only", "S", false, "stop after emitting assembly")
	command.PersistentFlags().BoolP("compile-only", "c", false, "assemble but do not link")
	command.PersistentFlags().Bool("dump-ast", false, "print the parsed AST and exit")
	command.PersistentFlags().Bool("dump-ir", false, "print the lowered IL and exit")
	command.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "if set, increase verbosity level")
	command.PersistentFlags().String("linker", "cc", "assembler/linker driver: cc or as+ld")
	command.PersistentFlags().StringSliceP("include-path", "I", nil, "additional #include search directory")
}

func main() {
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
