package runcmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mna/mainer"

	"github.com/ffwff/hana-sub000/lang/builtin"
	"github.com/ffwff/hana-sub000/lang/compiler"
	"github.com/ffwff/hana-sub000/lang/token"
	"github.com/ffwff/hana-sub000/lang/vm"

	"github.com/ffwff/hana-sub000/internal/config"
)

// Run implements the "run" subcommand: compile a single entry file (plus
// whatever it USEs transitively) and execute it, printing the top-of-stack
// result at HALT to stdout and any runtime error to stderr, per spec.md §6's
// "run" command contract.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(stdio.Stderr, "run: exactly one file must be provided")
		return fmt.Errorf("run: exactly one file must be provided")
	}
	return RunFile(ctx, stdio, args[0])
}

// RunFile is the reusable entry point behind the "run" subcommand, split out
// so tests can drive it directly without going through mainer's argv/flag
// plumbing.
func RunFile(ctx context.Context, stdio mainer.Stdio, path string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "run: %s\n", err)
		return err
	}

	fset := token.NewFileSet()
	loader := FileLoader{}
	block, fileID, err := loader.Load(fset, path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "run: %s\n", err)
		return err
	}

	comp := compiler.New(fset, fileID)
	if err := comp.EmitTopLevel(block); err != nil {
		fmt.Fprintf(stdio.Stderr, "run: compile: %s\n", err)
		return err
	}

	if cfg.DebugDisasm {
		prog := &compiler.Program{Code: comp.Code(), SourceMap: comp.SourceMap(), FileSet: comp.FileSet()}
		fmt.Fprintln(stdio.Stderr, compiler.Dasm(prog))
	}

	m := vm.New(comp)
	m.Stdout, m.Stderr, m.Stdin = stdio.Stdout, stdio.Stderr, stdio.Stdin
	m.Loader = loader
	m.HanaPath = cfg.HanaPath
	m.BaseDir = filepath.Dir(path)
	m.CurrentFile = path
	if cfg.MaxSteps > 0 {
		m.MaxSteps = cfg.MaxSteps
	}
	if cfg.MaxCallDepth > 0 {
		m.MaxCallStackDepth = cfg.MaxCallDepth
	}
	builtin.RegisterAll(m)

	result, err := m.Run(ctx)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "run: %s\n", err)
		return err
	}
	fmt.Fprintln(stdio.Stdout, result.String())
	return nil
}
