package vm

import (
	"path/filepath"
	"strings"

	"github.com/ffwff/hana-sub000/lang/ast"
	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/opcode"
	"github.com/ffwff/hana-sub000/lang/token"
)

// defaultModuleExt is appended to a USEd path that carries no extension of
// its own, spec.md §4.2's "append a default extension if none present".
const defaultModuleExt = ".hana"

// ModuleLoader resolves an already-located module path to its parsed source,
// the seam between the VM's path-search algorithm and wherever source text
// actually lives (the filesystem for the CLI, an in-memory map for tests).
// There is no parser in this module (spec.md's grammar frontend is out of
// scope), so a ModuleLoader is also responsible for turning source text into
// an *ast.Block; lang/builtin and test code can implement one directly from
// hand-built trees without ever touching source text at all.
type ModuleLoader interface {
	Load(fset *token.FileSet, path string) (*ast.Block, token.FileID, error)
}

// doUse implements the USE opcode: resolve path relative to the file that
// contains this USE statement (or search HanaPath / BaseDir for a bare
// name), load it, compile its block directly onto the end of the live
// compiler's buffer, and splice control into it with a synthetic JMP_LONG
// back to the statement following this one — the same "one ever-growing
// compiler, no rebasing, no byte-splicing" strategy original_source's
// load_module uses.
func (vm *VM) doUse(path string) error {
	if vm.Loader == nil {
		return errs.New(errs.CorruptOpcode, vm.ip, "use %q: no module loader configured", path)
	}

	resolved, err := vm.resolvePath(path)
	if err != nil {
		return err
	}

	block, fileID, err := vm.Loader.Load(vm.comp.FileSet(), resolved)
	if err != nil {
		return errs.New(errs.CorruptOpcode, vm.ip, "use %q: %s", path, err)
	}

	// The USE instruction's own operand has already been consumed, so vm.ip
	// is exactly the address execution must return to once the module's
	// top-level statements have run.
	returnTo := vm.ip

	savedFile := vm.CurrentFile
	vm.CurrentFile = resolved
	entryIP, err := vm.comp.EmitModule(fileID, block)
	vm.CurrentFile = savedFile
	if err != nil {
		return err
	}

	vm.comp.EmitImm(opcode.JMP_LONG, returnTo)
	vm.ip = entryIP
	return nil
}

// resolvePath implements spec.md §4.2/§6's search order: "./x"/"../x" is
// relative to the file containing the USE statement, "/x" is absolute,
// anything else is searched for across HanaPath's colon-separated
// directories and finally BaseDir, each candidate gaining defaultModuleExt
// if it names no extension of its own.
func (vm *VM) resolvePath(path string) (string, error) {
	withExt := path
	if filepath.Ext(withExt) == "" {
		withExt += defaultModuleExt
	}

	switch {
	case strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../"):
		dir := filepath.Dir(vm.CurrentFile)
		return filepath.Join(dir, withExt), nil

	case strings.HasPrefix(path, "/"):
		return withExt, nil

	default:
		for _, dir := range vm.HanaPath {
			if dir == "" {
				continue
			}
			candidate := filepath.Join(dir, withExt)
			if vm.pathExists(candidate) {
				return candidate, nil
			}
		}
		if vm.BaseDir != "" {
			return filepath.Join(vm.BaseDir, withExt), nil
		}
		return withExt, nil
	}
}

// pathExists delegates existence checks to the loader when it offers one
// (e.g. the filesystem loader), so a bare-name search through HanaPath picks
// the first directory that actually has the file; loaders with no
// meaningful notion of existence (e.g. an in-memory test loader) report
// every candidate as absent and fall through to the last default.
func (vm *VM) pathExists(path string) bool {
	type existor interface{ Exists(path string) bool }
	if e, ok := vm.Loader.(existor); ok {
		return e.Exists(path)
	}
	return false
}
