package runcmd

import (
	"os"

	"github.com/ffwff/hana-sub000/lang/ast"
	"github.com/ffwff/hana-sub000/lang/astjson"
	"github.com/ffwff/hana-sub000/lang/token"
)

// FileLoader implements lang/vm.ModuleLoader by reading a JSON-encoded
// lang/ast tree (see lang/astjson) off the filesystem, the concrete stand-in
// this module supplies for the grammar frontend spec.md puts out of scope.
type FileLoader struct{}

func (FileLoader) Load(fset *token.FileSet, path string) (*ast.Block, token.FileID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	block, err := astjson.DecodeBlock(data)
	if err != nil {
		return nil, 0, err
	}
	return block, fset.AddFile(path), nil
}

// Exists reports whether path names a regular, readable file, used by
// lang/vm.VM.resolvePath to pick the first HanaPath directory that actually
// carries a bare-name USE target.
func (FileLoader) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
