package token

import "sync"

// FileSet tracks the names of all source files that have contributed code to
// a compiled program, indexed by FileID. Loading a module (USE) appends a new
// entry; the entry file is added by whoever compiles it (e.g. the run
// command's FileLoader).
type FileSet struct {
	mu    sync.Mutex
	names []string
}

// NewFileSet returns an empty FileSet.
func NewFileSet() *FileSet { return &FileSet{} }

// AddFile registers name and returns the FileID assigned to it. Names are not
// deduplicated here; callers that care about "already loaded" semantics (the
// compiler's module loader) track that separately by literal path text.
func (fs *FileSet) AddFile(name string) FileID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.names = append(fs.names, name)
	return FileID(len(fs.names) - 1)
}

// Name returns the filename registered for id, or "<unknown>" if id is out of
// range.
func (fs *FileSet) Name(id FileID) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if int(id) < 0 || int(id) >= len(fs.names) {
		return "<unknown>"
	}
	return fs.names[id]
}
