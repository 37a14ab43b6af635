// Package index maps bare KiCad file names to their full paths under a
// projects folder.
package index

import (
	"io/fs"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kicad-gtm/kicad-gtm/internal/kicad"
)

// Index resolves a file name like "board.kicad_pcb" to its absolute path.
// It is rebuilt from scratch whenever the watched root changes.
type Index struct {
	root   string
	paths  map[string]string
	logger zerolog.Logger
}

// New returns an empty index.
func New(logger zerolog.Logger) *Index {
	return &Index{
		paths:  make(map[string]string),
		logger: logger.With().Str("component", "index").Logger(),
	}
}

// ResolveRoot makes root absolute and follows symlinks in it. WalkDir does
// not descend into a root that is itself a symlink.
func ResolveRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve projects folder %s", root)
	}
	resolved, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve projects folder %s", root)
	}
	return resolved, nil
}

// Rebuild replaces the index with every tracked file found under root.
//
// If two files share a name the index is left empty: picking one of them
// would attribute time to the wrong file. That is reported as a warning,
// not an error.
func (ix *Index) Rebuild(root string) error {
	absRoot, err := ResolveRoot(root)
	if err != nil {
		ix.root = ""
		ix.paths = make(map[string]string)
		return err
	}

	ix.root = absRoot
	ix.paths = make(map[string]string)

	errDuplicate := errors.New("duplicate file name")
	var duplicate string

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if !kicad.IsTracked(name) {
			return nil
		}
		if existing, ok := ix.paths[name]; ok && existing != path {
			duplicate = name
			return errDuplicate
		}
		ix.paths[name] = path
		return nil
	})

	if errors.Is(err, errDuplicate) {
		ix.paths = make(map[string]string)
		ix.logger.Warn().
			Str("root", absRoot).
			Str("filename", duplicate).
			Msgf("found multiple files named %s in the projects folder, select a folder that only contains one", duplicate)
		return nil
	}
	if err != nil {
		ix.paths = make(map[string]string)
		return errors.Wrapf(err, "failed to index %s", absRoot)
	}

	ix.logger.Debug().Str("root", absRoot).Int("files", len(ix.paths)).Msg("index rebuilt")
	return nil
}

// Lookup returns the full path of filename.
func (ix *Index) Lookup(filename string) (string, bool) {
	path, ok := ix.paths[filename]
	return path, ok
}

// Len returns the number of indexed files.
func (ix *Index) Len() int {
	return len(ix.paths)
}

// Root returns the folder the index was last built from.
func (ix *Index) Root() string {
	return ix.root
}

// Reset empties the index.
func (ix *Index) Reset() {
	ix.root = ""
	ix.paths = make(map[string]string)
}
