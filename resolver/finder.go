// Package resolver provides resource finders for the Fen loading layer:
// filesystem lookup, ordered search paths, finder composition, and a
// SQLite-backed store for precompiled chunks.
//
// All finders follow the runtime.ResourceFinder contract: a miss reports an
// error satisfying errors.Is(err, fs.ErrNotExist), anything else is a real
// resolution failure.
package resolver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fenlang/fen/runtime"
)

// DirFinder resolves resource names relative to a single directory root.
type DirFinder struct {
	Root string
}

// FindResource implements runtime.ResourceFinder.
func (f DirFinder) FindResource(name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(f.Root, name))
	if err != nil {
		return nil, fmt.Errorf("resolver: %s: %w", name, err)
	}
	return file, nil
}

// PathFinder resolves names against an ordered list of directories. The
// first directory containing the name wins.
type PathFinder struct {
	Dirs []string
}

// FindResource implements runtime.ResourceFinder.
func (f PathFinder) FindResource(name string) (io.ReadCloser, error) {
	for _, dir := range f.Dirs {
		file, err := os.Open(filepath.Join(dir, name))
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("resolver: %s: %w", name, err)
		}
	}
	return nil, fmt.Errorf("resolver: %s: not in search path: %w", name, fs.ErrNotExist)
}

// MultiFinder composes finders. The first finder that resolves the name
// wins; only "not found" moves on to the next one.
type MultiFinder struct {
	Finders []runtime.ResourceFinder
}

// FindResource implements runtime.ResourceFinder.
func (f MultiFinder) FindResource(name string) (io.ReadCloser, error) {
	for _, finder := range f.Finders {
		src, err := finder.FindResource(name)
		if err == nil {
			return src, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("resolver: %s: %w", name, fs.ErrNotExist)
}
