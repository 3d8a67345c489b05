// Package manifest handles fen.toml environment configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/fenlang/fen/resolver"
	"github.com/fenlang/fen/runtime"
)

// Manifest represents a fen.toml environment configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Load    Load    `toml:"load"`

	// Dir is the directory containing the fen.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Load configures the chunk loading layer.
type Load struct {
	// Mode is the load mode descriptor: "b", "t" or "bt". Defaults to "bt".
	Mode string `toml:"mode"`

	// Path lists directories searched for chunks, relative to Dir unless
	// absolute. Defaults to the manifest directory itself.
	Path []string `toml:"path"`

	// Cache is the compiled-chunk cache database, relative to Dir unless
	// absolute. Empty disables the cache.
	Cache string `toml:"cache"`
}

// LoadDir parses fen.toml from the given directory.
func LoadDir(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "fen.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	m.Dir = dir
	return m, nil
}

// Parse parses manifest bytes and fills defaults.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Load.Mode == "" {
		m.Load.Mode = "bt"
	}
	if len(m.Load.Path) == 0 {
		m.Load.Path = []string{"."}
	}
	return &m, nil
}

// Mode returns the configured load mode, parsed.
func (m *Manifest) Mode() (runtime.Mode, error) {
	return runtime.ParseMode(m.Load.Mode)
}

// abs resolves a manifest-relative path.
func (m *Manifest) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// CachePath returns the absolute cache database path, or "" when the cache
// is disabled.
func (m *Manifest) CachePath() string {
	if m.Load.Cache == "" {
		return ""
	}
	return m.abs(m.Load.Cache)
}

// Finder materializes the configured resolver chain: the chunk cache first
// (when configured), then the search path. When a cache is opened it is also
// returned so the caller can close it.
func (m *Manifest) Finder() (runtime.ResourceFinder, *resolver.Cache, error) {
	dirs := make([]string, 0, len(m.Load.Path))
	for _, p := range m.Load.Path {
		dirs = append(dirs, m.abs(p))
	}
	path := resolver.PathFinder{Dirs: dirs}

	if m.Load.Cache == "" {
		return path, nil, nil
	}
	cache, err := resolver.OpenCache(m.CachePath())
	if err != nil {
		return nil, nil, err
	}
	return resolver.MultiFinder{Finders: []runtime.ResourceFinder{cache, path}}, cache, nil
}
