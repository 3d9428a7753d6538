// Package manifest handles falcon.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a falcon.toml runtime configuration.
type Manifest struct {
	Engine Engine `toml:"engine"`
	Cache  Cache  `toml:"cache"`
	Log    Log    `toml:"log"`

	// Dir is the directory containing the falcon.toml file (set at load time).
	Dir string `toml:"-"`
}

// Engine configures the evaluator.
type Engine struct {
	// OpLimit overrides the dispatch ceiling. Zero keeps the default.
	OpLimit uint64 `toml:"op-limit"`
	// Trace logs every dispatched instruction at debug level.
	Trace bool `toml:"trace"`
}

// Cache configures the compiled-code cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Log configures logging output.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Load parses a falcon.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "falcon.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	m.Dir = dir
	return &m, nil
}

// LoadOrDefault loads falcon.toml when present, otherwise returns defaults.
func LoadOrDefault(dir string) (*Manifest, error) {
	if _, err := os.Stat(filepath.Join(dir, "falcon.toml")); os.IsNotExist(err) {
		return &Manifest{Dir: dir}, nil
	}
	return Load(dir)
}

// CachePath resolves the cache database location relative to the manifest
// directory, with a default when unset.
func (m *Manifest) CachePath() string {
	p := m.Cache.Path
	if p == "" {
		p = "falcon-cache.db"
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.Dir, p)
	}
	return p
}
