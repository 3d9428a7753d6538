package vm

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ---------------------------------------------------------------------------
// CodeCache: persisted compiled artifacts
// ---------------------------------------------------------------------------

// CodeCache stores compiled register code in a SQLite database so later
// runs can skip compilation. Artifacts are stored by function name with a
// content hash checked on the way back out.
type CodeCache struct {
	db *sql.DB
}

// OpenCodeCache opens (creating if needed) a cache database at path.
func OpenCodeCache(path string) (*CodeCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening code cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS regcode (
		name TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		artifact BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating regcode table: %w", err)
	}
	return &CodeCache{db: db}, nil
}

// Close releases the underlying database.
func (c *CodeCache) Close() error { return c.db.Close() }

// Put stores a compiled artifact under name, replacing any prior entry.
func (c *CodeCache) Put(name string, code *RegisterCode) error {
	blob, err := MarshalCode(code)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(blob)
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO regcode (name, hash, artifact) VALUES (?, ?, ?)",
		name, hex.EncodeToString(sum[:]), blob)
	if err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}
	return nil
}

// Get loads the artifact stored under name, or (nil, nil) when absent.
// A corrupt entry is reported as an error, never returned as code.
func (c *CodeCache) Get(name string) (*RegisterCode, error) {
	var hash string
	var blob []byte
	err := c.db.QueryRow(
		"SELECT hash, artifact FROM regcode WHERE name = ?", name).Scan(&hash, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	sum := sha256.Sum256(blob)
	if hex.EncodeToString(sum[:]) != hash {
		return nil, fmt.Errorf("loading %s: artifact hash mismatch", name)
	}
	return UnmarshalCode(blob)
}
