package resolver

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed store for serialized chunks, keyed by chunk name
// with a sha256 content hash alongside. It implements
// runtime.ResourceFinder, so placing it ahead of a PathFinder in a
// MultiFinder makes precompiled chunks resolve before source files.
type Cache struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenCache opens the chunk cache at path, creating the database and its
// parent directory as needed.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." && dir != string(filepath.Separator) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		name TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		data BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Put stores (or replaces) a serialized chunk under name.
func (c *Cache) Put(name string, data []byte) error {
	sum := sha256.Sum256(data)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(
		`INSERT INTO chunks (name, hash, data) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET hash = excluded.hash, data = excluded.data`,
		name, hex.EncodeToString(sum[:]), data)
	if err != nil {
		return fmt.Errorf("storing chunk %s: %w", name, err)
	}
	return nil
}

// FindResource implements runtime.ResourceFinder over the cache contents.
func (c *Cache) FindResource(name string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var data []byte
	err := c.db.QueryRow("SELECT data FROM chunks WHERE name = ?", name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("resolver: %s: %w", name, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("resolver: %s: %w", name, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Hash returns the stored content hash for name, in hex.
func (c *Cache) Hash(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var hash string
	err := c.db.QueryRow("SELECT hash FROM chunks WHERE name = ?", name).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("resolver: %s: %w", name, fs.ErrNotExist)
	}
	if err != nil {
		return "", fmt.Errorf("resolver: %s: %w", name, err)
	}
	return hash, nil
}

// Names lists the cached chunk names in sorted order.
func (c *Cache) Names() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, err := c.db.Query("SELECT name FROM chunks ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("listing chunks: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a cached chunk. Deleting an absent name is not an error.
func (c *Cache) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.Exec("DELETE FROM chunks WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting chunk %s: %w", name, err)
	}
	return nil
}
