// Package store keeps encoded images in a SQLite database keyed by the hex
// SHA-256 of their bytes. Tags give images stable human names.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("purplegarden.store")

var (
	// ErrNotFound indicates no image matches the reference.
	ErrNotFound = errors.New("store: image not found")
	// ErrAmbiguous indicates a hash prefix matches more than one image.
	ErrAmbiguous = errors.New("store: ambiguous hash prefix")
)

// minPrefix is the shortest hash prefix Resolve accepts.
const minPrefix = 4

const schema = `
CREATE TABLE IF NOT EXISTS images (
	hash       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tags (
	name TEXT PRIMARY KEY,
	hash TEXT NOT NULL REFERENCES images(hash)
);`

// Entry describes a stored image.
type Entry struct {
	Hash    string
	Size    int
	Created time.Time
	Tags    []string
}

// Store is a content-addressed image database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Hash returns the key under which data is stored.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Open opens or creates the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps PRAGMAs in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring database: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	log.Debugf("opened image store %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file the store was opened on.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores data and returns its hash. Storing the same bytes twice is a
// no-op.
func (s *Store) Put(data []byte) (string, error) {
	h := Hash(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO images (hash, data, created_at) VALUES (?, ?, ?)",
		h, data, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("saving image: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Infof("stored image %s (%d bytes)", h[:12], len(data))
	}
	return h, nil
}

// Get returns the bytes stored under the full hash.
func (s *Store) Get(hash string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow("SELECT data FROM images WHERE hash = ?", hash).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}
	return data, nil
}

// Has reports whether an image is stored under the full hash.
func (s *Store) Has(hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM images WHERE hash = ?", hash).Scan(&n); err != nil {
		return false, fmt.Errorf("querying image: %w", err)
	}
	return n > 0, nil
}

// Delete removes the image and its tags.
func (s *Store) Delete(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM tags WHERE hash = ?", hash); err != nil {
		return fmt.Errorf("deleting tags: %w", err)
	}
	res, err := s.db.Exec("DELETE FROM images WHERE hash = ?", hash)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return nil
}

// Tag points name at the stored image hash, replacing an earlier target.
func (s *Store) Tag(name, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM images WHERE hash = ?", hash).Scan(&n); err != nil {
		return fmt.Errorf("querying image: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if _, err := s.db.Exec("INSERT OR REPLACE INTO tags (name, hash) VALUES (?, ?)", name, hash); err != nil {
		return fmt.Errorf("tagging image: %w", err)
	}
	return nil
}

// Resolve maps a reference to a full hash. A reference is a tag name, a full
// hash, or a unique hash prefix of at least four characters.
func (s *Store) Resolve(ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var h string
	err := s.db.QueryRow("SELECT hash FROM tags WHERE name = ?", ref).Scan(&h)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("querying tag: %w", err)
	}

	if len(ref) < minPrefix || strings.Trim(strings.ToLower(ref), "0123456789abcdef") != "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	rows, err := s.db.Query("SELECT hash FROM images WHERE hash LIKE ? LIMIT 2", strings.ToLower(ref)+"%")
	if err != nil {
		return "", fmt.Errorf("querying images: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		if err := rows.Scan(&h); err != nil {
			return "", fmt.Errorf("scanning image: %w", err)
		}
		matches = append(matches, h)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("querying images: %w", err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguous, ref)
}

// Load resolves ref and returns the stored bytes with their hash.
func (s *Store) Load(ref string) ([]byte, string, error) {
	h, err := s.Resolve(ref)
	if err != nil {
		return nil, "", err
	}
	data, err := s.Get(h)
	if err != nil {
		return nil, "", err
	}
	return data, h, nil
}

// List returns every stored image, newest first.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT i.hash, length(i.data), i.created_at, COALESCE(group_concat(t.name, ','), '')
		FROM images i LEFT JOIN tags t ON t.hash = i.hash
		GROUP BY i.hash
		ORDER BY i.created_at DESC, i.hash`)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			created int64
			tags    string
		)
		if err := rows.Scan(&e.Hash, &e.Size, &created, &tags); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		e.Created = time.Unix(created, 0)
		if tags != "" {
			e.Tags = strings.Split(tags, ",")
			sort.Strings(e.Tags)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
