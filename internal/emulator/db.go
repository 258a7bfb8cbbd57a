// Package emulator is a local stand-in for the remote movie store. It serves
// the same JSON-over-HTTP resources (the movie collection and the movie
// counter) from a SQLite file so the client can be developed and tested
// without a hosted database.
//
// Only this package may open or query the emulator database. The HTTP
// [Server] receives a [*DB] and calls its methods.
package emulator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS movies (
    seq  INTEGER PRIMARY KEY AUTOINCREMENT,
    key  TEXT    NOT NULL UNIQUE,
    body TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS scalars (
    path TEXT PRIMARY KEY,
    body TEXT NOT NULL
);
`

// counterPath is the scalars row holding the movie counter.
const counterPath = "moviesCount"

// Entry is one stored movie: its generated key and its JSON body exactly as
// it was posted.
type Entry struct {
	Key  string
	Body json.RawMessage
}

// DB is the SQLite-backed emulator storage.
type DB struct {
	db *sql.DB
}

// DefaultDBPath returns ~/.local/share/moviesync/emulator.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "moviesync", "emulator.db"), nil
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating emulator directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close releases the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// ListMovies returns every movie in insertion order.
func (d *DB) ListMovies(ctx context.Context) ([]Entry, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT key, body FROM movies ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying movies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var body string
		if err := rows.Scan(&e.Key, &body); err != nil {
			return nil, fmt.Errorf("scanning movie row: %w", err)
		}
		e.Body = json.RawMessage(body)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// InsertMovie stores body under a newly generated, time-ordered key and
// returns the key.
func (d *DB) InsertMovie(ctx context.Context, body json.RawMessage) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	key := id.String()

	if _, err := d.db.ExecContext(ctx, `INSERT INTO movies (key, body) VALUES (?, ?)`, key, string(body)); err != nil {
		return "", fmt.Errorf("inserting movie: %w", err)
	}
	return key, nil
}

// DeleteMovie removes the movie stored under key. Deleting an unknown key is
// not an error.
func (d *DB) DeleteMovie(ctx context.Context, key string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM movies WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting movie %s: %w", key, err)
	}
	return nil
}

// DeleteAllMovies empties the collection.
func (d *DB) DeleteAllMovies(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM movies`); err != nil {
		return fmt.Errorf("deleting all movies: %w", err)
	}
	return nil
}

// Counter returns the stored counter value, or (nil, nil) when none was ever
// written.
func (d *DB) Counter(ctx context.Context) (json.RawMessage, error) {
	var body string
	err := d.db.QueryRowContext(ctx, `SELECT body FROM scalars WHERE path = ?`, counterPath).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading counter: %w", err)
	}
	return json.RawMessage(body), nil
}

// PutCounter overwrites the counter with body.
func (d *DB) PutCounter(ctx context.Context, body json.RawMessage) error {
	const q = `
		INSERT INTO scalars (path, body) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET body = excluded.body`
	if _, err := d.db.ExecContext(ctx, q, counterPath, string(body)); err != nil {
		return fmt.Errorf("writing counter: %w", err)
	}
	return nil
}
