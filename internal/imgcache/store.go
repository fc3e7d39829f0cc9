package imgcache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS images (
	path     TEXT PRIMARY KEY,
	width    INTEGER NOT NULL,
	height   INTEGER NOT NULL,
	format   TEXT NOT NULL,
	mod_time INTEGER NOT NULL,
	rank     INTEGER NOT NULL
)`

func open(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create image cache schema: %w", err)
	}
	return db, nil
}

// Load reads entries saved by Save into the cache. A missing database
// file leaves the cache empty. Entries keep their recency order.
func (c *Cache) Load(ctx context.Context, path string) (int, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, nil
	}
	db, err := open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()

	// Highest rank is least recently used; add those first so the most
	// recent entries survive if the database holds more than fits.
	rows, err := db.QueryContext(ctx,
		`SELECT path, width, height, format, mod_time FROM images ORDER BY rank DESC`)
	if err != nil {
		return 0, fmt.Errorf("failed to query image cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	n := 0
	for rows.Next() {
		var (
			e       Entry
			modTime int64
		)
		if err := rows.Scan(&e.Path, &e.Width, &e.Height, &e.Format, &modTime); err != nil {
			return n, fmt.Errorf("failed to read image cache row: %w", err)
		}
		e.ModTime = time.Unix(0, modTime)
		c.Add(e)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("failed to read image cache: %w", err)
	}

	c.logger.Debug("image cache loaded", "path", path, "entries", c.Len())
	return n, nil
}

// Save replaces the database contents with the current cache entries.
func (c *Cache) Save(ctx context.Context, path string) error {
	db, err := open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	entries := c.Entries()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin image cache save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM images"); err != nil {
		return fmt.Errorf("failed to clear image cache: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO images (path, width, height, format, mod_time, rank) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare image cache insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	// Entries are oldest first; rank 0 is the most recently used.
	for i, e := range entries {
		rank := len(entries) - 1 - i
		if _, err := stmt.ExecContext(ctx, e.Path, e.Width, e.Height, e.Format, e.ModTime.UnixNano(), rank); err != nil {
			return fmt.Errorf("failed to save image %s: %w", e.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit image cache: %w", err)
	}

	c.logger.Debug("image cache saved", "path", path, "entries", len(entries))
	return nil
}
