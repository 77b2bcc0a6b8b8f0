package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/1ay1/neowall-sub002/internal/model"

	_ "modernc.org/sqlite"
)

const createWallpapersTable = `
CREATE TABLE IF NOT EXISTS wallpapers (
    id      TEXT PRIMARY KEY,
    output  TEXT NOT NULL,
    path    TEXT NOT NULL,
    set_at  DATETIME NOT NULL
)`

const createWallpapersIndex = `
CREATE INDEX IF NOT EXISTS wallpapers_output_set_at
    ON wallpapers (output, set_at DESC)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createWallpapersTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create wallpapers table: %w", err)
	}

	if _, err := db.Exec(createWallpapersIndex); err != nil {
		db.Close()
		return nil, fmt.Errorf("create wallpapers index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveWallpaper appends a history row for the output.
func (s *SQLiteStore) SaveWallpaper(ctx context.Context, rec *model.WallpaperRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wallpapers (id, output, path, set_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Output, rec.Path, rec.SetAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallpaper: %w", err)
	}
	return nil
}

// CurrentWallpaper returns the most recent record for one output.
func (s *SQLiteStore) CurrentWallpaper(ctx context.Context, output string) (*model.WallpaperRecord, error) {
	rec := &model.WallpaperRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, output, path, set_at FROM wallpapers
		WHERE output = ? ORDER BY set_at DESC, id DESC LIMIT 1`, output,
	).Scan(&rec.ID, &rec.Output, &rec.Path, &rec.SetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallpaper: %w", err)
	}
	return rec, nil
}

// CurrentWallpapers returns the most recent record for every output.
func (s *SQLiteStore) CurrentWallpapers(ctx context.Context) ([]*model.WallpaperRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, output, path, set_at FROM wallpapers w
		WHERE id = (
			SELECT id FROM wallpapers
			WHERE output = w.output ORDER BY set_at DESC, id DESC LIMIT 1
		)
		ORDER BY output`)
	if err != nil {
		return nil, fmt.Errorf("list wallpapers: %w", err)
	}
	defer rows.Close()

	var recs []*model.WallpaperRecord
	for rows.Next() {
		rec := &model.WallpaperRecord{}
		if err := rows.Scan(&rec.ID, &rec.Output, &rec.Path, &rec.SetAt); err != nil {
			return nil, fmt.Errorf("scan wallpaper: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallpapers: %w", err)
	}
	return recs, nil
}

// History returns up to limit records for an output, newest first.
func (s *SQLiteStore) History(ctx context.Context, output string, limit int) ([]*model.WallpaperRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, output, path, set_at FROM wallpapers
		WHERE output = ? ORDER BY set_at DESC, id DESC LIMIT ?`, output, limit)
	if err != nil {
		return nil, fmt.Errorf("wallpaper history: %w", err)
	}
	defer rows.Close()

	var recs []*model.WallpaperRecord
	for rows.Next() {
		rec := &model.WallpaperRecord{}
		if err := rows.Scan(&rec.ID, &rec.Output, &rec.Path, &rec.SetAt); err != nil {
			return nil, fmt.Errorf("scan wallpaper: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return recs, nil
}

// PruneHistory deletes all but the newest keepPerOutput rows per output and
// returns the number of rows removed.
func (s *SQLiteStore) PruneHistory(ctx context.Context, keepPerOutput int) (int64, error) {
	if keepPerOutput < 1 {
		keepPerOutput = 1
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM wallpapers WHERE id NOT IN (
			SELECT id FROM wallpapers w2
			WHERE w2.output = wallpapers.output
			ORDER BY w2.set_at DESC, w2.id DESC LIMIT ?
		)`, keepPerOutput)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return n, nil
}
