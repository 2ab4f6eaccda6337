package seen

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a durable Set. It can share a database file with the SQLite
// scheduler, so a resumed crawl remembers which pages it already visited.
type SQLite struct {
	db *sql.DB
}

type SQLiteOptions struct {
	Path string // database file, default ./data/frontier.db
}

func NewSQLite(opts SQLiteOptions) (*SQLite, error) {
	if opts.Path == "" {
		opts.Path = "./data/frontier.db"
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", opts.Path+"?_journal_mode=WAL&_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS seen_urls (
		url TEXT PRIMARY KEY
	) WITHOUT ROWID;
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) MarkIfNew(ctx context.Context, url string) (bool, error) {
	// The primary key makes the race-free first-marker decision: only the
	// insert that actually lands affects a row.
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_urls (url) VALUES (?)`, url,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *SQLite) Len(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_urls`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count seen urls: %w", err)
	}
	return count, nil
}

// Reset forgets every marked URL, giving the next crawl a clean slate.
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM seen_urls`); err != nil {
		return fmt.Errorf("failed to reset seen urls: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
