package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	statusPending    = "pending"
	statusProcessing = "processing"
	statusDone       = "done"
)

// SQLite is a durable single-host backend. The frontier survives process
// restarts; items left in-flight by a crashed run can be requeued with
// Recover or RequeueStale. Dequeue polls the database, since SQLite cannot
// push notifications to a blocked reader.
type SQLite struct {
	db   *sql.DB
	poll time.Duration
}

type SQLiteOptions struct {
	Path         string        // database file, default ./data/frontier.db
	PollInterval time.Duration // delay between dequeue attempts while the frontier is empty
}

func NewSQLite(opts SQLiteOptions) (*SQLite, error) {
	if opts.Path == "" {
		opts.Path = "./data/frontier.db"
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 50 * time.Millisecond
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", opts.Path+"?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLite{db: db, poll: opts.PollInterval}
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		added_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
	CREATE INDEX IF NOT EXISTS idx_items_status_url ON items(status, url);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (s *SQLite) Enqueue(ctx context.Context, item Item) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (url, depth, status, added_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		item.URL, item.Depth, statusPending, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (s *SQLite) Dequeue(ctx context.Context) (Item, error) {
	for {
		item, ok, err := s.pop(ctx)
		if err != nil {
			return Item{}, err
		}
		if ok {
			return item, nil
		}

		drained, err := s.IsDrained(ctx)
		if err != nil {
			return Item{}, err
		}
		if drained {
			return Item{}, io.EOF
		}

		select {
		case <-ctx.Done():
			return Item{}, ctx.Err()
		case <-time.After(s.poll):
		}
	}
}

func (s *SQLite) pop(ctx context.Context) (Item, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	var item Item
	err = tx.QueryRowContext(ctx,
		`SELECT id, url, depth FROM items
		 WHERE status = ?
		 ORDER BY id ASC
		 LIMIT 1`,
		statusPending,
	).Scan(&id, &item.URL, &item.Depth)

	if err == sql.ErrNoRows {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, fmt.Errorf("failed to fetch item: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ?`,
		statusProcessing, time.Now(), id,
	)
	if err != nil {
		return Item{}, false, fmt.Errorf("failed to update item status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Item{}, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return item, true, nil
}

func (s *SQLite) TaskDone(ctx context.Context, item Item) error {
	// The subquery pins the update to one row, so a repeated call for the
	// same item is a no-op.
	_, err := s.db.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = ?
		 WHERE id = (
			SELECT id FROM items
			WHERE status = ? AND url = ?
			ORDER BY id ASC
			LIMIT 1
		 )`,
		statusDone, time.Now(), statusProcessing, item.URL,
	)
	if err != nil {
		return fmt.Errorf("failed to mark item done: %w", err)
	}
	return nil
}

func (s *SQLite) IsDrained(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE status IN (?, ?)`,
		statusPending, statusProcessing,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count open items: %w", err)
	}
	return count == 0, nil
}

func (s *SQLite) Join(ctx context.Context) error {
	for {
		drained, err := s.IsDrained(ctx)
		if err != nil {
			return err
		}
		if drained {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.poll):
		}
	}
}

func (s *SQLite) Drain(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM items WHERE status = ?`, statusPending,
	); err != nil {
		return fmt.Errorf("failed to drain frontier: %w", err)
	}
	return nil
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM items GROUP BY status`,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch status {
		case statusPending:
			stats.Pending = count
		case statusProcessing:
			stats.InFlight = count
		case statusDone:
			stats.Done = count
		}
	}
	return stats, rows.Err()
}

// Recover returns every in-flight item to the frontier. Call it once at
// startup when resuming a crawl that did not shut down cleanly.
func (s *SQLite) Recover(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE status = ?`,
		statusPending, time.Now(), statusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to recover in-flight items: %w", err)
	}
	return nil
}

// RequeueStale returns items that have been in-flight longer than age to
// the frontier. Useful while other crawler processes are still running.
func (s *SQLite) RequeueStale(ctx context.Context, age time.Duration) error {
	cutoff := time.Now().Add(-age)
	_, err := s.db.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = ?
		 WHERE status = ? AND updated_at < ?`,
		statusPending, time.Now(), statusProcessing, cutoff,
	)
	if err != nil {
		return fmt.Errorf("failed to requeue stale items: %w", err)
	}
	return nil
}

// Reset deletes all items, pending and finished alike, so the next crawl
// starts from nothing.
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("failed to reset scheduler: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
