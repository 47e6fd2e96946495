package monitor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store appends samples to a SQLite table, creating it on first use.
type Store struct {
	db    *sql.DB
	table string
}

// OpenStore opens the SQLite file behind a data binding.
func OpenStore(path, table string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (dateTime INTEGER NOT NULL PRIMARY KEY, pid INTEGER, mem_rss INTEGER, mem_size INTEGER)`,
		table)
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table %s: %w", table, err)
	}
	return &Store{db: db, table: table}, nil
}

// Insert appends one sample.
func (s *Store) Insert(ctx context.Context, sample *Sample) error {
	q := fmt.Sprintf(`INSERT OR REPLACE INTO %s (dateTime, pid, mem_rss, mem_size) VALUES (?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, q, sample.Time.Unix(), sample.PID, sample.VmRSS, sample.VmSize)
	return err
}

// Latest returns the most recent sample, or nil if the table is empty.
func (s *Store) Latest(ctx context.Context) (*Sample, error) {
	q := fmt.Sprintf(`SELECT dateTime, pid, mem_rss, mem_size FROM %s ORDER BY dateTime DESC LIMIT 1`, s.table)
	var (
		ts     int64
		sample Sample
	)
	err := s.db.QueryRowContext(ctx, q).Scan(&ts, &sample.PID, &sample.VmRSS, &sample.VmSize)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sample.Time = time.Unix(ts, 0)
	return &sample, nil
}

// Count returns the number of stored samples.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	return n, err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
