package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cpidash/internal/core"

	_ "modernc.org/sqlite"
)

// Store keeps the downloaded CPI table in SQLite so restarts and
// worker runs do not hit Statistics Canada more than necessary.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ReplaceAll swaps the cached table for a fresh download in a single
// transaction and records the refresh.
func (s *Store) ReplaceAll(ctx context.Context, observations []core.Observation) error {
	if len(observations) == 0 {
		return errors.New("refusing to replace cache with an empty dataset")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (date, category, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range observations {
		if _, err := stmt.ExecContext(ctx, o.Date.String(), o.Category, o.Value); err != nil {
			return fmt.Errorf("insert observation %s/%s: %w", o.Category, o.Date, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refreshes (refreshed_at, observation_count) VALUES (?, ?)`,
		time.Now().UTC(), len(observations)); err != nil {
		return fmt.Errorf("record refresh: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit refresh: %w", err)
	}

	slog.InfoContext(ctx, "CPI cache replaced", "observations", len(observations))
	return nil
}

// LoadAll returns every cached observation sorted by category and date.
func (s *Store) LoadAll(ctx context.Context) ([]core.Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, category, value FROM observations ORDER BY category, date`)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var observations []core.Observation
	for rows.Next() {
		var (
			rawDate  string
			category string
			value    float64
		)
		if err := rows.Scan(&rawDate, &category, &value); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}

		date, err := core.ParseMonth(rawDate)
		if err != nil {
			return nil, fmt.Errorf("cached observation has bad date %q: %w", rawDate, err)
		}

		observations = append(observations, core.Observation{
			Date:     date,
			Category: category,
			Value:    value,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}

	return observations, nil
}

// LastRefreshedAt reports when the cache was last replaced. The
// boolean is false when no refresh has ever happened.
func (s *Store) LastRefreshedAt(ctx context.Context) (time.Time, bool, error) {
	var refreshedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT refreshed_at FROM refreshes ORDER BY id DESC LIMIT 1`).Scan(&refreshedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last refresh: %w", err)
	}
	return refreshedAt, true, nil
}

// Info describes the current cache contents for the status endpoint.
type Info struct {
	Exists       bool      `json:"exists"`
	Observations int       `json:"observations"`
	Categories   int       `json:"categories"`
	RefreshedAt  time.Time `json:"refreshed_at"`
	AgeHours     float64   `json:"age_hours"`
}

func (s *Store) CacheInfo(ctx context.Context) (Info, error) {
	var info Info

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT category) FROM observations`).
		Scan(&info.Observations, &info.Categories)
	if err != nil {
		return Info{}, fmt.Errorf("count observations: %w", err)
	}

	refreshedAt, ok, err := s.LastRefreshedAt(ctx)
	if err != nil {
		return Info{}, err
	}
	if ok {
		info.Exists = info.Observations > 0
		info.RefreshedAt = refreshedAt
		info.AgeHours = time.Since(refreshedAt).Hours()
	}

	return info, nil
}

// Clear drops the cached table. The next dataset request re-downloads.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM refreshes`); err != nil {
		return fmt.Errorf("clear refresh log: %w", err)
	}
	slog.InfoContext(ctx, "CPI cache cleared")
	return nil
}
