// Package maintenance keeps the catalog database compact and consistent
// between batch runs.
package maintenance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const lastOptimizeKey = "maintenance.last_optimize_at"

// Status describes the database file and its page usage.
type Status struct {
	DBFileSize     int64  `json:"db_file_size"`
	WALFileSize    int64  `json:"wal_file_size"`
	PageCount      int64  `json:"page_count"`
	PageSize       int64  `json:"page_size"`
	FreePages      int64  `json:"free_pages"`
	LastOptimizeAt string `json:"last_optimize_at,omitempty"`
}

// Reclaimable is the number of bytes a vacuum would return.
func (s *Status) Reclaimable() int64 { return s.FreePages * s.PageSize }

// Service runs maintenance statements against the catalog database.
type Service struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a maintenance service.
func NewService(db *sql.DB, dbPath string, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		dbPath: dbPath,
		logger: logger.With(slog.String("component", "maintenance")),
		now:    time.Now,
	}
}

// Status reports file sizes and page counts. Missing files report zero.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{}
	if info, err := os.Stat(s.dbPath); err == nil {
		st.DBFileSize = info.Size()
	}
	if info, err := os.Stat(s.dbPath + "-wal"); err == nil {
		st.WALFileSize = info.Size()
	}

	for pragma, dst := range map[string]*int64{
		"PRAGMA page_count":     &st.PageCount,
		"PRAGMA page_size":      &st.PageSize,
		"PRAGMA freelist_count": &st.FreePages,
	} {
		if err := s.db.QueryRowContext(ctx, pragma).Scan(dst); err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, lastOptimizeKey).Scan(&st.LastOptimizeAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading last optimize time: %w", err)
	}
	return st, nil
}

// Optimize refreshes query planner statistics, truncates the WAL and
// records when it ran.
func (s *Service) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("PRAGMA optimize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		lastOptimizeKey, now, now)
	if err != nil {
		s.logger.Warn("recording optimize timestamp", "error", err)
	}
	s.logger.Debug("optimize complete")
	return nil
}

// Vacuum rebuilds the database file, returning free pages to the OS.
func (s *Service) Vacuum(ctx context.Context) error {
	s.logger.Info("running VACUUM")
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM: %w", err)
	}
	return nil
}

// IntegrityCheck runs PRAGMA integrity_check and returns the problems it
// reports, or nil when the database is sound.
func (s *Service) IntegrityCheck(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, fmt.Errorf("PRAGMA integrity_check: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scanning integrity result: %w", err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading integrity result: %w", err)
	}
	return problems, nil
}
