// Package backup snapshots the catalog database before long batch runs.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

const stampLayout = "20060102-150405"

// snapshotPattern matches snapshot names: muindb-YYYYMMDD-HHMMSS.db
var snapshotPattern = regexp.MustCompile(`^muindb-\d{8}-\d{6}\.db$`)

// Snapshot describes one backup file.
type Snapshot struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service writes and prunes database snapshots.
type Service struct {
	db        *sql.DB
	dir       string
	retention int
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a backup service keeping at most retention snapshots
// (0 keeps all).
func NewService(db *sql.DB, dir string, retention int, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		dir:       dir,
		retention: retention,
		logger:    logger.With(slog.String("component", "backup")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Dir returns the snapshot directory.
func (s *Service) Dir() string { return s.dir }

// Backup writes a consistent snapshot with VACUUM INTO.
func (s *Service) Backup(ctx context.Context) (*Snapshot, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	now := s.now()
	name := "muindb-" + now.Format(stampLayout) + ".db"
	dest := filepath.Join(s.dir, name)

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat backup file: %w", err)
	}
	s.logger.Info("backup written", slog.String("filename", name), slog.Int64("size", info.Size()))
	return &Snapshot{Filename: name, Size: info.Size(), CreatedAt: now}, nil
}

// List returns the snapshots in the directory, newest first.
func (s *Service) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var out []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !snapshotPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "muindb-"), ".db")
		ts, err := time.Parse(stampLayout, stamp)
		if err != nil {
			ts = info.ModTime()
		}
		out = append(out, Snapshot{Filename: entry.Name(), Size: info.Size(), CreatedAt: ts})
	}
	slices.SortFunc(out, func(a, b Snapshot) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// Prune removes the oldest snapshots beyond the retention count and returns
// how many were removed.
func (s *Service) Prune() (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	snaps, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, snap := range snaps[min(s.retention, len(snaps)):] {
		if err := os.Remove(filepath.Join(s.dir, snap.Filename)); err != nil {
			s.logger.Warn("removing old backup", slog.String("filename", snap.Filename), slog.Any("error", err))
			continue
		}
		removed++
	}
	return removed, nil
}

// BeforeRun snapshots the database and prunes old snapshots. A failed prune
// is logged; a failed snapshot is returned.
func (s *Service) BeforeRun(ctx context.Context) (*Snapshot, error) {
	snap, err := s.Backup(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := s.Prune(); err != nil {
		s.logger.Warn("pruning backups", slog.Any("error", err))
	} else if n > 0 {
		s.logger.Info("pruned backups", slog.Int("removed", n))
	}
	return snap, nil
}
