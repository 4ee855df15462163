package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/dnhngynops/muindb/internal/filesystem"
)

// Checkpoint is the resumable progress record of a batch run. It is
// rewritten atomically every few subjects and removed when a run
// completes.
type Checkpoint struct {
	ProcessedCount int       `json:"processed_count"`
	TotalCount     int       `json:"total_count"`
	Successful     int       `json:"successful"`
	Failed         int       `json:"failed"`
	Skipped        int       `json:"skipped"`
	Timestamp      time.Time `json:"timestamp"`
	RunID          string    `json:"run_id"`
	Year           int       `json:"year,omitempty"`
}

// LoadCheckpoint reads the checkpoint at path. It returns nil, nil when no
// checkpoint exists.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	var cp Checkpoint
	if err := filesystem.ReadJSON(path, &cp); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}
	return &cp, nil
}

// SaveCheckpoint atomically replaces the checkpoint at path.
func SaveCheckpoint(path string, cp *Checkpoint) error {
	if err := filesystem.WriteJSONAtomic(path, cp, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint %s: %w", path, err)
	}
	return nil
}

// ClearCheckpoint removes the checkpoint at path if present.
func ClearCheckpoint(path string) error {
	if err := filesystem.RemoveIfExists(path); err != nil {
		return fmt.Errorf("removing checkpoint %s: %w", path, err)
	}
	return nil
}
