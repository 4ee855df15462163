// Package filesystem writes state files (checkpoints, caches, model bundles)
// so a crash mid-write never leaves a truncated file behind.
package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// WriteFileAtomic replaces target with data. The data goes to target.tmp
// first; an existing target is parked at target.bak until the swap succeeds
// and is restored if it fails.
func WriteFileAtomic(target string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:gosec // G301: state directories are not secret
		return fmt.Errorf("creating parent directory: %w", err)
	}

	tmp, bak := target+".tmp", target+".bak"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	hadTarget := false
	if _, err := os.Stat(target); err == nil {
		if err := move(target, bak); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("parking existing file: %w", err)
		}
		hadTarget = true
	}

	if err := move(tmp, target); err != nil {
		if hadTarget {
			_ = move(bak, target)
		}
		_ = os.Remove(tmp)
		return fmt.Errorf("swapping in new file: %w", err)
	}
	_ = os.Remove(bak)
	return nil
}

// WriteJSONAtomic encodes v as indented JSON and writes it atomically.
func WriteJSONAtomic(target string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(target), err)
	}
	return WriteFileAtomic(target, data, perm)
}

// ReadJSON decodes the JSON file at path into v. It returns an error
// satisfying errors.Is(err, os.ErrNotExist) when the file is missing.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is an internal state file
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}

// RemoveIfExists deletes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// move renames, falling back to copy and delete across devices.
func move(from, to string) error {
	renameErr := os.Rename(from, to)
	if renameErr == nil {
		return nil
	}
	if err := copySynced(from, to); err != nil {
		return fmt.Errorf("copy fallback: %w (rename error: %w)", err, renameErr)
	}
	_ = os.Remove(from)
	return nil
}

func copySynced(from, to string) error {
	in, err := os.Open(from) //nolint:gosec // G304: internal path
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(to) //nolint:gosec // G304: internal path
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	return out.Close()
}
