// Package storage persists component state as single canonical JSON
// documents. Writes are atomic: marshal, write to a temp file, fsync,
// rename over the target. A torn write can never be observed.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrPersistence wraps any I/O failure during a document write.
var ErrPersistence = errors.New("persistence failure")

// Save writes v to path as indented JSON via temp-file + rename.
func Save(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", ErrPersistence, filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrPersistence, path, err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrPersistence, tmpPath, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: fsync %s: %v", ErrPersistence, tmpPath, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: close %s: %v", ErrPersistence, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: rename %s: %v", ErrPersistence, path, err)
	}
	return nil
}

// Load reads the document at path into v. A missing file is not an
// error; v is left untouched and ok is false.
func Load(path string, v interface{}) (ok bool, err error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is configured, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read %s: %v", ErrPersistence, path, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		// Corrupted document: start fresh rather than refusing to boot,
		// but leave a trace so this is distinguishable from a first run.
		slog.Warn("discarding unparseable document", "path", path, "error", err)
		return false, nil
	}
	return true, nil
}

// Remove deletes the document at path if it exists.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove %s: %v", ErrPersistence, path, err)
	}
	return nil
}
