// Package backup snapshots the store file before destructive passes and
// restores it on failure. Writes to the store itself go through an atomic
// temp-file-and-rename helper.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BackupFailedError reports that a snapshot could not be created. No
// destructive operation may proceed after this.
type BackupFailedError struct {
	Path string
	Err  error
}

func (e *BackupFailedError) Error() string {
	return fmt.Sprintf("backup of %s failed: %v", e.Path, e.Err)
}

func (e *BackupFailedError) Unwrap() error {
	return e.Err
}

// WriteFailedError reports that the final store write did not complete.
type WriteFailedError struct {
	Path string
	Err  error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("write of %s failed: %v", e.Path, e.Err)
}

func (e *WriteFailedError) Unwrap() error {
	return e.Err
}

// Manager creates and restores store snapshots.
type Manager struct {
	dir string // destination directory; empty means alongside the store
	now func() time.Time
}

// New creates a manager writing snapshots into dir, or next to the store
// file when dir is empty.
func New(dir string) *Manager {
	return &Manager{dir: dir, now: time.Now}
}

// Snapshot copies the store bytes verbatim to a timestamp-named file and
// returns its path. Snapshots are never deleted automatically.
func (m *Manager) Snapshot(storePath string) (string, error) {
	data, err := os.ReadFile(storePath)
	if err != nil {
		return "", &BackupFailedError{Path: storePath, Err: err}
	}

	dir := m.dir
	if dir == "" {
		dir = filepath.Dir(storePath)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &BackupFailedError{Path: storePath, Err: err}
	}

	name := fmt.Sprintf("%s.backup.%s", filepath.Base(storePath), m.timestamp())
	backupPath := filepath.Join(dir, name)
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", &BackupFailedError{Path: backupPath, Err: err}
	}
	return backupPath, nil
}

// Restore copies snapshot bytes back over the store file.
func (m *Manager) Restore(backupPath, storePath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup %s: %w", backupPath, err)
	}
	return WriteFileAtomic(storePath, data, 0644)
}

// timestamp renders an ISO-8601-like instant with filesystem-unsafe
// characters replaced.
func (m *Manager) timestamp() string {
	ts := m.now().UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(ts)
}

// WriteFileAtomic writes data to a temp file in the target directory, syncs
// it, and renames it over path. A failure at any point leaves the original
// file untouched and is reported as WriteFailedError.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &WriteFailedError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &WriteFailedError{Path: path, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &WriteFailedError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &WriteFailedError{Path: path, Err: err}
	}
	return nil
}
