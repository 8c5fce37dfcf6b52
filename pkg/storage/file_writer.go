// Package storage holds the on-disk staging primitives described in §4.3:
// a file writer that stages fragments under a ".tmp" name until FINISH, and
// a message buffer that spills to disk past a configured in-memory
// threshold.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileWriter stages an inbound file under "<name>.tmp" in destDir,
// appending fragments as they arrive and renaming to the final name on
// FINISH. On abnormal exit the temporary file is removed instead.
type FileWriter struct {
	destDir  string
	name     string
	tmpPath  string
	file     *os.File
	log      *slog.Logger
	finished bool
}

// NewFileWriter opens "<name>.tmp" for append inside destDir.
func NewFileWriter(destDir, name string, log *slog.Logger) (*FileWriter, error) {
	if log == nil {
		log = slog.Default()
	}
	tmpPath := filepath.Join(destDir, name+".tmp")
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open temp file: %w", err)
	}
	return &FileWriter{destDir: destDir, name: name, tmpPath: tmpPath, file: f, log: log}, nil
}

// Append writes a fragment's content bytes at the file's current position.
func (w *FileWriter) Append(content []byte) error {
	if len(content) == 0 {
		return nil
	}
	if _, err := w.file.Write(content); err != nil {
		return fmt.Errorf("storage: append fragment: %w", err)
	}
	return nil
}

// Finish closes the temp file and renames it to its final path, completing
// the file writer's lifecycle (§4.3 "on FINISH, the temporary file is
// renamed to its final path").
func (w *FileWriter) Finish() (string, error) {
	if err := w.file.Close(); err != nil {
		return "", fmt.Errorf("storage: close temp file: %w", err)
	}
	finalPath := filepath.Join(w.destDir, w.name)
	if err := os.Rename(w.tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("storage: rename to final path: %w", err)
	}
	w.finished = true
	return finalPath, nil
}

// Abort closes and deletes the temp file, used on abnormal session
// termination (§4.3).
func (w *FileWriter) Abort() {
	if w.finished {
		return
	}
	_ = w.file.Close()
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		w.log.Warn("failed to remove abandoned temp file", "path", w.tmpPath, "error", err)
	}
}
