package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"verdiff/internal/errors"
)

// TimestampLayout is appended to saved file names.
const TimestampLayout = "20060102_150405"

// Manager provides file management operations
type Manager struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a new file manager instance
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger.With(slog.String("component", "files")),
		now:    time.Now,
	}
}

// SaveTextFile writes content to dir/name. With timestamp the file becomes
// name_YYYYMMDD_HHMMSS.txt; without it name is used verbatim.
func (m *Manager) SaveTextFile(dir, name, content string, timestamp bool) (string, error) {
	fileName := name
	if timestamp {
		fileName = fmt.Sprintf("%s_%s.txt", name, m.now().Format(TimestampLayout))
	}
	path := filepath.Join(dir, fileName)
	if err := m.WriteFile(path, []byte(content)); err != nil {
		return "", err
	}
	m.logger.Info("content saved", slog.String("path", path))
	return path, nil
}

// SaveMarkdownReport writes the final report to dir/prefix_YYYYMMDD_HHMMSS.md.
func (m *Manager) SaveMarkdownReport(dir, prefix, content string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.md", prefix, m.now().Format(TimestampLayout)))
	if err := m.WriteFile(path, []byte(content)); err != nil {
		return "", err
	}
	m.logger.Info("report saved", slog.String("path", path))
	return path, nil
}

// WriteFile writes data to a file, creating parent directories.
func (m *Manager) WriteFile(path string, data []byte) error {
	m.logger.Debug("writing file",
		slog.String("path", path),
		slog.Int("size_bytes", len(data)))

	if err := m.EnsureDirectory(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to write '%s'", path), err)
	}
	return nil
}

// EnsureDirectory creates a directory if it doesn't exist
func (m *Manager) EnsureDirectory(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to create directory '%s'", path), err)
	}
	return nil
}
