// Package validation checks input tables and output directories before a run
// reads or writes them.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"verdiff/internal/errors"
)

// TableExtensions are the file types the parser reads.
var TableExtensions = []string{".csv", ".xlsx", ".xlsm"}

// FileValidator checks input tables and output directories before a run
// touches them.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// ValidateInputDirectory checks that dir exists and is a directory.
func (v *FileValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("input directory does not exist", slog.String("directory", dir))
		return errors.NewNotFoundError(fmt.Sprintf("directory '%s'", dir))
	}
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("cannot access directory '%s'", dir), err)
	}
	if !info.IsDir() {
		v.logger.Error("input path is not a directory", slog.String("path", dir))
		return errors.NewAppValidationError(fmt.Sprintf("%s is not a directory", dir))
	}
	return nil
}

// ValidateOutputDirectory creates dir when needed and checks that it is
// writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return errors.NewStorageError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return errors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	file.Close()
	os.Remove(testFile)

	v.logger.Debug("output directory validated", slog.String("directory", dir))
	return nil
}

// ValidateFile checks that path exists, is a regular file and can be opened.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.NewNotFoundError(fmt.Sprintf("file '%s'", path))
	}
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("cannot access '%s'", path), err)
	}
	if info.IsDir() {
		return errors.NewAppValidationError(fmt.Sprintf("%s is a directory, not a file", path))
	}

	file, err := os.Open(path)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("file %s is not readable", path), err)
	}
	file.Close()

	v.logger.Debug("file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateTableFile checks a version file: readable, a supported type and
// not an Excel lock file.
func (v *FileValidator) ValidateTableFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("refusing temporary Excel file", slog.String("file", path))
		return errors.NewAppValidationError(fmt.Sprintf("%s is a temporary Excel file", filepath.Base(path)))
	}

	if !IsTableFile(path) {
		ext := strings.ToLower(filepath.Ext(path))
		return errors.NewAppValidationError(fmt.Sprintf(
			"%s has unsupported type %q (expected one of %s)",
			filepath.Base(path), ext, strings.Join(TableExtensions, ", ")))
	}

	return nil
}

// ValidateWorkbook checks a file read sheet by sheet.
func (v *FileValidator) ValidateWorkbook(path string) error {
	if err := v.ValidateTableFile(path); err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return errors.NewAppValidationError(fmt.Sprintf("%s is a CSV file and has no sheets", filepath.Base(path)))
	}
	return nil
}

// IsTableFile reports whether path has a supported table extension.
func IsTableFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range TableExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
