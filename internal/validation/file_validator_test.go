package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdiff/internal/errors"
	"verdiff/internal/shared/testutil"
)

func newValidator(t *testing.T) *FileValidator {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewFileValidator(logger)
}

func TestValidateInputDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.csv")
	require.NoError(t, os.WriteFile(file, []byte("id\n1\n"), 0644))

	tests := []struct {
		name     string
		path     string
		wantType errors.ErrorType
	}{
		{"directory", dir, ""},
		{"missing", filepath.Join(dir, "absent"), errors.ErrTypeNotFound},
		{"file", file, errors.ErrTypeValidation},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateInputDirectory(tt.path)
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.TypeOf(err))
		})
	}
}

func TestValidateTableFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("id\n1\n"), 0644))
		return path
	}

	tests := []struct {
		name        string
		path        string
		wantType    errors.ErrorType
		errContains string
	}{
		{name: "csv", path: write("jan.csv")},
		{name: "upper case xlsx", path: write("FEB.XLSX")},
		{name: "xlsm", path: write("mar.xlsm")},
		{name: "missing", path: filepath.Join(dir, "absent.csv"), wantType: errors.ErrTypeNotFound, errContains: "absent.csv"},
		{name: "directory", path: dir, wantType: errors.ErrTypeValidation, errContains: "is a directory"},
		{name: "lock file", path: write("~$jan.xlsx"), wantType: errors.ErrTypeValidation, errContains: "temporary Excel file"},
		{name: "unsupported", path: write("notes.txt"), wantType: errors.ErrTypeValidation, errContains: `unsupported type ".txt"`},
		{name: "legacy xls", path: write("old.xls"), wantType: errors.ErrTypeValidation, errContains: ".csv, .xlsx, .xlsm"},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateTableFile(tt.path)
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.TypeOf(err))
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidateWorkbook(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "jan.csv")
	xlsxPath := filepath.Join(dir, "book.xlsx")
	require.NoError(t, os.WriteFile(csvPath, []byte("id\n"), 0644))
	require.NoError(t, os.WriteFile(xlsxPath, []byte("PK"), 0644))

	v := newValidator(t)
	assert.NoError(t, v.ValidateWorkbook(xlsxPath))

	err := v.ValidateWorkbook(csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no sheets")
}

func TestValidateOutputDirectory(t *testing.T) {
	v := newValidator(t)

	t.Run("creates nested directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "reports", "exports")
		require.NoError(t, v.ValidateOutputDirectory(dir))
		assert.DirExists(t, dir)
		assert.NoFileExists(t, filepath.Join(dir, ".write_test"))
	})

	t.Run("file in the way", func(t *testing.T) {
		base := t.TempDir()
		blocker := filepath.Join(base, "reports")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

		err := v.ValidateOutputDirectory(filepath.Join(blocker, "exports"))
		require.Error(t, err)
		assert.Equal(t, errors.ErrTypeStorage, errors.TypeOf(err))
	})
}

func TestIsTableFile(t *testing.T) {
	assert.True(t, IsTableFile("a/b/c.CSV"))
	assert.True(t, IsTableFile("book.xlsm"))
	assert.False(t, IsTableFile("book.xls"))
	assert.False(t, IsTableFile("README"))
}
