package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// TableFixtures writes spreadsheet fixtures into a per-test directory.
type TableFixtures struct {
	t   *testing.T
	Dir string
}

// NewTableFixtures creates fixtures rooted in t.TempDir().
func NewTableFixtures(t *testing.T) *TableFixtures {
	t.Helper()
	return &TableFixtures{t: t, Dir: t.TempDir()}
}

// CSV writes rows (header first) to name and returns the full path.
func (f *TableFixtures) CSV(name string, rows [][]string) string {
	f.t.Helper()

	path := filepath.Join(f.Dir, name)
	file, err := os.Create(path)
	require.NoError(f.t, err)
	defer file.Close()

	w := csv.NewWriter(file)
	require.NoError(f.t, w.WriteAll(rows))
	return path
}

// Workbook writes one sheet per entry of sheets, in the given order, and
// returns the full path. The default "Sheet1" is dropped unless listed.
func (f *TableFixtures) Workbook(name string, order []string, sheets map[string][][]string) string {
	f.t.Helper()

	wb := excelize.NewFile()
	defer wb.Close()

	for i, sheet := range order {
		if i == 0 {
			require.NoError(f.t, wb.SetSheetName("Sheet1", sheet))
		} else {
			_, err := wb.NewSheet(sheet)
			require.NoError(f.t, err)
		}
		for r, row := range sheets[sheet] {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(f.t, err)
				require.NoError(f.t, wb.SetCellStr(sheet, cell, v))
			}
		}
	}

	path := filepath.Join(f.Dir, name)
	require.NoError(f.t, wb.SaveAs(path))
	return path
}

// Versions writes count CSV versions of a two-column key/value table.
// values[i] holds the value column for version i keyed by the record id.
func (f *TableFixtures) Versions(keyCol, valueCol string, values []map[string]string) []string {
	f.t.Helper()

	paths := make([]string, 0, len(values))
	for i, version := range values {
		rows := [][]string{{keyCol, valueCol}}
		for _, id := range SortedKeys(version) {
			rows = append(rows, []string{id, version[id]})
		}
		paths = append(paths, f.CSV(fmt.Sprintf("v%d.csv", i+1), rows))
	}
	return paths
}
