// Package shared provides common utilities and test helpers used across the
// verdiff codebase that don't belong to any single domain package.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//	- A buffered slog handler for asserting on structured log output
//	- Table fixtures that write CSV and XLSX versions into a temp dir
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//		fx := testutil.NewTableFixtures(t)
//		path := fx.CSV("v1.csv", [][]string{{"id", "value"}, {"1", "10"}})
//		logger, logs := testutil.NewTestLogger(t)
//		...
//	}
package shared
