// Package files provides file system operations for verdiff runs.
//
// This package contains two main components:
//
// Manager: saves prompts, model answers and the final markdown report under
// timestamped names so repeated runs never overwrite each other.
//
// Discovery: finds version files (xlsx and csv) in a directory and orders
// them oldest first, either by name or by modification time.
//
// Example usage:
//
//	manager := files.NewManager(logger)
//	path, err := manager.SaveMarkdownReport("reports", "historical_report", markdown)
//
//	discovery := files.NewDiscovery("data")
//	versions, err := discovery.FindTableFiles("snapshots", files.OrderByName)
package files
