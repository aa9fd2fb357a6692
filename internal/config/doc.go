// Package config provides centralized configuration management for verdiff.
// It loads the run and server settings from a YAML file and the environment,
// validates them, and resolves the on-disk locations a run writes to.
//
// # Configuration Sources
//
// Configuration is assembled in the following order, later sources winning:
//
//	1. Default values (Default)
//	2. The YAML file (config.yaml or configs/config.yaml when no path is given)
//	3. Environment variables prefixed with VERDIFF_
//	4. Command line flags, applied by cmd/verdiff
//
// # Environment Variables
//
// Nested sections map onto underscore-joined names:
//
//	VERDIFF_ACTIVE_MODE=SHEETS
//	VERDIFF_ANALYSIS_KEY_COLUMNS=region,id
//	VERDIFF_ANALYSIS_VALUE_COLUMN=amount
//	VERDIFF_LLM_MODEL_NAME=qwen-plus
//	VERDIFF_SERVER_ADDR=:8080
//
// Formatting rules are only read from the file.
//
// # Validation
//
// Validate checks struct tags with go-playground/validator and the rules
// that span fields. ValidateRun adds what a batch run needs: key columns
// and a complete source list for the active mode. Serve mode only needs
// Validate since every request carries its own tables and keys.
//
// # Usage
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//		return err
//	}
//	paths, err := cfg.ResolvePaths(filepath.Dir("config.yaml"))
package config
