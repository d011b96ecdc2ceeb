// Package config handles loading and validating the react service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with REACT_* environment variables
//   - Validation of required fields, accumulated into one error
//   - Default value handling
//
// Workflow definitions are not part of this file; react.workflows_file
// points at a separate YAML document parsed by the workflow package.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	loc := cfg.Location()
package config
