// Package config handles configuration loading and management for runtests.
//
// It provides functionality for:
//   - Loading configuration from .runtests.yaml, .runtests.yml or JSON files
//   - Default configuration values
//   - Merging file values with explicitly set command line flags
package config
