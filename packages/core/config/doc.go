// Package config handles configuration loading and management for featspec.
//
// It provides functionality for:
//   - Loading configuration from featspec.yaml / .featspec.yaml files
//   - Default configuration values
//   - Merging file values under command-line overrides
//   - Validation of execution settings before a run starts
package config
