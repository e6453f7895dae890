// Package config handles configuration loading and management for hurlstack.
//
// It provides functionality for:
//   - Loading configuration from .hurlstack.json, .hurlstack.yaml or .hurlstack.toml files
//   - Default configuration values
//   - Turning a configuration into a ready http.Stack
package config
