// Package cmd implements the hurlstack CLI commands using Cobra.
//
// Available commands:
//   - fetch: Send one request per URL and print the response
//   - upload: Upload files as multipart/form-data
//   - init: Write a starter .hurlstack.yaml
//   - version: Show hurlstack version information
//
// Every command loads the config file first; flags such as --timeout,
// --transport and -H override it.
package cmd
