// Package output provides formatters for displaying request results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//
// The JSON formatter accumulates results and writes them on Flush.
package output
