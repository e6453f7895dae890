// Package capture extracts values from HTTP responses.
//
// It supports capturing values from:
//   - Response body (gjson paths)
//   - Response headers
//   - Response status code
package capture
