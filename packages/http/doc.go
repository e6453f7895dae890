// Package http executes requests over pluggable connection backends and
// builds multipart file-upload bodies.
//
// A Stack takes a Request, merges its headers over the caller's defaults,
// passes the URL through an optional rewriter and opens a Conn from its
// ConnFactory. Two factories ship with the package:
//   - NewConnFactory: net/http, HTTP/1.1 or h2 as negotiated
//   - NewH2ConnFactory: golang.org/x/net/http2, h2c for http URLs
//
// Responses with a body hold their connection until Body is closed. With
// WithTracer set, each execution is recorded as a client span.
//
// MultipartRequest uploads files as multipart/form-data, one part per file,
// with a boundary generated per request.
package http
