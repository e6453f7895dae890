package http

import (
	"log/slog"
	"time"
)

// MultipartRequest uploads files as multipart/form-data and decodes a JSON
// response into T. Each request carries its own boundary, so requests built
// concurrently never share one.
type MultipartRequest[T any] struct {
	method   Method
	url      string
	timeout  time.Duration
	headers  map[string]string
	files    []FileEntry
	index    map[string]int
	boundary string
	logger   *slog.Logger
}

func NewMultipartRequest[T any](method Method, requestURL string) *MultipartRequest[T] {
	return &MultipartRequest[T]{
		method:   method,
		url:      requestURL,
		timeout:  DefaultTimeout,
		headers:  make(map[string]string),
		index:    make(map[string]int),
		boundary: NewBoundary(),
	}
}

// SetHeader sets a request header. Empty keys or values are ignored.
func (r *MultipartRequest[T]) SetHeader(key, value string) map[string]string {
	if key != "" && value != "" {
		r.headers[key] = value
	}
	return r.headers
}

// AddFile adds a file under name. An empty name or a nil source is ignored;
// adding a name twice replaces the earlier content and keeps its position.
func (r *MultipartRequest[T]) AddFile(name string, src FileSource) {
	if name == "" || src == nil {
		return
	}
	if i, ok := r.index[name]; ok {
		r.files[i].Source = src
		return
	}
	r.index[name] = len(r.files)
	r.files = append(r.files, FileEntry{Name: name, Source: src})
}

func (r *MultipartRequest[T]) SetTimeout(d time.Duration) *MultipartRequest[T] {
	r.timeout = d
	return r
}

func (r *MultipartRequest[T]) SetLogger(logger *slog.Logger) *MultipartRequest[T] {
	r.logger = logger
	return r
}

// Files returns the files in upload order.
func (r *MultipartRequest[T]) Files() []FileEntry {
	return append([]FileEntry(nil), r.files...)
}

func (r *MultipartRequest[T]) Boundary() string { return r.boundary }

func (r *MultipartRequest[T]) Method() Method { return r.method }

func (r *MultipartRequest[T]) URL() string { return r.url }

func (r *MultipartRequest[T]) Timeout() time.Duration { return r.timeout }

func (r *MultipartRequest[T]) Headers() (map[string]string, error) {
	headers := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		headers[k] = v
	}
	return headers, nil
}

// Body builds the multipart body from the current files.
func (r *MultipartRequest[T]) Body() ([]byte, error) {
	return r.builder().Build(r.files)
}

func (r *MultipartRequest[T]) BodyContentType() string {
	return r.builder().ContentType()
}

func (r *MultipartRequest[T]) builder() MultipartBuilder {
	return MultipartBuilder{Boundary: r.boundary, Logger: r.logger}
}

// ParseResponse decodes the response body as JSON into a T.
func (r *MultipartRequest[T]) ParseResponse(resp *Response) (T, error) {
	var v T
	if err := resp.DecodeJSON(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
