package http

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

// Response is the result of one request execution. When Body is non-nil it
// owns the underlying connection; closing it releases the connection.
type Response struct {
	StatusCode    int
	Headers       []Header
	ContentLength int64 // -1 when unknown
	Body          io.ReadCloser
}

// HasBody reports whether the response carries a body stream.
func (r *Response) HasBody() bool {
	return r.Body != nil
}

// Header returns the first value of the named header, matched case-insensitively.
func (r *Response) Header(name string) string {
	v, _ := findHeader(r.Headers, name)
	return v
}

// Values returns every value of the named header.
func (r *Response) Values(name string) []string {
	var values []string
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			values = append(values, h.Value)
		}
	}
	return values
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "application/json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ReadBody reads the whole body and closes it. It returns nil for responses
// without a body.
func (r *Response) ReadBody() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeIO, err, "read response body")
	}
	return data, nil
}

// Close releases the connection held by the body, if any.
func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// DecodeJSON reads the body and decodes it into v.
func (r *Response) DecodeJSON(v any) error {
	data, err := r.ReadBody()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errdef.Wrap(errdef.CodeParse, err, "decode response body")
	}
	return nil
}
