package capture

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
	"github.com/abdul-hamid-achik/hurlstack/packages/http"
)

type Source string

const (
	SourceBody   Source = "body"
	SourceHeader Source = "header"
	SourceStatus Source = "status"
)

// Capture names one value to pull out of a response.
type Capture struct {
	Name   string
	Source Source
	Path   string
}

// Parse reads a capture expression of the form name=source:path. The name
// defaults to the path and the source to body, so "data.id" captures the
// JSON path data.id under the name "data.id".
func Parse(expr string) (*Capture, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errdef.New(errdef.CodeParse, "empty capture expression")
	}

	c := &Capture{Source: SourceBody}
	rest := expr
	if name, after, ok := strings.Cut(expr, "="); ok {
		c.Name = strings.TrimSpace(name)
		rest = strings.TrimSpace(after)
	}

	if src, path, ok := strings.Cut(rest, ":"); ok {
		switch Source(src) {
		case SourceBody, SourceHeader, SourceStatus:
			c.Source = Source(src)
			rest = path
		}
	}
	c.Path = rest

	if c.Source == SourceHeader && c.Path == "" {
		return nil, errdef.New(errdef.CodeParse, "header capture needs a header name: %q", expr)
	}
	if c.Name == "" {
		c.Name = c.Path
		if c.Name == "" {
			c.Name = string(c.Source)
		}
	}
	return c, nil
}

type Extractor struct {
	response *http.Response
	body     []byte
	bodyJSON gjson.Result
}

// NewExtractor reads from resp and its already consumed body.
func NewExtractor(resp *http.Response, body []byte) *Extractor {
	e := &Extractor{
		response: resp,
		body:     body,
	}
	if gjson.ValidBytes(body) {
		e.bodyJSON = gjson.ParseBytes(body)
	}
	return e
}

func (e *Extractor) Extract(capture *Capture) (any, bool) {
	switch capture.Source {
	case SourceBody:
		return e.extractFromBody(capture.Path)
	case SourceHeader:
		return e.extractFromHeader(capture.Path)
	case SourceStatus:
		return e.response.StatusCode, true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return string(e.body), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	values := e.response.Values(name)
	switch len(values) {
	case 0:
		return nil, false
	case 1:
		return values[0], true
	default:
		return values, true
	}
}

// ExtractAll returns every capture that resolved, keyed by name.
func ExtractAll(resp *http.Response, body []byte, captures []*Capture) map[string]any {
	extractor := NewExtractor(resp, body)
	results := make(map[string]any)

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		}
	}

	return results
}
