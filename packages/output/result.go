package output

import (
	"time"

	"github.com/abdul-hamid-achik/hurlstack/packages/http"
)

// Result is one executed request as the CLI reports it.
type Result struct {
	Method     string
	URL        string
	StatusCode int
	Headers    []http.Header
	Body       []byte
	Duration   time.Duration
	Captures   map[string]any
	Err        error
}
