package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Requests []JSONRequest `json:"requests"`
	Duration float64       `json:"duration"`
	Time     string        `json:"time"`
}

// JSONRequest represents a single executed request
type JSONRequest struct {
	Method    string         `json:"method"`
	URL       string         `json:"url"`
	Duration  float64        `json:"duration"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"errorCode,omitempty"`
	Response  *JSONResponse  `json:"response,omitempty"`
	Captures  map[string]any `json:"captures,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int                 `json:"statusCode"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       string              `json:"body,omitempty"`
}

// JSONFormatter formats results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONRequest
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONRequest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(r *Result) {
	req := JSONRequest{
		Method:   r.Method,
		URL:      r.URL,
		Duration: float64(r.Duration.Milliseconds()),
	}

	if r.Err != nil {
		req.Error = r.Err.Error()
		req.ErrorCode = string(errdef.CodeOf(r.Err))
	} else {
		resp := &JSONResponse{
			StatusCode: r.StatusCode,
			Body:       string(r.Body),
		}
		if len(r.Headers) > 0 {
			resp.Headers = make(map[string][]string)
			for _, h := range r.Headers {
				resp.Headers[h.Name] = append(resp.Headers[h.Name], h.Value)
			}
		}
		req.Response = resp
	}

	if len(r.Captures) > 0 {
		req.Captures = r.Captures
	}

	f.results = append(f.results, req)
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	output := JSONOutput{
		Requests: f.results,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
