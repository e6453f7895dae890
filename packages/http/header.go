package http

import (
	"sort"
	"strings"
)

// Header is a single response header. A name with several values appears as
// several Headers, in the order the connection reported them.
type Header struct {
	Name  string
	Value string
}

// ConvertHeaders flattens a connection's header fields into Headers. The
// entry with an empty name carries the status line and is dropped. Names are
// emitted in sorted order so output is stable across runs.
func ConvertHeaders(fields map[string][]string) []Header {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	headers := make([]Header, 0, len(names))
	for _, name := range names {
		for _, value := range fields[name] {
			headers = append(headers, Header{Name: name, Value: value})
		}
	}
	return headers
}

// mergeHeaders returns additional overlaid with request headers. Request
// headers win for names that appear in both, compared case-insensitively,
// and keep the request's spelling of the name.
func mergeHeaders(additional, request map[string]string) map[string]string {
	merged := make(map[string]string, len(additional)+len(request))
	for k, v := range additional {
		merged[k] = v
	}
	for k, v := range request {
		for existing := range merged {
			if existing != k && strings.EqualFold(existing, k) {
				delete(merged, existing)
			}
		}
		merged[k] = v
	}
	return merged
}

func findHeader(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}
