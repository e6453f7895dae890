package http

import (
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

// Method is a request method. The numeric values are stable and match the
// request-queue wire values, so they can be persisted alongside queued requests.
type Method int

const (
	// MethodDeprecatedGetOrPost is GET when the request has no body and POST
	// otherwise. Use ResolveMethod to turn it into a concrete method.
	MethodDeprecatedGetOrPost Method = -1
	MethodGet                 Method = 0
	MethodPost                Method = 1
	MethodPut                 Method = 2
	MethodDelete              Method = 3
	MethodHead                Method = 4
	MethodOptions             Method = 5
	MethodTrace               Method = 6
	MethodPatch               Method = 7
)

var methodNames = map[Method]string{
	MethodGet:     "GET",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodHead:    "HEAD",
	MethodOptions: "OPTIONS",
	MethodTrace:   "TRACE",
	MethodPatch:   "PATCH",
}

// String returns the wire verb, or "Method(n)" for values outside the enumeration.
func (m Method) String() string {
	if m == MethodDeprecatedGetOrPost {
		return "GET_OR_POST"
	}
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "Method(" + strconv.Itoa(int(m)) + ")"
}

// Valid reports whether m is one of the concrete methods or the legacy mode.
func (m Method) Valid() bool {
	_, ok := methodNames[m]
	return ok || m == MethodDeprecatedGetOrPost
}

// HasBody reports whether requests with this method carry a body.
func (m Method) HasBody() bool {
	return m == MethodPost || m == MethodPut || m == MethodPatch
}

// ParseMethod maps an HTTP verb to a Method. Matching is case-insensitive.
func ParseMethod(verb string) (Method, error) {
	v := strings.ToUpper(strings.TrimSpace(verb))
	for m, name := range methodNames {
		if name == v {
			return m, nil
		}
	}
	return 0, errdef.New(errdef.CodeProtocol, "unknown method %q", verb)
}

// ResolveMethod returns the concrete method to send for req and, when the
// method carries one, the body. The legacy GET-or-POST mode becomes POST when
// the request has a body and GET otherwise.
func ResolveMethod(req Request) (Method, []byte, error) {
	m := req.Method()
	switch {
	case m == MethodDeprecatedGetOrPost:
		body, err := requestBody(req)
		if err != nil {
			return 0, nil, err
		}
		if body != nil {
			return MethodPost, body, nil
		}
		return MethodGet, nil, nil
	case !m.Valid():
		return 0, nil, errdef.New(errdef.CodeProtocol, "unknown method type %d", int(m))
	case m.HasBody():
		body, err := requestBody(req)
		if err != nil {
			return 0, nil, err
		}
		return m, body, nil
	default:
		return m, nil, nil
	}
}

func requestBody(req Request) ([]byte, error) {
	body, err := req.Body()
	if err == nil {
		return body, nil
	}
	if errdef.CodeOf(err) != errdef.CodeUnknown {
		return nil, err
	}
	return nil, errdef.Wrap(errdef.CodeAuth, err, "build request body")
}
