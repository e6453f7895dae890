package http

import (
	"encoding/base64"
	"net/url"
	"time"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

const (
	// DefaultTimeout is the connect and read timeout used when a request sets none
	DefaultTimeout = 2500 * time.Millisecond
	// DefaultBodyContentType is the content type of a raw request body
	DefaultBodyContentType = "application/x-www-form-urlencoded; charset=UTF-8"
)

// Request is what the stack needs to know to execute a single attempt.
// Implementations must not change between calls during one execution.
type Request interface {
	Method() Method
	URL() string
	// Headers returns the request-specific headers. They win over any
	// additional headers passed to the stack. An error here is an auth failure.
	Headers() (map[string]string, error)
	Timeout() time.Duration
	// Body returns the raw body, or nil when there is none.
	Body() ([]byte, error)
	BodyContentType() string
}

type AuthType int

const (
	AuthNone AuthType = iota
	AuthBasic
	AuthBearer
	AuthAPIKey
	AuthAPIKeyQuery
	AuthAWS
	AuthOAuth2
)

// TokenSource supplies bearer tokens for AuthOAuth2 requests.
type TokenSource interface {
	Token() (string, error)
}

// AuthConfig describes how to authenticate a BasicRequest. Params are
// positional: basic (user, password), bearer (token), api key (name, value),
// aws (access key, secret key, region, service). AuthOAuth2 uses Source.
type AuthConfig struct {
	Type   AuthType
	Params []string
	Source TokenSource
}

// BasicRequest is a Request with a raw byte body.
type BasicRequest struct {
	method      Method
	url         string
	headers     map[string]string
	queryParams map[string]string
	body        []byte
	contentType string
	timeout     time.Duration
	auth        *AuthConfig
	now         func() time.Time
}

func NewRequest(method Method, requestURL string) *BasicRequest {
	return &BasicRequest{
		method:      method,
		url:         requestURL,
		headers:     make(map[string]string),
		queryParams: make(map[string]string),
		contentType: DefaultBodyContentType,
		timeout:     DefaultTimeout,
		now:         time.Now,
	}
}

func (r *BasicRequest) SetHeader(key, value string) *BasicRequest {
	r.headers[key] = value
	return r
}

func (r *BasicRequest) SetBody(body []byte) *BasicRequest {
	r.body = body
	return r
}

func (r *BasicRequest) SetBodyContentType(contentType string) *BasicRequest {
	r.contentType = contentType
	return r
}

func (r *BasicRequest) SetTimeout(d time.Duration) *BasicRequest {
	r.timeout = d
	return r
}

func (r *BasicRequest) SetQueryParam(key, value string) *BasicRequest {
	r.queryParams[key] = value
	return r
}

func (r *BasicRequest) SetAuth(auth *AuthConfig) *BasicRequest {
	r.auth = auth
	return r
}

func (r *BasicRequest) Method() Method { return r.method }

func (r *BasicRequest) Timeout() time.Duration { return r.timeout }

func (r *BasicRequest) Body() ([]byte, error) { return r.body, nil }

func (r *BasicRequest) BodyContentType() string { return r.contentType }

// URL returns the request URL with query parameters (and a query api key) applied.
func (r *BasicRequest) URL() string {
	params := r.queryParams
	if r.auth != nil && r.auth.Type == AuthAPIKeyQuery && len(r.auth.Params) >= 2 {
		params = make(map[string]string, len(r.queryParams)+1)
		for k, v := range r.queryParams {
			params[k] = v
		}
		params[r.auth.Params[0]] = r.auth.Params[1]
	}
	if len(params) == 0 {
		return r.url
	}

	u, err := url.Parse(r.url)
	if err != nil {
		return r.url
	}

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Headers returns a copy of the request headers with authentication applied.
func (r *BasicRequest) Headers() (map[string]string, error) {
	headers := make(map[string]string, len(r.headers)+1)
	for k, v := range r.headers {
		headers[k] = v
	}
	if err := r.applyAuth(headers); err != nil {
		return nil, err
	}
	return headers, nil
}

func (r *BasicRequest) applyAuth(headers map[string]string) error {
	if r.auth == nil {
		return nil
	}

	p := r.auth.Params
	switch r.auth.Type {
	case AuthNone:
	case AuthBasic:
		if len(p) < 2 {
			return errdef.New(errdef.CodeAuth, "basic auth requires username and password")
		}
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(p[0]+":"+p[1]))
	case AuthBearer:
		if len(p) < 1 || p[0] == "" {
			return errdef.New(errdef.CodeAuth, "bearer auth requires a token")
		}
		headers["Authorization"] = "Bearer " + p[0]
	case AuthAPIKey:
		if len(p) < 2 || p[0] == "" {
			return errdef.New(errdef.CodeAuth, "api key auth requires a header name and value")
		}
		headers[p[0]] = p[1]
	case AuthAPIKeyQuery:
		if len(p) < 2 || p[0] == "" {
			return errdef.New(errdef.CodeAuth, "api key auth requires a parameter name and value")
		}
	case AuthAWS:
		if len(p) < 4 {
			return errdef.New(errdef.CodeAuth, "aws auth requires access key, secret key, region and service")
		}
		creds := AWSCredentials{AccessKey: p[0], SecretKey: p[1], Region: p[2], Service: p[3]}
		method, body, err := ResolveMethod(r)
		if err != nil {
			return err
		}
		signed, err := SignAWS(method.String(), r.URL(), body, creds, r.now())
		if err != nil {
			return err
		}
		for k, v := range signed {
			headers[k] = v
		}
	case AuthOAuth2:
		if r.auth.Source == nil {
			return errdef.New(errdef.CodeAuth, "oauth2 auth requires a token source")
		}
		token, err := r.auth.Source.Token()
		if err != nil {
			return errdef.Wrap(errdef.CodeAuth, err, "oauth2 token")
		}
		headers["Authorization"] = "Bearer " + token
	default:
		return errdef.New(errdef.CodeAuth, "unknown auth type %d", int(r.auth.Type))
	}
	return nil
}
