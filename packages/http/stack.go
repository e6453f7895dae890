package http

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

const headerContentType = "Content-Type"

// URLRewriter returns the URL to use instead of the given one. Returning
// false blocks the request.
type URLRewriter func(originalURL string) (string, bool)

// Stack executes requests over connections produced by a ConnFactory.
// A Stack holds no per-request state and is safe for concurrent use.
type Stack struct {
	rewriteURL     URLRewriter
	tlsConfig      *tls.Config
	factory        ConnFactory
	defaultHeaders map[string]string
	limiter        *rate.Limiter
	logger         *slog.Logger
	tracer         trace.Tracer
}

type StackOption func(*Stack)

func NewStack(opts ...StackOption) *Stack {
	s := &Stack{
		defaultHeaders: make(map[string]string),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:         noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.factory == nil {
		s.factory = NewConnFactory(nil)
	}
	return s
}

// WithURLRewriter sets the function every request URL passes through before
// a connection is opened.
func WithURLRewriter(rw URLRewriter) StackOption {
	return func(s *Stack) {
		s.rewriteURL = rw
	}
}

// WithTLSConfig sets the TLS configuration used for https connections.
func WithTLSConfig(cfg *tls.Config) StackOption {
	return func(s *Stack) {
		s.tlsConfig = cfg
	}
}

// WithConnFactory replaces the connection implementation.
func WithConnFactory(f ConnFactory) StackOption {
	return func(s *Stack) {
		s.factory = f
	}
}

// WithDefaultHeaders sets headers sent with every request. Both the
// additional headers of a call and the request's own headers override them.
func WithDefaultHeaders(headers map[string]string) StackOption {
	return func(s *Stack) {
		for k, v := range headers {
			s.defaultHeaders[k] = v
		}
	}
}

// WithRateLimit caps how many connections per second the stack opens.
// A value of 0 or less disables the limit.
func WithRateLimit(rps float64) StackOption {
	return func(s *Stack) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func WithLogger(logger *slog.Logger) StackOption {
	return func(s *Stack) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer records one client span per executed request. The span ends
// once the status line and headers are in.
func WithTracer(tracer trace.Tracer) StackOption {
	return func(s *Stack) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// ExecuteRequest performs req and returns its response. additionalHeaders
// (typically cache validators) are sent unless the request sets the same
// header itself.
//
// When the response has a body, the returned Response owns the connection
// until Body is closed. Otherwise the connection is already released.
func (s *Stack) ExecuteRequest(ctx context.Context, req Request, additionalHeaders map[string]string) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "hurlstack.request", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	resp, err := s.executeRequest(ctx, req, additionalHeaders)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", string(errdef.CodeOf(err))))
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (s *Stack) executeRequest(ctx context.Context, req Request, additionalHeaders map[string]string) (*Response, error) {
	span := trace.SpanFromContext(ctx)

	method, body, err := ResolveMethod(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("http.request.method", method.String()))

	reqHeaders, err := req.Headers()
	if err != nil {
		return nil, asCode(errdef.CodeAuth, err, "build request headers")
	}
	headers := mergeHeaders(mergeHeaders(s.defaultHeaders, additionalHeaders), reqHeaders)

	rawURL := req.URL()
	if s.rewriteURL != nil {
		rewritten, ok := s.rewriteURL(rawURL)
		if !ok {
			return nil, errdef.New(errdef.CodePolicy, "URL blocked by rewriter: %s", rawURL)
		}
		rawURL = rewritten
	}
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("url.full", u.Redacted()))

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, errdef.Wrap(errdef.CodeIO, err, "rate limiter")
		}
	}

	conn, err := s.openConnection(ctx, u, req)
	if err != nil {
		return nil, err
	}
	keepConnectionOpen := false
	defer func() {
		if !keepConnectionOpen {
			conn.Disconnect()
			s.logger.Debug("connection released", "url", u.Redacted())
		}
	}()

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		conn.SetRequestProperty(name, headers[name])
	}

	if err := s.setConnectionParametersForRequest(conn, method, body, req.BodyContentType()); err != nil {
		return nil, err
	}

	code, err := conn.ResponseCode()
	if err != nil {
		return nil, asCode(errdef.CodeIO, err, "read response code")
	}
	if code == -1 {
		return nil, errdef.New(errdef.CodeIO, "could not retrieve response code from connection")
	}
	s.logger.Debug("response received", "method", method.String(), "url", u.Redacted(), "status", code)
	span.SetAttributes(attribute.Int("http.response.status_code", code))

	respHeaders := ConvertHeaders(conn.HeaderFields())
	if !hasResponseBody(method, code) {
		return &Response{StatusCode: code, Headers: respHeaders, ContentLength: -1}, nil
	}

	stream, err := conn.InputStream()
	if err != nil {
		return nil, asCode(errdef.CodeIO, err, "open response body")
	}
	keepConnectionOpen = true
	return &Response{
		StatusCode:    code,
		Headers:       respHeaders,
		ContentLength: conn.ContentLength(),
		Body:          &connStream{ReadCloser: stream, conn: conn},
	}, nil
}

// Do executes req with no additional headers.
func (s *Stack) Do(ctx context.Context, req Request) (*Response, error) {
	return s.ExecuteRequest(ctx, req, nil)
}

func (s *Stack) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return s.Do(ctx, newSimpleRequest(MethodGet, url, nil, headers))
}

func (s *Stack) Post(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error) {
	return s.Do(ctx, newSimpleRequest(MethodPost, url, body, headers))
}

func (s *Stack) Put(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error) {
	return s.Do(ctx, newSimpleRequest(MethodPut, url, body, headers))
}

func (s *Stack) Patch(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error) {
	return s.Do(ctx, newSimpleRequest(MethodPatch, url, body, headers))
}

func (s *Stack) Delete(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return s.Do(ctx, newSimpleRequest(MethodDelete, url, nil, headers))
}

func newSimpleRequest(method Method, url string, body []byte, headers map[string]string) *BasicRequest {
	r := NewRequest(method, url).SetBody(body)
	for k, v := range headers {
		r.SetHeader(k, v)
	}
	return r
}

func (s *Stack) openConnection(ctx context.Context, u *url.URL, req Request) (Conn, error) {
	conn, err := s.factory(ctx, u)
	if err != nil {
		return nil, asCode(errdef.CodeIO, err, "open connection")
	}

	timeout := req.Timeout()
	conn.SetConnectTimeout(timeout)
	conn.SetReadTimeout(timeout)
	conn.SetUseCaches(false)
	conn.SetDoInput(true)

	if u.Scheme == "https" && s.tlsConfig != nil {
		sc, ok := conn.(SecureConn)
		if !ok {
			conn.Disconnect()
			return nil, errdef.New(errdef.CodeProtocol, "connection for %s does not accept a TLS configuration", u.Redacted())
		}
		sc.SetTLSConfig(s.tlsConfig)
	}
	s.logger.Debug("connection opened", "url", u.Redacted(), "timeout", timeout)
	return conn, nil
}

func (s *Stack) setConnectionParametersForRequest(conn Conn, method Method, body []byte, contentType string) error {
	if err := conn.SetRequestMethod(method.String()); err != nil {
		return asCode(errdef.CodeProtocol, err, "set request method")
	}
	if method.HasBody() && body != nil {
		return s.addBody(conn, body, contentType)
	}
	return nil
}

func (s *Stack) addBody(conn Conn, body []byte, contentType string) error {
	conn.SetDoOutput(true)
	if _, ok := conn.RequestProperty(headerContentType); !ok {
		conn.SetRequestProperty(headerContentType, contentType)
	}

	out, err := conn.OutputStream()
	if err != nil {
		return asCode(errdef.CodeIO, err, "open request body")
	}
	if _, err := out.Write(body); err != nil {
		out.Close()
		return errdef.Wrap(errdef.CodeIO, err, "write request body")
	}
	if err := out.Close(); err != nil {
		return errdef.Wrap(errdef.CodeIO, err, "close request body")
	}
	s.logger.Debug("request body written", "bytes", len(body))
	return nil
}

// hasResponseBody follows RFC 9112 section 6.3: responses to HEAD and 1xx,
// 204 and 304 responses never carry a body.
func hasResponseBody(method Method, code int) bool {
	return method != MethodHead &&
		!(100 <= code && code < 200) &&
		code != 204 &&
		code != 304
}

// connStream releases its connection when closed.
type connStream struct {
	io.ReadCloser
	conn Conn
	once sync.Once
	err  error
}

func (s *connStream) Close() error {
	s.once.Do(func() {
		s.err = s.ReadCloser.Close()
		s.conn.Disconnect()
	})
	return s.err
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodePolicy, err, "invalid URL")
	}
	if u.Host == "" {
		return nil, errdef.New(errdef.CodePolicy, "URL must have a host: %s", rawURL)
	}
	return u, nil
}

// asCode keeps an existing error code and otherwise wraps err with code.
func asCode(code errdef.Code, err error, msg string) error {
	if errdef.CodeOf(err) != errdef.CodeUnknown {
		return err
	}
	return errdef.Wrap(code, err, "%s", msg)
}
