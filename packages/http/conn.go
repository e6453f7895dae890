package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

// Conn is one request/response exchange with a server. It is configured
// first, then the first call to ResponseCode, HeaderFields, ContentLength or
// InputStream performs the exchange. A Conn is used once and must be
// released with Disconnect.
type Conn interface {
	URL() *url.URL
	SetConnectTimeout(d time.Duration)
	SetReadTimeout(d time.Duration)
	SetUseCaches(use bool)
	SetDoInput(in bool)
	SetDoOutput(out bool)
	SetRequestMethod(method string) error
	SetRequestProperty(name, value string)
	RequestProperty(name string) (string, bool)
	// OutputStream returns the request body sink. Output must be enabled.
	OutputStream() (io.WriteCloser, error)
	// ResponseCode returns the status code, or -1 when the transport did not
	// produce a valid one.
	ResponseCode() (int, error)
	// HeaderFields returns the response headers. The status line is reported
	// under the empty name.
	HeaderFields() map[string][]string
	ContentLength() int64
	InputStream() (io.ReadCloser, error)
	Disconnect()
}

// SecureConn is a Conn to an https URL that accepts a custom TLS configuration.
type SecureConn interface {
	Conn
	SetTLSConfig(cfg *tls.Config)
}

// roundTripConn implements SecureConn on top of an http.RoundTripper.
type roundTripConn struct {
	ctx     context.Context
	u       *url.URL
	rt      http.RoundTripper
	withTLS func(*tls.Config) http.RoundTripper

	method         string
	header         http.Header
	connectTimeout time.Duration
	readTimeout    time.Duration
	useCaches      bool
	doInput        bool
	doOutput       bool
	body           *bytes.Buffer

	connected bool
	resp      *http.Response
	err       error
	cancel    context.CancelFunc
	timer     *time.Timer
	once      sync.Once
}

func newRoundTripConn(ctx context.Context, u *url.URL, rt http.RoundTripper, withTLS func(*tls.Config) http.RoundTripper) *roundTripConn {
	return &roundTripConn{
		ctx:     ctx,
		u:       u,
		rt:      rt,
		withTLS: withTLS,
		method:  http.MethodGet,
		header:  make(http.Header),
		doInput: true,
	}
}

func (c *roundTripConn) URL() *url.URL { return c.u }

func (c *roundTripConn) SetConnectTimeout(d time.Duration) { c.connectTimeout = d }

func (c *roundTripConn) SetReadTimeout(d time.Duration) { c.readTimeout = d }

// SetUseCaches is recorded only: net/http transports keep no response cache.
func (c *roundTripConn) SetUseCaches(use bool) { c.useCaches = use }

func (c *roundTripConn) SetDoInput(in bool) { c.doInput = in }

func (c *roundTripConn) SetDoOutput(out bool) { c.doOutput = out }

func (c *roundTripConn) SetTLSConfig(cfg *tls.Config) {
	if c.withTLS != nil && cfg != nil {
		c.rt = c.withTLS(cfg)
	}
}

func (c *roundTripConn) SetRequestMethod(method string) error {
	if c.connected {
		return errdef.New(errdef.CodeProtocol, "cannot set method after connecting")
	}
	if method == "" {
		return errdef.New(errdef.CodeProtocol, "empty request method")
	}
	c.method = method
	return nil
}

func (c *roundTripConn) SetRequestProperty(name, value string) {
	c.header.Set(name, value)
}

func (c *roundTripConn) RequestProperty(name string) (string, bool) {
	values, ok := c.header[http.CanonicalHeaderKey(name)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

type bodyWriter struct {
	*bytes.Buffer
}

func (bodyWriter) Close() error { return nil }

func (c *roundTripConn) OutputStream() (io.WriteCloser, error) {
	if !c.doOutput {
		return nil, errdef.New(errdef.CodeProtocol, "output not enabled on connection")
	}
	if c.connected {
		return nil, errdef.New(errdef.CodeProtocol, "cannot write request body after connecting")
	}
	if c.body == nil {
		c.body = &bytes.Buffer{}
	}
	return bodyWriter{c.body}, nil
}

func (c *roundTripConn) connect() error {
	if c.connected {
		return c.err
	}
	c.connected = true

	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel

	var body io.Reader
	if c.body != nil {
		body = bytes.NewReader(c.body.Bytes())
	}
	req, err := http.NewRequestWithContext(ctx, c.method, c.u.String(), body)
	if err != nil {
		c.err = errdef.Wrap(errdef.CodeIO, err, "build request")
		return c.err
	}
	req.Header = c.header.Clone()
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
		req.Header.Del("Host")
	}

	if d := c.connectTimeout + c.readTimeout; d > 0 {
		c.timer = time.AfterFunc(d, cancel)
	}
	client := &http.Client{Transport: c.rt}
	resp, err := client.Do(req)
	if c.timer != nil {
		c.timer.Stop()
	}
	if err != nil {
		c.err = errdef.Wrap(errdef.CodeIO, err, "%s %s", c.method, c.u.Redacted())
		return c.err
	}
	c.resp = resp
	return nil
}

func (c *roundTripConn) ResponseCode() (int, error) {
	if err := c.connect(); err != nil {
		return -1, err
	}
	if c.resp.StatusCode < 100 || c.resp.StatusCode > 999 {
		return -1, nil
	}
	return c.resp.StatusCode, nil
}

func (c *roundTripConn) HeaderFields() map[string][]string {
	if err := c.connect(); err != nil {
		return map[string][]string{}
	}
	fields := make(map[string][]string, len(c.resp.Header)+1)
	for k, v := range c.resp.Header {
		fields[k] = append([]string(nil), v...)
	}
	fields[""] = []string{c.resp.Proto + " " + c.resp.Status}
	return fields
}

func (c *roundTripConn) ContentLength() int64 {
	if err := c.connect(); err != nil {
		return -1
	}
	return c.resp.ContentLength
}

func (c *roundTripConn) InputStream() (io.ReadCloser, error) {
	if !c.doInput {
		return nil, errdef.New(errdef.CodeProtocol, "input not enabled on connection")
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	if c.readTimeout <= 0 {
		return c.resp.Body, nil
	}
	return &idleTimeoutReader{rc: c.resp.Body, timeout: c.readTimeout, cancel: c.cancel}, nil
}

// Disconnect closes the response body and cancels the exchange. It is safe
// to call more than once.
func (c *roundTripConn) Disconnect() {
	c.once.Do(func() {
		if c.timer != nil {
			c.timer.Stop()
		}
		if c.resp != nil {
			c.resp.Body.Close()
		}
		if c.cancel != nil {
			c.cancel()
		}
	})
}

// idleTimeoutReader cancels the exchange when a single Read blocks longer
// than timeout.
type idleTimeoutReader struct {
	rc      io.ReadCloser
	timeout time.Duration
	cancel  context.CancelFunc
	timer   *time.Timer
}

func (r *idleTimeoutReader) Read(p []byte) (int, error) {
	if r.timer == nil {
		r.timer = time.AfterFunc(r.timeout, r.cancel)
	} else {
		r.timer.Reset(r.timeout)
	}
	n, err := r.rc.Read(p)
	r.timer.Stop()
	return n, err
}

func (r *idleTimeoutReader) Close() error {
	if r.timer != nil {
		r.timer.Stop()
	}
	return r.rc.Close()
}
