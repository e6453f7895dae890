package http

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/net/http2"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

// ConnFactory opens a Conn for a URL. The stack calls it once per request
// attempt; swapping it swaps the HTTP client implementation.
type ConnFactory func(ctx context.Context, u *url.URL) (Conn, error)

// transportSet holds the round trippers one factory uses, keyed by scheme.
// TLS variants are cached per *tls.Config so they keep their connection pools.
type transportSet struct {
	plain    http.RoundTripper
	secure   http.RoundTripper
	withTLS  func(*tls.Config) http.RoundTripper
	variants sync.Map
}

func (s *transportSet) forTLS(cfg *tls.Config) http.RoundTripper {
	if rt, ok := s.variants.Load(cfg); ok {
		return rt.(http.RoundTripper)
	}
	rt, _ := s.variants.LoadOrStore(cfg, s.withTLS(cfg))
	return rt.(http.RoundTripper)
}

func (s *transportSet) open(ctx context.Context, u *url.URL) (Conn, error) {
	switch u.Scheme {
	case "http":
		return newRoundTripConn(ctx, u, s.plain, nil), nil
	case "https":
		return newRoundTripConn(ctx, u, s.secure, s.forTLS), nil
	default:
		return nil, errdef.New(errdef.CodeProtocol, "unsupported scheme: %q", u.Scheme)
	}
}

// NewConnFactory returns the default factory, backed by net/http. A nil
// transport uses a clone of http.DefaultTransport.
func NewConnFactory(transport *http.Transport) ConnFactory {
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	s := &transportSet{
		plain:  transport,
		secure: transport,
		withTLS: func(cfg *tls.Config) http.RoundTripper {
			t := transport.Clone()
			t.TLSClientConfig = cfg
			return t
		},
	}
	return s.open
}

// NewH2ConnFactory returns a factory backed by golang.org/x/net/http2. Plain
// http URLs speak cleartext HTTP/2 with prior knowledge (h2c); https URLs
// negotiate h2 over TLS.
func NewH2ConnFactory() ConnFactory {
	cleartext := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	s := &transportSet{
		plain:  cleartext,
		secure: &http2.Transport{},
		withTLS: func(cfg *tls.Config) http.RoundTripper {
			return &http2.Transport{TLSClientConfig: cfg}
		},
	}
	return s.open
}

// ConnFactoryByName maps a transport name ("default", "h2") to a factory.
func ConnFactoryByName(name string, transport *http.Transport) (ConnFactory, error) {
	switch name {
	case "", "default":
		return NewConnFactory(transport), nil
	case "h2", "http2":
		return NewH2ConnFactory(), nil
	default:
		return nil, errdef.New(errdef.CodeProtocol, "unknown transport %q", name)
	}
}
