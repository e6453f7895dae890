package config

import (
	"log/slog"
	nethttp "net/http"
	"net/url"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
	"github.com/abdul-hamid-achik/hurlstack/packages/http"
	"github.com/abdul-hamid-achik/hurlstack/packages/rewrite"
	"github.com/abdul-hamid-achik/hurlstack/packages/tlsconfig"
)

// NewStack builds an http.Stack from cfg. Relative TLS file paths are
// resolved against baseDir. A nil logger discards. extra options are applied
// last.
func NewStack(cfg *Config, baseDir string, logger *slog.Logger, extra ...http.StackOption) (*http.Stack, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factory, err := connFactory(cfg)
	if err != nil {
		return nil, err
	}

	opts := []http.StackOption{
		http.WithConnFactory(factory),
		http.WithDefaultHeaders(cfg.Headers),
		http.WithRateLimit(cfg.RateLimit),
		http.WithLogger(logger),
	}

	files := cfg.TLS
	if !cfg.GetValidateSSL() {
		files.Insecure = true
	}
	if !files.Empty() {
		tc, err := tlsconfig.Build(files, baseDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, http.WithTLSConfig(tc))
	}

	if !cfg.Rewrite.Empty() {
		rw := rewrite.New(cfg.Rewrite, rewrite.WithLogger(logger))
		opts = append(opts, http.WithURLRewriter(rw.Rewrite))
	}

	return http.NewStack(append(opts, extra...)...), nil
}

// connFactory picks the connection backend. The proxy setting only applies
// to the default transport.
func connFactory(cfg *Config) (http.ConnFactory, error) {
	var transport *nethttp.Transport
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil || proxyURL.Host == "" {
			return nil, errdef.New(errdef.CodeParse, "invalid proxy URL %q", cfg.Proxy)
		}
		transport = nethttp.DefaultTransport.(*nethttp.Transport).Clone()
		transport.Proxy = nethttp.ProxyURL(proxyURL)
	}
	return http.ConnFactoryByName(cfg.Transport, transport)
}
