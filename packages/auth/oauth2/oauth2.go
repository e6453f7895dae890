// Package oauth2 fetches OAuth2 access tokens through a hurlstack Stack and
// hands them to requests as an http.TokenSource.
package oauth2

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
	"github.com/abdul-hamid-achik/hurlstack/packages/http"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	ClientCredentials GrantType = "client_credentials"
	Password          GrantType = "password"
	RefreshToken      GrantType = "refresh_token"
)

// expirySkew is subtracted from a token's lifetime to absorb clock skew.
const expirySkew = 30 * time.Second

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string // password grant only
	Password     string // password grant only
	GrantType    GrantType
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// expired reports whether t is unusable at now. Tokens without an expiry
// never expire.
func (t *Token) expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(expirySkew).After(t.ExpiresAt)
}

// Provider acquires tokens and keeps the current one until it expires.
// It is safe for concurrent use; concurrent callers share one fetch.
type Provider struct {
	config  *Config
	stack   *http.Stack
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	token *Token
}

type Option func(*Provider)

// WithTimeout bounds each token request. The default is http.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider creates a provider that sends token requests through stack.
// A nil stack uses http.NewStack().
func NewProvider(config *Config, stack *http.Stack, opts ...Option) *Provider {
	if stack == nil {
		stack = http.NewStack()
	}
	p := &Provider{
		config:  config,
		stack:   stack,
		timeout: http.DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a valid access token. It implements http.TokenSource.
func (p *Provider) Token() (string, error) {
	tok, err := p.GetToken(context.Background())
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// GetToken returns the cached token, or fetches a new one when there is
// none or it has expired. An expired token with a refresh token is
// refreshed first, falling back to the configured grant.
func (p *Provider) GetToken(ctx context.Context) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != nil && !p.token.expired(p.now()) {
		return p.token, nil
	}

	if p.token != nil && p.token.RefreshToken != "" {
		tok, err := p.refresh(ctx, p.token.RefreshToken)
		if err == nil {
			p.token = tok
			return tok, nil
		}
		p.logger.Debug("oauth2 refresh failed", "token_url", p.config.TokenURL, "error", err)
	}

	tok, err := p.fetchToken(ctx)
	if err != nil {
		return nil, err
	}
	p.token = tok
	return tok, nil
}

// RefreshAccessToken exchanges refreshToken for a new token and caches it.
func (p *Provider) RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	p.token = tok
	return tok, nil
}

func (p *Provider) refresh(ctx context.Context, refreshToken string) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", string(RefreshToken))
	data.Set("refresh_token", refreshToken)
	return p.doTokenRequest(ctx, data)
}

func (p *Provider) fetchToken(ctx context.Context) (*Token, error) {
	data := url.Values{}
	switch p.config.GrantType {
	case Password:
		data.Set("grant_type", string(Password))
		data.Set("username", p.config.Username)
		data.Set("password", p.config.Password)
	default:
		data.Set("grant_type", string(ClientCredentials))
	}
	if len(p.config.Scopes) > 0 {
		data.Set("scope", strings.Join(p.config.Scopes, " "))
	}
	return p.doTokenRequest(ctx, data)
}

func (p *Provider) doTokenRequest(ctx context.Context, data url.Values) (*Token, error) {
	req := http.NewRequest(http.MethodPost, p.config.TokenURL).
		SetBody([]byte(data.Encode())).
		SetBodyContentType("application/x-www-form-urlencoded").
		SetHeader("Accept", "application/json").
		SetTimeout(p.timeout)
	if p.config.ClientID != "" && p.config.ClientSecret != "" {
		req.SetAuth(&http.AuthConfig{Type: http.AuthBasic, Params: []string{p.config.ClientID, p.config.ClientSecret}})
	}

	resp, err := p.stack.Do(ctx, req)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeAuth, err, "token request to %s", p.config.TokenURL)
	}
	body, err := resp.ReadBody()
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeAuth, err, "read token response")
	}

	if !resp.IsSuccess() {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, errdef.New(errdef.CodeAuth, "token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, errdef.New(errdef.CodeAuth, "token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "parse token response")
	}
	if token.AccessToken == "" {
		return nil, errdef.New(errdef.CodeAuth, "token response has no access_token")
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = p.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	p.logger.Debug("oauth2 token acquired", "token_url", p.config.TokenURL, "expires_in", token.ExpiresIn)
	return &token, nil
}

// ParseParams reads the positional form used on the command line:
//
//	client_credentials tokenUrl clientId clientSecret [scope1,scope2]
//	password tokenUrl clientId clientSecret username password [scope1,scope2]
func ParseParams(params []string) (*Config, error) {
	if len(params) < 4 {
		return nil, errdef.New(errdef.CodeParse, "oauth2 auth requires at least: grant_type tokenUrl clientId clientSecret")
	}

	config := &Config{
		GrantType:    GrantType(params[0]),
		TokenURL:     params[1],
		ClientID:     params[2],
		ClientSecret: params[3],
	}

	switch config.GrantType {
	case ClientCredentials:
		if len(params) > 4 {
			config.Scopes = strings.Split(params[4], ",")
		}
	case Password:
		if len(params) < 6 {
			return nil, errdef.New(errdef.CodeParse, "oauth2 password grant requires: tokenUrl clientId clientSecret username password [scopes]")
		}
		config.Username = params[4]
		config.Password = params[5]
		if len(params) > 6 {
			config.Scopes = strings.Split(params[6], ",")
		}
	default:
		return nil, errdef.New(errdef.CodeParse, "unsupported OAuth2 grant type: %s", config.GrantType)
	}

	return config, nil
}
