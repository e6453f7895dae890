package oauth2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
	hshttp "github.com/abdul-hamid-achik/hurlstack/packages/http"
)

// tokenServer answers token requests with body and counts them. It records
// the form of the last request.
func tokenServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32, *http.Request) {
	t.Helper()
	var calls atomic.Int32
	last := &http.Request{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*last = *r
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls, last
}

func TestProvider_ClientCredentials(t *testing.T) {
	server, calls, last := tokenServer(t, http.StatusOK, `{"access_token":"abc","token_type":"bearer","expires_in":3600}`)

	p := NewProvider(&Config{
		TokenURL:     server.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		Scopes:       []string{"read", "write"},
		GrantType:    ClientCredentials,
	}, nil)

	tok, err := p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.False(t, tok.ExpiresAt.IsZero())

	assert.Equal(t, "POST", last.Method)
	assert.Equal(t, "client_credentials", last.PostForm.Get("grant_type"))
	assert.Equal(t, "read write", last.PostForm.Get("scope"))
	user, pass, ok := last.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "id", user)
	assert.Equal(t, "secret", pass)

	again, err := p.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", again)
	assert.EqualValues(t, 1, calls.Load(), "cached token is reused")
}

func TestProvider_PasswordGrant(t *testing.T) {
	server, _, last := tokenServer(t, http.StatusOK, `{"access_token":"pw"}`)

	p := NewProvider(&Config{
		TokenURL:  server.URL,
		GrantType: Password,
		Username:  "alice",
		Password:  "s3cret",
	}, hshttp.NewStack())

	tok, err := p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pw", tok.AccessToken)
	assert.True(t, tok.ExpiresAt.IsZero())
	assert.Equal(t, "password", last.PostForm.Get("grant_type"))
	assert.Equal(t, "alice", last.PostForm.Get("username"))
	assert.Equal(t, "s3cret", last.PostForm.Get("password"))
	_, _, ok := last.BasicAuth()
	assert.False(t, ok, "no client credentials configured")
}

func TestProvider_ExpiredTokenIsRefreshed(t *testing.T) {
	server, calls, last := tokenServer(t, http.StatusOK, `{"access_token":"t","expires_in":60,"refresh_token":"r1"}`)

	p := NewProvider(&Config{TokenURL: server.URL, GrantType: ClientCredentials}, nil)
	now := time.Now()
	p.now = func() time.Time { return now }

	_, err := p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "client_credentials", last.PostForm.Get("grant_type"))

	now = now.Add(45 * time.Second) // inside the skew window
	_, err = p.GetToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, "refresh_token", last.PostForm.Get("grant_type"))
	assert.Equal(t, "r1", last.PostForm.Get("refresh_token"))
}

func TestProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		code    errdef.Code
		message string
	}{
		{"oauth error body", http.StatusUnauthorized, `{"error":"invalid_client","error_description":"bad secret"}`, errdef.CodeAuth, "invalid_client - bad secret"},
		{"plain error body", http.StatusInternalServerError, `boom`, errdef.CodeAuth, "status 500"},
		{"missing access token", http.StatusOK, `{"token_type":"bearer"}`, errdef.CodeAuth, "no access_token"},
		{"invalid json", http.StatusOK, `<html>`, errdef.CodeParse, "parse token response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _, _ := tokenServer(t, tt.status, tt.body)
			p := NewProvider(&Config{TokenURL: server.URL}, nil)

			_, err := p.Token()
			require.Error(t, err)
			assert.Equal(t, tt.code, errdef.CodeOf(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestProvider_UnreachableTokenURL(t *testing.T) {
	p := NewProvider(&Config{TokenURL: "http://127.0.0.1:1/token"}, nil, WithTimeout(time.Second))
	_, err := p.Token()
	require.Error(t, err)
	assert.Equal(t, errdef.CodeAuth, errdef.CodeOf(err))
}

func TestProvider_AsRequestTokenSource(t *testing.T) {
	tokens, _, _ := tokenServer(t, http.StatusOK, `{"access_token":"api-token"}`)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer api-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer api.Close()

	stack := hshttp.NewStack()
	provider := NewProvider(&Config{TokenURL: tokens.URL}, stack)

	req := hshttp.NewRequest(hshttp.MethodGet, api.URL).
		SetAuth(&hshttp.AuthConfig{Type: hshttp.AuthOAuth2, Source: provider})
	resp, err := stack.Do(context.Background(), req)
	require.NoError(t, err)
	body, err := resp.ReadBody()
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestParseParams(t *testing.T) {
	cfg, err := ParseParams([]string{"client_credentials", "https://auth/token", "id", "secret", "a,b"})
	require.NoError(t, err)
	assert.Equal(t, &Config{
		GrantType:    ClientCredentials,
		TokenURL:     "https://auth/token",
		ClientID:     "id",
		ClientSecret: "secret",
		Scopes:       []string{"a", "b"},
	}, cfg)

	cfg, err = ParseParams([]string{"password", "https://auth/token", "id", "secret", "alice", "pw"})
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "pw", cfg.Password)
	assert.Nil(t, cfg.Scopes)

	for _, bad := range [][]string{
		{"client_credentials", "url", "id"},
		{"password", "url", "id", "secret", "alice"},
		{"implicit", "url", "id", "secret"},
	} {
		_, err := ParseParams(bad)
		assert.Equal(t, errdef.CodeParse, errdef.CodeOf(err), bad)
	}
}
