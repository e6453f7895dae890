package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hurlstack/packages/core/config"
	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
	hshttp "github.com/abdul-hamid-achik/hurlstack/packages/http"
	"github.com/abdul-hamid-achik/hurlstack/packages/output"
)

func resetFlags() {
	configFlag, timeoutFlag, transportFlag, proxyFlag = "", "", "", ""
	insecureFlag, quietFlag, noColorFlag, failFlag = false, false, true, false
	rateFlag = 0
	headerFlags, captureFlags = nil, nil
	verboseFlag = 0
	outputFlag = "json"
	fetchMethod, fetchData, fetchContentType, fetchUser, fetchBearer, fetchOAuth2 = "", "", "", "", "", ""
	uploadMethod = "POST"
	forceInit = false
}

// runCLI executes the root command with an empty config file so the
// working directory's config is never picked up.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	cfgPath := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{}`), 0o644))

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func decodeOutput(t *testing.T, out string) output.JSONOutput {
	t.Helper()
	var result output.JSONOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	return result
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"status", &statusError{code: 500}, ExitHTTPFailure},
		{"parse", errdef.New(errdef.CodeParse, "bad"), ExitParseError},
		{"protocol", errdef.New(errdef.CodeProtocol, "bad"), ExitConfigError},
		{"io", errdef.New(errdef.CodeIO, "bad"), ExitNetworkError},
		{"auth", errdef.New(errdef.CodeAuth, "bad"), ExitAuthError},
		{"resource", errdef.New(errdef.CodeResource, "bad"), ExitResourceError},
		{"policy", errdef.New(errdef.CodePolicy, "bad"), ExitPolicyError},
		{"plain", errors.New("unknown flag"), ExitUsageError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"Accept: text/plain", "X-Empty:", "X-Colon: a:b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Accept": "text/plain", "X-Empty": "", "X-Colon": "a:b"}, headers)

	for _, bad := range []string{"NoColon", ": value"} {
		_, err := parseHeaders([]string{bad})
		assert.Equal(t, errdef.CodeParse, errdef.CodeOf(err), bad)
	}
}

func TestParseFileArg(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	entry, err := parseFileArg(path)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", entry.Name)
	assert.Equal(t, hshttp.FilePath(path), entry.Source)

	entry, err = parseFileArg("doc=" + path)
	require.NoError(t, err)
	assert.Equal(t, "doc", entry.Name)

	_, err = parseFileArg("=" + path)
	assert.Equal(t, errdef.CodeParse, errdef.CodeOf(err))
	_, err = parseFileArg(filepath.Join(dir, "missing.txt"))
	assert.Equal(t, errdef.CodeResource, errdef.CodeOf(err))
	_, err = parseFileArg(dir)
	assert.Equal(t, errdef.CodeResource, errdef.CodeOf(err))
}

func TestReadDataFlag(t *testing.T) {
	body, err := readDataFlag("")
	require.NoError(t, err)
	assert.Nil(t, body)

	body, err = readDataFlag("a=1")
	require.NoError(t, err)
	assert.Equal(t, "a=1", string(body))

	path := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":1}`), 0o644))
	body, err = readDataFlag("@" + path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))

	_, err = readDataFlag("@" + path + ".missing")
	assert.Equal(t, errdef.CodeResource, errdef.CodeOf(err))
}

func TestAuthFromFlags(t *testing.T) {
	auth, err := authFromFlags("", "")
	require.NoError(t, err)
	assert.Nil(t, auth)

	auth, err = authFromFlags("alice:s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, &hshttp.AuthConfig{Type: hshttp.AuthBasic, Params: []string{"alice", "s3cret"}}, auth)

	auth, err = authFromFlags("", "tok")
	require.NoError(t, err)
	assert.Equal(t, &hshttp.AuthConfig{Type: hshttp.AuthBearer, Params: []string{"tok"}}, auth)

	_, err = authFromFlags("a:b", "tok")
	assert.Equal(t, errdef.CodeParse, errdef.CodeOf(err))
}

func TestParseMethodFlag(t *testing.T) {
	m, err := parseMethodFlag("")
	require.NoError(t, err)
	assert.Equal(t, hshttp.MethodDeprecatedGetOrPost, m)

	m, err = parseMethodFlag("patch")
	require.NoError(t, err)
	assert.Equal(t, hshttp.MethodPatch, m)

	_, err = parseMethodFlag("BREW")
	assert.Error(t, err)
}

func TestFetchCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Trace", r.Header.Get("X-Trace"))
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":7}}`))
	}))
	defer server.Close()

	t.Run("get with captures", func(t *testing.T) {
		out, err := runCLI(t, "fetch", "-H", "X-Trace: abc", "-c", "id=body:data.id", "-c", "header:X-Trace", server.URL+"/items")
		require.NoError(t, err)

		result := decodeOutput(t, out)
		require.Len(t, result.Requests, 1)
		req := result.Requests[0]
		assert.Equal(t, "GET", req.Method)
		require.NotNil(t, req.Response)
		assert.Equal(t, 200, req.Response.StatusCode)
		assert.Equal(t, []string{"GET"}, req.Response.Headers["X-Method"])
		assert.EqualValues(t, 7, req.Captures["id"])
		assert.Equal(t, "abc", req.Captures["X-Trace"])
	})

	t.Run("data switches to post", func(t *testing.T) {
		out, err := runCLI(t, "fetch", "-d", "a=1", server.URL)
		require.NoError(t, err)
		result := decodeOutput(t, out)
		require.Len(t, result.Requests, 1)
		assert.Equal(t, "POST", result.Requests[0].Method)
		assert.Equal(t, []string{"POST"}, result.Requests[0].Response.Headers["X-Method"])
	})

	t.Run("fail on non-2xx", func(t *testing.T) {
		out, err := runCLI(t, "fetch", "--fail", server.URL+"/missing", server.URL)
		require.Error(t, err)
		assert.Equal(t, ExitHTTPFailure, exitCodeFor(err))
		assert.Len(t, decodeOutput(t, out).Requests, 2)
	})

	t.Run("oauth2 with bearer", func(t *testing.T) {
		_, err := runCLI(t, "fetch", "--bearer", "x", "--oauth2", "client_credentials http://auth/token id secret", server.URL)
		assert.Equal(t, ExitParseError, exitCodeFor(err))
	})

	t.Run("oauth2 token failure", func(t *testing.T) {
		out, err := runCLI(t, "fetch", "--oauth2", "client_credentials "+server.URL+"/missing id secret", server.URL)
		assert.Equal(t, ExitAuthError, exitCodeFor(err))
		result := decodeOutput(t, out)
		require.Len(t, result.Requests, 1)
		assert.Equal(t, "auth", result.Requests[0].ErrorCode)
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := runCLI(t, "fetch", "-X", "BREW", server.URL)
		assert.Equal(t, ExitConfigError, exitCodeFor(err))
	})

	t.Run("bad timeout", func(t *testing.T) {
		_, err := runCLI(t, "--timeout", "soon", "fetch", server.URL)
		assert.Equal(t, ExitParseError, exitCodeFor(err))
	})
}

func TestUploadCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		parts := r.MultipartForm.File["media"]
		files := make([]string, 0, len(parts))
		for _, part := range parts {
			files = append(files, part.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"fields": len(r.MultipartForm.File),
			"count":  len(files),
			"files":  files,
		})
	}))
	defer server.Close()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("beta"), 0o644))

	out, err := runCLI(t, "upload", "-c", "fields", "-c", "count", "-c", "files", server.URL, a, "second="+b)
	require.NoError(t, err)

	result := decodeOutput(t, out)
	require.Len(t, result.Requests, 1)
	assert.Equal(t, "POST", result.Requests[0].Method)
	assert.Equal(t, 200, result.Requests[0].Response.StatusCode)
	captures := result.Requests[0].Captures
	assert.EqualValues(t, 1, captures["fields"], "every part shares the media field")
	assert.EqualValues(t, 2, captures["count"])
	assert.Equal(t, []any{"a.txt", "second"}, captures["files"])

	_, err = runCLI(t, "upload", server.URL, filepath.Join(dir, "missing.txt"))
	assert.Equal(t, ExitResourceError, exitCodeFor(err))
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, "init", dir)
	require.NoError(t, err)

	cfg, err := config.LoadConfig(filepath.Join(dir, ".hurlstack.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2500, cfg.Timeout)
	assert.Equal(t, "hurlstack/"+version, cfg.Headers["User-Agent"])

	_, err = runCLI(t, "init", dir)
	assert.Equal(t, ExitResourceError, exitCodeFor(err))

	_, err = runCLI(t, "init", dir, "--force")
	assert.NoError(t, err)
}
