package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hurlstack/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
	"github.com/abdul-hamid-achik/hurlstack/packages/http"
)

var (
	fetchMethod      string
	fetchData        string
	fetchContentType string
	fetchUser        string
	fetchBearer      string
	fetchOAuth2      string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>...",
	Short: "Send a request to one or more URLs",
	Long: heredoc.Doc(`
		Send a request to each URL through the configured stack.

		Without -X the request is a GET, or a POST when --data is given.

		Examples:
		  hurlstack fetch https://api.example.com/health
		  hurlstack fetch -X PUT -d @item.json --content-type application/json https://api.example.com/items/1
		  hurlstack fetch -c id=body:data.id -c header:ETag https://api.example.com/items/1
		  hurlstack fetch --fail -o json https://a.example.com https://b.example.com
		  hurlstack fetch --oauth2 "client_credentials https://auth.example.com/token id secret read" https://api.example.com/me
	`),
	Args: cobra.MinimumNArgs(1),
	RunE: fetchCommand,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchMethod, "method", "X", "", "Request method (default GET, or POST with --data)")
	fetchCmd.Flags().StringVarP(&fetchData, "data", "d", "", "Request body; @file reads it from a file")
	fetchCmd.Flags().StringVar(&fetchContentType, "content-type", "", "Body content type (default "+http.DefaultBodyContentType+")")
	fetchCmd.Flags().StringVarP(&fetchUser, "user", "u", "", "Basic auth credentials as user:password")
	fetchCmd.Flags().StringVar(&fetchBearer, "bearer", getEnvString("HURLSTACK_BEARER", ""), "Bearer token (env: HURLSTACK_BEARER)")
	fetchCmd.Flags().StringVar(&fetchOAuth2, "oauth2", getEnvString("HURLSTACK_OAUTH2", ""), "OAuth2 grant: 'client_credentials tokenUrl clientId clientSecret [scopes]' or 'password tokenUrl clientId clientSecret user pass [scopes]' (env: HURLSTACK_OAUTH2)")
}

func fetchCommand(cmd *cobra.Command, args []string) error {
	method, err := parseMethodFlag(fetchMethod)
	if err != nil {
		return err
	}
	body, err := readDataFlag(fetchData)
	if err != nil {
		return err
	}
	auth, err := authFromFlags(fetchUser, fetchBearer)
	if err != nil {
		return err
	}
	var oauthConfig *oauth2.Config
	if fetchOAuth2 != "" {
		if auth != nil {
			return errdef.New(errdef.CodeParse, "--oauth2 cannot be combined with --user or --bearer")
		}
		if oauthConfig, err = oauth2.ParseParams(strings.Fields(fetchOAuth2)); err != nil {
			return err
		}
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	if oauthConfig != nil {
		provider := oauth2.NewProvider(oauthConfig, s.stack,
			oauth2.WithTimeout(s.requestTimeout()),
			oauth2.WithLogger(s.logger))
		auth = &http.AuthConfig{Type: http.AuthOAuth2, Source: provider}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	for _, rawURL := range args {
		req := http.NewRequest(method, rawURL).
			SetTimeout(s.requestTimeout()).
			SetBody(body).
			SetAuth(auth)
		if fetchContentType != "" {
			req.SetBodyContentType(fetchContentType)
		}
		for k, v := range s.headers {
			req.SetHeader(k, v)
		}

		if err := s.execute(ctx, req, nil); err != nil && runErr == nil {
			runErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}

	return s.finish(runErr)
}

// readDataFlag returns the --data body. A leading @ names a file to read.
func readDataFlag(data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}
	path, ok := strings.CutPrefix(data, "@")
	if !ok {
		return []byte(data), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeResource, err, "read request body %s", path)
	}
	return content, nil
}

func authFromFlags(user, bearer string) (*http.AuthConfig, error) {
	switch {
	case user != "" && bearer != "":
		return nil, errdef.New(errdef.CodeParse, "--user and --bearer are mutually exclusive")
	case user != "":
		name, password, _ := strings.Cut(user, ":")
		return &http.AuthConfig{Type: http.AuthBasic, Params: []string{name, password}}, nil
	case bearer != "":
		return &http.AuthConfig{Type: http.AuthBearer, Params: []string{bearer}}, nil
	default:
		return nil, nil
	}
}
