package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hurlstack/packages/capture"
	"github.com/abdul-hamid-achik/hurlstack/packages/core/config"
	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
	"github.com/abdul-hamid-achik/hurlstack/packages/http"
	"github.com/abdul-hamid-achik/hurlstack/packages/output"
	"github.com/abdul-hamid-achik/hurlstack/packages/telemetry"
)

var (
	configFlag    string
	timeoutFlag   string
	transportFlag string
	proxyFlag     string
	insecureFlag  bool
	rateFlag      float64
	headerFlags   []string
	captureFlags  []string
	verboseFlag   int // 0=off, 1=-v headers, 2=-vv transport debug log
	quietFlag     bool
	noColorFlag   bool
	outputFlag    string
	failFlag      bool
)

func addSessionFlags(c *cobra.Command) {
	f := c.PersistentFlags()

	f.StringVar(&configFlag, "config", getEnvString("HURLSTACK_CONFIG", ""), "Path to config file (env: HURLSTACK_CONFIG)")
	f.StringVar(&timeoutFlag, "timeout", getEnvString("HURLSTACK_TIMEOUT", ""), "Connect and read timeout, e.g. 2500ms, 10s (env: HURLSTACK_TIMEOUT)")
	f.StringVar(&transportFlag, "transport", getEnvString("HURLSTACK_TRANSPORT", ""), "Connection backend: default, h2 (env: HURLSTACK_TRANSPORT)")
	f.StringVar(&proxyFlag, "proxy", getEnvString("HURLSTACK_PROXY", ""), "Proxy URL for the default transport (env: HURLSTACK_PROXY)")
	f.BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HURLSTACK_INSECURE", false), "Disable SSL certificate validation (env: HURLSTACK_INSECURE)")
	f.Float64Var(&rateFlag, "rate", 0, "Maximum connections per second (0 = unlimited)")
	f.StringArrayVarP(&headerFlags, "header", "H", nil, "Extra header (repeatable, e.g. -H 'Accept: text/plain')")
	f.StringArrayVarP(&captureFlags, "capture", "c", nil, "Print a value instead of the body: name=body:path, header:Name or status: (repeatable)")

	f.CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v headers, -vv transport log)")
	f.BoolVarP(&quietFlag, "quiet", "q", getEnvBool("HURLSTACK_QUIET", false), "Print captures only (env: HURLSTACK_QUIET)")
	f.BoolVar(&noColorFlag, "no-color", getEnvBool("HURLSTACK_NO_COLOR", false), "Disable colored output (env: HURLSTACK_NO_COLOR)")
	f.StringVarP(&outputFlag, "output", "o", getEnvString("HURLSTACK_OUTPUT", "console"), "Output format: console, json (env: HURLSTACK_OUTPUT)")
	f.BoolVar(&failFlag, "fail", false, "Exit with status 1 when a response is not 2xx")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *output.Result)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// session holds what every request of one command invocation shares.
type session struct {
	cfg       *config.Config
	stack     *http.Stack
	logger    *slog.Logger
	headers   map[string]string
	captures  []*capture.Capture
	formatter Formatter
	started   time.Time
	failed    error
	shutdown  func(context.Context) error
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, baseDir, err := loadConfig()
	if err != nil {
		return nil, err
	}

	headers, err := parseHeaders(headerFlags)
	if err != nil {
		return nil, err
	}

	captures := make([]*capture.Capture, 0, len(captureFlags))
	for _, expr := range captureFlags {
		c, err := capture.Parse(expr)
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}

	logger := newLogger(cmd.ErrOrStderr(), verboseFlag)

	tcfg := telemetry.ConfigFromEnv(os.Getenv)
	tcfg.Version = version
	tp, shutdown, err := telemetry.Setup(cmd.Context(), tcfg)
	if err != nil {
		return nil, err
	}

	stack, err := config.NewStack(cfg, baseDir, logger, http.WithTracer(tp.Tracer("hurlstack")))
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}

	formatter, err := newFormatter(cmd.OutOrStdout(), cfg)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}
	formatter.FormatHeader(version)

	return &session{
		cfg:       cfg,
		stack:     stack,
		logger:    logger,
		headers:   headers,
		captures:  captures,
		formatter: formatter,
		started:   time.Now(),
		shutdown:  shutdown,
	}, nil
}

// loadConfig reads the config file and applies flag overrides. The base
// directory for relative TLS paths is the config file's directory.
func loadConfig() (*config.Config, string, error) {
	baseDir := "."
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, "", err
	}
	if configFlag != "" {
		baseDir = filepath.Dir(configFlag)
	}

	overrides := &config.Config{
		Transport: transportFlag,
		Proxy:     proxyFlag,
		RateLimit: rateFlag,
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil || d <= 0 {
			return nil, "", errdef.New(errdef.CodeParse, "invalid timeout value %q (use format like 2500ms, 10s)", timeoutFlag)
		}
		overrides.Timeout = int(d.Milliseconds())
	}
	if insecureFlag {
		overrides.ValidateSSL = config.BoolPtr(false)
	}
	if noColorFlag {
		overrides.NoColor = config.BoolPtr(true)
	}
	if verboseFlag > 0 {
		overrides.Verbose = config.BoolPtr(true)
	}

	cfg := fileConfig.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, baseDir, nil
}

// newLogger writes transport debug records to w at -vv and discards
// them otherwise.
func newLogger(w io.Writer, verbosity int) *slog.Logger {
	if verbosity < 2 {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newFormatter(w io.Writer, cfg *config.Config) (Formatter, error) {
	switch strings.ToLower(outputFlag) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	case "", "console":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(cfg.GetVerbose()),
			output.WithNoColor(cfg.GetNoColor()),
			output.WithQuiet(quietFlag),
		), nil
	default:
		return nil, errdef.New(errdef.CodeParse, "unknown output format %q (want console or json)", outputFlag)
	}
}

// parseHeaders turns "Name: value" flags into a header map.
func parseHeaders(flags []string) (map[string]string, error) {
	headers := make(map[string]string, len(flags))
	for _, h := range flags {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errdef.New(errdef.CodeParse, "invalid header %q (want 'Name: value')", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// execute runs req and reports it. readBody consumes the response body and
// returns its bytes; it defaults to Response.ReadBody.
func (s *session) execute(ctx context.Context, req http.Request, readBody func(*http.Response) ([]byte, error)) error {
	if readBody == nil {
		readBody = (*http.Response).ReadBody
	}

	result := &output.Result{Method: req.Method().String(), URL: req.URL()}
	if req.Method() == http.MethodDeprecatedGetOrPost {
		if m, _, err := http.ResolveMethod(req); err == nil {
			result.Method = m.String()
		}
	}

	start := time.Now()
	resp, err := s.stack.Do(ctx, req)
	if err == nil {
		var body []byte
		body, err = readBody(resp)
		resp.Close()
		if err == nil {
			result.StatusCode = resp.StatusCode
			result.Headers = resp.Headers
			result.Body = body
			if len(s.captures) > 0 {
				result.Captures = capture.ExtractAll(resp, body, s.captures)
			}
		}
	}
	result.Duration = time.Since(start)
	result.Err = err
	s.formatter.FormatResult(result)

	if err != nil {
		return err
	}
	if failFlag && !resp.IsSuccess() && s.failed == nil {
		s.failed = &statusError{code: resp.StatusCode}
	}
	return nil
}

// finish flushes accumulated output and spans and returns the first failure.
func (s *session) finish(runErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.shutdown(ctx); err != nil {
		s.logger.Debug("trace export failed", "error", err)
	}

	if flushable, ok := s.formatter.(Flushable); ok {
		if err := flushable.Flush(time.Since(s.started)); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	return s.failed
}

// requestTimeout is the configured connect and read timeout.
func (s *session) requestTimeout() time.Duration {
	if d := s.cfg.TimeoutDuration(); d > 0 {
		return d
	}
	return http.DefaultTimeout
}

// parseMethodFlag maps -X to a Method. An empty value picks GET or POST
// depending on whether a body is sent.
func parseMethodFlag(v string) (http.Method, error) {
	if v == "" {
		return http.MethodDeprecatedGetOrPost, nil
	}
	return http.ParseMethod(v)
}
