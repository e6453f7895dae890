package output

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
	quiet   bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithQuiet prints captures only, without the status line or body
func WithQuiet(q bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.quiet = q
	}
}

func statusColor(code int) *color.Color {
	switch {
	case code >= 200 && code < 300:
		return color.New(color.FgGreen)
	case code >= 300 && code < 400:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func (f *ConsoleFormatter) FormatResult(r *Result) {
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if r.Err != nil {
		fmt.Fprintf(f.writer, "%s %s %s %s\n", red("x"), r.Method, r.URL, red(fmt.Sprintf("(%v)", r.Err)))
		return
	}

	if !f.quiet {
		status := statusColor(r.StatusCode).SprintFunc()
		fmt.Fprintf(f.writer, "%s %s %s %s\n", bold(r.Method), r.URL, status(r.StatusCode), cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		if f.verbose {
			for _, h := range r.Headers {
				fmt.Fprintf(f.writer, "  %s: %s\n", h.Name, h.Value)
			}
		}

		if len(r.Body) > 0 && len(r.Captures) == 0 {
			fmt.Fprintf(f.writer, "\n%s\n", r.Body)
		}
	}

	if len(r.Captures) > 0 {
		names := make([]string, 0, len(r.Captures))
		for name := range r.Captures {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(f.writer, "%s = %s\n", name, formatValue(r.Captures[name], 200))
		}
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	if !f.verbose {
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hurlstack"), version)
}
