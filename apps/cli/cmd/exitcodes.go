package cmd

import (
	"errors"
	"strconv"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

// Exit codes for hurlstack CLI
const (
	// ExitSuccess indicates every request completed
	ExitSuccess = 0

	// ExitHTTPFailure indicates a non-2xx response while --fail was set
	ExitHTTPFailure = 1

	// ExitParseError indicates a config, header or response decoding error
	ExitParseError = 2

	// ExitConfigError indicates a protocol or TLS configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitAuthError indicates request credentials could not be built
	ExitAuthError = 5

	// ExitResourceError indicates a local file could not be read
	ExitResourceError = 6

	// ExitPolicyError indicates a URL was blocked by a rewrite rule
	ExitPolicyError = 7

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// statusError reports a response outside 2xx when --fail is set.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "server returned status " + strconv.Itoa(e.code)
}

func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var se *statusError
	if errors.As(err, &se) {
		return ExitHTTPFailure
	}
	switch errdef.CodeOf(err) {
	case errdef.CodeParse:
		return ExitParseError
	case errdef.CodeProtocol:
		return ExitConfigError
	case errdef.CodeIO:
		return ExitNetworkError
	case errdef.CodeAuth:
		return ExitAuthError
	case errdef.CodeResource:
		return ExitResourceError
	case errdef.CodePolicy:
		return ExitPolicyError
	default:
		return ExitUsageError
	}
}
