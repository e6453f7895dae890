// Package errdef classifies hurlstack failures.
//
// Errors returned by the transport stack carry a Code, so the CLI can pick an
// exit status and callers can decide whether a retry makes sense without
// matching on message text.
package errdef

import (
	"errors"
	"fmt"
	"strings"
)

// Code names the class of a failure.
type Code string

const (
	// CodeUnknown marks errors that were never classified.
	CodeUnknown Code = "unknown"
	// CodePolicy is a URL refused by the rewriter.
	CodePolicy Code = "policy"
	// CodeProtocol covers unsupported schemes, unknown methods and bad TLS material.
	CodeProtocol Code = "protocol"
	// CodeIO covers connect, write and read failures.
	CodeIO Code = "io"
	// CodeAuth is raised when request headers or the body cannot be built.
	CodeAuth Code = "auth"
	// CodeParse is input that could not be decoded.
	CodeParse Code = "parse"
	// CodeResource is a local file that could not be read.
	CodeResource Code = "resource"
)

// Error is a classified failure. Message and Err are both optional.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error renders "code: message: cause", leaving out the parts that are empty.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{string(e.Code)}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an error with the given code. The format is only expanded when
// args are present, so a literal message may contain a percent sign.
func New(code Code, format string, args ...any) error {
	return build(code, nil, format, args)
}

// Wrap classifies err and prefixes it with an optional message. A nil err
// stays nil so callers can wrap unconditionally.
func Wrap(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return build(code, err, format, args)
}

func build(code Code, cause error, format string, args []any) *Error {
	if code == "" {
		code = CodeUnknown
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: code, Message: msg, Err: cause}
}

// CodeOf reports the code of the first *Error in err's chain. Unclassified
// and nil errors are CodeUnknown.
func CodeOf(err error) Code {
	var classified *Error
	if !errors.As(err, &classified) {
		return CodeUnknown
	}
	return classified.Code
}

// Is reports whether err was classified with code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Message is err.Error(), or "" for a nil error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
