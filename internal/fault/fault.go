// Package fault defines the error kinds shared by all gpulab components.
//
// Components return structured errors so the command layer can decide how
// to render and whether a retry makes sense: a Timeout means the resource
// may still converge, a ProviderRejected means it will not.
package fault

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Kind classifies an error.
type Kind string

const (
	// Validation is a bad or conflicting configuration, caught before any
	// provider call is made.
	Validation Kind = "validation"
	// ProviderRejected is a named, recognized rejection from AWS. The
	// provider's message is surfaced verbatim.
	ProviderRejected Kind = "provider-rejected"
	// Timeout is a bounded wait that exceeded its deadline. The resource
	// may still be converging.
	Timeout Kind = "timeout"
	// NotFound means resolution of an alias, instance id or volume found
	// nothing.
	NotFound Kind = "not-found"
)

// Error is a classified gpulab error.
type Error struct {
	Kind Kind
	// Code is a machine-readable condition, e.g. an AWS API error code or
	// "VolumeBusy".
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf returns a Validation error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: Validation, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf returns a NotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

// Timeoutf returns a Timeout error.
func Timeoutf(format string, args ...any) error {
	return &Error{Kind: Timeout, Msg: fmt.Sprintf(format, args...)}
}

// Rejected wraps a provider error as ProviderRejected, preserving the
// original message.
func Rejected(code, msg string, err error) error {
	return &Error{Kind: ProviderRejected, Code: code, Msg: msg, Err: err}
}

// KindOf returns the Kind of err, or "" if err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

// CodeOf returns the condition code of err, or "".
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// AWSErrorCode extracts the API error code from an aws-sdk-go-v2 error,
// or "" if err is not an API error.
func AWSErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsAWSErrorCode reports whether err is an AWS API error with one of the
// given codes.
func IsAWSErrorCode(err error, codes ...string) bool {
	got := AWSErrorCode(err)
	if got == "" {
		return false
	}
	for _, c := range codes {
		if got == c {
			return true
		}
	}
	return false
}
