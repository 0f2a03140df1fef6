package gateway

import (
	"errors"
	"fmt"
)

// FailureKind classifies a gateway call failure. The orchestrator reacts
// differently to each kind: rate limits and malformed output inside the
// repair loop are survivable, provider errors outside it are fatal.
type FailureKind string

const (
	// FailureRateLimited means the backend refused the call for quota or
	// throughput reasons. Retryable.
	FailureRateLimited FailureKind = "rate_limited"

	// FailureMalformedOutput means the backend answered but the payload
	// could not be decoded into the expected shape.
	FailureMalformedOutput FailureKind = "malformed_output"

	// FailureProviderError means the backend call itself failed: network,
	// authentication, server error.
	FailureProviderError FailureKind = "provider_error"
)

// Failure is a typed gateway error. Wraps the underlying cause.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("gateway %s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("gateway %s: %s", f.Kind, f.Message)
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure constructs a Failure of the given kind.
func NewFailure(kind FailureKind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure kind from an error chain. Errors that are
// not gateway failures report FailureProviderError.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureProviderError
}

// IsRetryable reports whether the error is worth retrying at the call
// site. Only rate limits qualify.
func IsRetryable(err error) bool {
	return KindOf(err) == FailureRateLimited
}
