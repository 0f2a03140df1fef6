package gateway

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"rate limited", NewFailure(FailureRateLimited, "quota", nil), FailureRateLimited},
		{"malformed", NewFailure(FailureMalformedOutput, "bad json", nil), FailureMalformedOutput},
		{"provider", NewFailure(FailureProviderError, "boom", nil), FailureProviderError},
		{"wrapped", fmt.Errorf("calling backend: %w", NewFailure(FailureRateLimited, "quota", nil)), FailureRateLimited},
		{"plain error", errors.New("something else"), FailureProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFailureUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	f := NewFailure(FailureProviderError, "backend connection error", cause)
	if !errors.Is(f, cause) {
		t.Error("Failure should unwrap to its cause")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewFailure(FailureRateLimited, "quota", nil)) {
		t.Error("rate limited should be retryable")
	}
	if IsRetryable(NewFailure(FailureMalformedOutput, "bad", nil)) {
		t.Error("malformed output should not be retryable")
	}
	if IsRetryable(NewFailure(FailureProviderError, "down", nil)) {
		t.Error("provider error should not be retryable")
	}
}
