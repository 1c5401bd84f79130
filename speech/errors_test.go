package speech

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsProviderFailure(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrQuotaExceeded, true},
		{ErrProviderUnavailable, true},
		{ErrVoiceNotFound, true},
		{ErrTimeout, true},
		{fmt.Errorf("edge: %w", ErrQuotaExceeded), true},
		{ErrProviderExhausted, false},
		{ErrProviderUnsupported, false},
		{ErrEmptyText, false},
		{ErrInvalidRequest, false},
		{ErrServiceClosed, false},
	}

	for _, tt := range tests {
		if got := IsProviderFailure(tt.err); got != tt.want {
			t.Errorf("IsProviderFailure(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestError_Formatting(t *testing.T) {
	err := NewError(ErrQuotaExceeded, "registry", "invoke").WithProvider("edge")

	if !errors.Is(err, ErrQuotaExceeded) {
		t.Error("wrapped sentinel not reachable via errors.Is")
	}
	want := "registry: invoke (edge): provider quota exceeded"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Severity != SeverityError {
		t.Errorf("default severity = %v", err.Severity)
	}
	if err.WithSeverity(SeverityWarning).Severity != SeverityWarning {
		t.Error("WithSeverity did not apply")
	}

	bare := NewError(ErrTimeout, "service", "synthesize")
	if bare.Error() != "service: synthesize: operation timed out" {
		t.Errorf("Error() = %q", bare.Error())
	}
}
