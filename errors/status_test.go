package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusSource(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("boot: %w", Unavailable("ping failed").Source(cause))

	if !errors.Is(err, cause) {
		t.Errorf("expected source error to be reachable through Unwrap")
	}
	if !IsUnavailable(err) {
		t.Errorf("expected unavailable code, got: %s", AsCode(err))
	}
	if s := AsStatus(err); s == nil || s.Message != "ping failed" {
		t.Errorf("expected status with message 'ping failed', got: %v", s)
	}
	if err.Error() != "boot: ping failed: connection refused" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

type codedError struct{}

func (codedError) Error() string   { return "coded" }
func (codedError) ErrorCode() Code { return CodeTimeout }

func TestAsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: errors.New("boom"), want: CodeInternal},
		{name: "status", err: InvalidArgument("empty key"), want: CodeInvalidArgument},
		{name: "wrapped status", err: fmt.Errorf("x: %w", Unavailable("down")), want: CodeUnavailable},
		{name: "coder", err: fmt.Errorf("x: %w", codedError{}), want: CodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AsCode(tt.err); got != tt.want {
				t.Errorf("AsCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsInvalidArgument(t *testing.T) {
	if !IsInvalidArgument(fmt.Errorf("run: %w", InvalidArgument("lock: empty key"))) {
		t.Error("expected invalid argument code")
	}
	if IsInvalidArgument(Unavailable("down")) {
		t.Error("unavailable must not match invalid argument")
	}
}
