package client

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestStatusError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *StatusError
		expected string
	}{
		{
			name: "error with wrapped error",
			err: &StatusError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        io.ErrUnexpectedEOF,
			},
			expected: "network error (status 0): request failed: unexpected EOF",
		},
		{
			name: "status error without wrapped error",
			err: &StatusError{
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "404 Not Found",
			},
			expected: "client error (status 404): 404 Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStatusError_Unwrap(t *testing.T) {
	err := fmt.Errorf("fetch: %w", &StatusError{ErrorClass: ErrorClassNetwork, Err: io.EOF})

	if !errors.Is(err, io.EOF) {
		t.Error("errors.Is should find the wrapped error")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatal("errors.As should find *StatusError")
	}
	if statusErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", statusErr.ErrorClass)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code     int
		expected ErrorClass
	}{
		{code: 200, expected: ""},
		{code: 304, expected: ""},
		{code: 400, expected: ErrorClassClient},
		{code: 404, expected: ErrorClassClient},
		{code: 429, expected: ErrorClassClient},
		{code: 500, expected: ErrorClassServer},
		{code: 503, expected: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.code), func(t *testing.T) {
			if got := classifyStatus(tt.code); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.code, got, tt.expected)
			}
		})
	}
}

func TestClassOf(t *testing.T) {
	if got := ClassOf(errors.New("plain")); got != "" {
		t.Errorf("ClassOf(plain) = %q, want empty", got)
	}
	if got := ClassOf(&StatusError{ErrorClass: ErrorClassServer}); got != ErrorClassServer {
		t.Errorf("ClassOf() = %q, want server", got)
	}
}
