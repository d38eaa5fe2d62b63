package client

import (
	"errors"
	"fmt"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{"client error should not retry", ErrorClassClient, false},
		{"unauthorized should not retry", ErrorClassUnauthorized, false},
		{"server error should retry", ErrorClassServer, true},
		{"rate limit should retry", ErrorClassRateLimit, true},
		{"network error should retry", ErrorClassNetwork, true},
		{"empty error class should not retry", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := shouldRetry(tt.errorClass); result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "server message",
			apiError: &APIError{
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "Domain not found",
			},
			expected: "push API client error (status 404): Domain not found",
		},
		{
			name: "no server message falls back to status text",
			apiError: &APIError{
				StatusCode: 500,
				ErrorClass: ErrorClassServer,
			},
			expected: "push API server error (status 500): Internal Server Error",
		},
		{
			name: "network error",
			apiError: &APIError{
				ErrorClass: ErrorClassNetwork,
				Err:        errors.New("connection refused"),
			},
			expected: "push API network error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.apiError.Error(); result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestAPIError_Kind(t *testing.T) {
	if k := (&APIError{ErrorClass: ErrorClassNetwork}).Kind(); k != NetworkError {
		t.Errorf("Kind() = %q, want %q", k, NetworkError)
	}
	if k := (&APIError{StatusCode: 401, ErrorClass: ErrorClassUnauthorized}).Kind(); k != ServerError {
		t.Errorf("Kind() = %q, want %q", k, ServerError)
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	wrappedErr := errors.New("wrapped error")
	apiError := &APIError{ErrorClass: ErrorClassNetwork, Err: wrappedErr}

	if !errors.Is(apiError, wrappedErr) {
		t.Error("errors.Is should work with wrapped error")
	}
}

func TestUserMessage(t *testing.T) {
	const fallback = "Falha ao carregar subscrições"

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &APIError{StatusCode: 404, Message: "Domain not found"}, "Domain not found"},
		{"wrapped server message", fmt.Errorf("fetch: %w", &APIError{StatusCode: 400, Message: "bad page"}), "bad page"},
		{"no server message", &APIError{StatusCode: 500}, fallback},
		{"network error", &APIError{ErrorClass: ErrorClassNetwork, Err: errors.New("timeout")}, fallback},
		{"plain error", errors.New("boom"), fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err, fallback); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string message", `{"message":"Domain not found","statusCode":404}`, "Domain not found"},
		{"list message", `{"message":["email must be an email","password too short"]}`, "email must be an email; password too short"},
		{"error field", `{"error":"Unauthorized"}`, "Unauthorized"},
		{"not json", `<html>bad gateway</html>`, ""},
		{"empty", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseErrorMessage([]byte(tt.body)); got != tt.want {
				t.Errorf("parseErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
