package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrCircuitOpen is returned while the circuit breaker rejects requests.
	ErrCircuitOpen = errors.New("push API circuit open")
)

// ErrorKind is the coarse failure kind exposed to list controllers.
type ErrorKind string

const (
	// NetworkError means no response was received.
	NetworkError ErrorKind = "network"

	// ServerError means the server answered with a non-2xx status.
	ServerError ErrorKind = "server"
)

// APIError is a failed push API call.
type APIError struct {
	// StatusCode is 0 for network failures.
	StatusCode int
	ErrorClass ErrorClass

	// Message is the server-supplied message, empty when the server sent none.
	Message   string
	RequestID string
	Err       error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("push API %s error: %v", e.ErrorClass, e.Err)
		}
		return fmt.Sprintf("push API %s error", e.ErrorClass)
	}

	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("push API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, msg, e.Err)
	}
	return fmt.Sprintf("push API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Kind maps the error class onto NetworkError or ServerError.
func (e *APIError) Kind() ErrorKind {
	if e.StatusCode == 0 {
		return NetworkError
	}
	return ServerError
}

// UserMessage returns the server-supplied message carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// errorBody covers the error payload shapes the API produces. message may be a
// string or a list of validation messages.
type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

// parseErrorMessage extracts a human message from an error response body.
func parseErrorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}

	if len(eb.Message) > 0 {
		var s string
		if err := json.Unmarshal(eb.Message, &s); err == nil && s != "" {
			return s
		}
		var list []string
		if err := json.Unmarshal(eb.Message, &list); err == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
	}

	return eb.Error
}

// shouldRetry determines if an error class is worth retrying.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient, ErrorClassUnauthorized:
		// 4xx will fail again
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
