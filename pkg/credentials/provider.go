// Package credentials stores the tokens and identifiers the API client needs
// (bearer token, API key, cached user, device id). A Provider is injected into
// the client at construction instead of being reached through a global.
package credentials

import (
	"context"
	"errors"
)

// Well-known credential keys.
const (
	KeyToken    = "token"
	KeyAPIKey   = "apiKey"
	KeyUser     = "user"
	KeyDeviceID = "deviceId"
)

// ErrEmptyKey is returned when a credential operation is given an empty key.
var ErrEmptyKey = errors.New("credential key cannot be empty")

// Provider is a key-value credential store.
//
// Get returns "" and a nil error when the key is absent.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Clear removes all listed keys. Missing keys are not an error.
	Clear(ctx context.Context, keys ...string) error
}
