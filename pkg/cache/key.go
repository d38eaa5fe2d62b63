package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"slices"
	"strings"
)

// KeyPrefix namespaces cache entries in Redis.
const KeyPrefix = "push:cache"

// anonymousScope stands in for requests sent without a token.
const anonymousScope = "anon"

// Key identifies a stored response.
type Key struct {
	// Scope separates users, see ScopeFromToken. Empty means anonymous.
	Scope string

	// Resource is the API path, e.g. "/subscriptions".
	Resource string

	// Query holds the request query parameters.
	Query url.Values
}

// String renders the Redis key. Query names and values are sorted so equal
// queries map to one key.
//
//	push:cache:9f86d081884c7d65:subscriptions:page=2:perPage=20
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(resourceBase(k.Scope, k.Resource))

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		values := slices.Clone(k.Query[name])
		slices.Sort(values)
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ","))
	}
	return b.String()
}

func scopeBase(scope string) string {
	if scope == "" {
		scope = anonymousScope
	}
	return KeyPrefix + ":" + scope
}

func resourceBase(scope, resource string) string {
	return scopeBase(scope) + ":" + strings.Trim(resource, "/")
}

// ScopeFromToken derives a short, non-reversible scope from a bearer token.
func ScopeFromToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
