package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the key was not found or the entry expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored value that does not decode.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// scanBatch is the COUNT hint for SCAN during invalidation.
const scanBatch = 100

// Manager stores entries in Redis.
type Manager struct {
	redis *redis.Client
	now   func() time.Time
}

// NewManager creates a cache manager with a Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{redis: redisClient, now: time.Now}
}

// Lookup returns the entry for key, or ErrCacheMiss.
func (m *Manager) Lookup(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.Expired(m.now()) {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, ErrCacheMiss
	}

	cacheLookups.WithLabelValues("hit").Inc()
	return &entry, nil
}

// Prepare looks up key and, when the entry has a validator, makes the request
// conditional by setting headers on h. It returns the entry to replay on 304,
// or nil when the request goes out unconditional. A miss is not an error.
func (m *Manager) Prepare(ctx context.Context, key Key, h http.Header) (*Entry, error) {
	entry, err := m.Lookup(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !entry.Revalidatable() {
		return nil, nil
	}
	entry.Condition(h)
	cacheConditionalRequests.Inc()
	return entry, nil
}

// Store writes entry, expiring it in Redis at entry.ExpiresAt. Entries that
// are already expired are not written.
func (m *Manager) Store(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	ttl := entry.TTL(m.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Capture stores a 200 response that carries a validator. resp keeps a
// readable body. Responses without ETag or Last-Modified, or marked
// no-store, are skipped; a previously stored entry for key is dropped.
func (m *Manager) Capture(ctx context.Context, key Key, resp *http.Response) error {
	entry, storable, err := FromResponse(resp, m.now())
	if err != nil {
		return err
	}
	if !storable || !entry.Revalidatable() {
		return m.Delete(ctx, key)
	}
	return m.Store(ctx, key, entry)
}

// Revalidated extends entry after the server answered 304 with h. A changed
// ETag in h replaces the stored one.
func (m *Manager) Revalidated(ctx context.Context, key Key, entry *Entry, h http.Header) error {
	cacheRevalidations.Inc()

	now := m.now()
	expires, storable := retention(h, now)
	if !storable {
		return m.Delete(ctx, key)
	}

	updated := *entry
	updated.ExpiresAt = expires
	if etag := h.Get("ETag"); etag != "" {
		updated.ETag = etag
	}
	return m.Store(ctx, key, &updated)
}

// Delete removes one entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Invalidate removes every entry of scope under resource, including its
// sub-resources and all query variants. It returns the number removed.
func (m *Manager) Invalidate(ctx context.Context, scope, resource string) (int, error) {
	base := resourceBase(scope, resource)

	n, err := m.redis.Del(ctx, base).Result()
	if err != nil {
		cacheErrors.WithLabelValues("invalidate").Inc()
		return 0, fmt.Errorf("redis del: %w", err)
	}
	removed := int(n)
	cacheInvalidatedKeys.Add(float64(n))

	for _, pattern := range []string{base + ":*", base + "/*"} {
		c, err := m.deleteMatching(ctx, pattern)
		removed += c
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Purge removes every entry of scope.
func (m *Manager) Purge(ctx context.Context, scope string) (int, error) {
	return m.deleteMatching(ctx, scopeBase(scope)+":*")
}

func (m *Manager) deleteMatching(ctx context.Context, pattern string) (int, error) {
	removed := 0
	iter := m.redis.Scan(ctx, 0, pattern, scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := m.redis.Del(ctx, batch...).Result()
		if err != nil {
			cacheErrors.WithLabelValues("invalidate").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
		removed += int(n)
		cacheInvalidatedKeys.Add(float64(n))
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		cacheErrors.WithLabelValues("scan").Inc()
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	return removed, flush()
}
