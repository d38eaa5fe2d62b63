package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/brutalpush/pushclient/internal/testutil"
)

// exerciseProvider runs the Provider contract against any implementation.
func exerciseProvider(t *testing.T, p Provider) {
	t.Helper()
	ctx := context.Background()

	got, err := p.Get(ctx, KeyToken)
	if err != nil {
		t.Fatalf("Get on empty store failed: %v", err)
	}
	if got != "" {
		t.Errorf("Get on empty store = %q, want empty", got)
	}

	if err := p.Set(ctx, KeyToken, "tok-123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := p.Set(ctx, KeyAPIKey, "key-456"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := p.Set(ctx, KeyDeviceID, "dev-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if got, _ := p.Get(ctx, KeyToken); got != "tok-123" {
		t.Errorf("Get(token) = %q, want %q", got, "tok-123")
	}

	if err := p.Delete(ctx, KeyDeviceID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := p.Get(ctx, KeyDeviceID); got != "" {
		t.Errorf("Get(deviceId) after Delete = %q, want empty", got)
	}

	// Clear tolerates keys that were never set.
	if err := p.Clear(ctx, KeyToken, KeyAPIKey, KeyUser); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	for _, key := range []string{KeyToken, KeyAPIKey, KeyUser} {
		if got, _ := p.Get(ctx, key); got != "" {
			t.Errorf("Get(%s) after Clear = %q, want empty", key, got)
		}
	}

	if err := p.Set(ctx, "", "x"); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Set with empty key error = %v, want ErrEmptyKey", err)
	}
	if _, err := p.Get(ctx, ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Get with empty key error = %v, want ErrEmptyKey", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseProvider(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	client := testutil.Redis(t)
	exerciseProvider(t, NewRedisStore(client))
}

func TestRedisStore_Namespacing(t *testing.T) {
	client := testutil.Redis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	if err := store.Set(ctx, KeyToken, "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	raw, err := client.Get(ctx, RedisKeyPrefix+KeyToken).Result()
	if err != nil {
		t.Fatalf("raw redis get failed: %v", err)
	}
	if raw != "abc" {
		t.Errorf("raw value = %q, want %q", raw, "abc")
	}
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil)
}
