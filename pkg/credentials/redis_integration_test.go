//go:build integration

package credentials

import (
	"context"
	"testing"

	"github.com/brutalpush/pushclient/internal/testutil"
	"github.com/redis/go-redis/v9"
)

func TestRedisStore_Container(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: testutil.RedisContainer(t)})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client)
	exerciseProvider(t, store)

	// A second store on the same instance sees the same credentials.
	ctx := context.Background()
	if err := store.Set(ctx, KeyToken, "shared"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	other := NewRedisStore(client)
	if got, _ := other.Get(ctx, KeyToken); got != "shared" {
		t.Errorf("second store Get(token) = %q, want %q", got, "shared")
	}
}
