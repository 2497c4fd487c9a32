package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemory_SetAndGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	if err := c.Set(ctx, "score:agent-1", []byte(`{"overall":0.9}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "score:agent-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"overall":0.9}` {
		t.Errorf("got %q", got)
	}

	// Returned bytes are a copy.
	got[0] = 'X'
	again, _ := c.Get(ctx, "score:agent-1")
	if again[0] != '{' {
		t.Error("stored value was mutated through returned slice")
	}
}

func TestMemory_Miss(t *testing.T) {
	c := NewMemory()
	if _, err := c.Get(context.Background(), "nonexistent"); !errors.Is(err, ErrMiss) {
		t.Errorf("err = %v, want ErrMiss", err)
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	_ = c.Set(ctx, "a", []byte("1"), 10*time.Second)
	_ = c.Set(ctx, "b", []byte("2"), 0)

	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatal("expected hit before expiry")
	}
	clock = clock.Add(11 * time.Second)
	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Error("expected miss after TTL expiry")
	}
	if _, err := c.Get(ctx, "b"); err != nil {
		t.Error("entry without TTL should not expire")
	}

	if n := c.Evict(); n != 1 {
		t.Errorf("Evict removed %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	_ = c.Delete(ctx, "k")
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Error("expected miss after delete")
	}
}

func TestRedis_unreachableReturnsError(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedis(rdb, "trust:")
	defer c.Close()

	_, err := c.Get(context.Background(), "k")
	if err == nil || errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want a connection error distinct from ErrMiss", err)
	}
	if c.key("k") != "trust:k" {
		t.Errorf("key = %q", c.key("k"))
	}
}
