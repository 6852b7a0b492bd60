package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type backend struct {
	name string
	new  func(t *testing.T) (Client, *miniredis.Miniredis)
}

func backends() []backend {
	return []backend{
		{
			name: "memory",
			new: func(t *testing.T) (Client, *miniredis.Miniredis) {
				return NewMemory("test", time.Minute), nil
			},
		},
		{
			name: "miniredis",
			new: func(t *testing.T) (Client, *miniredis.Miniredis) {
				mr := miniredis.RunT(t)
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close() })
				return NewRedis(rdb, "test"), mr
			},
		},
	}
}

func TestClientContract(t *testing.T) {
	for _, b := range backends() {
		b := b
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("get missing", func(t *testing.T) {
				c, _ := b.new(t)
				if _, err := c.Get(ctx, "nope"); !IsNotFound(err) {
					t.Fatalf("expected ErrNotFound, got %v", err)
				}
			})

			t.Run("set get delete", func(t *testing.T) {
				c, _ := b.new(t)
				if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
					t.Fatalf("set: %v", err)
				}
				got, err := c.Get(ctx, "k")
				if err != nil || got != "v" {
					t.Fatalf("get = %q, %v", got, err)
				}
				if err := c.Delete(ctx, "k"); err != nil {
					t.Fatalf("delete: %v", err)
				}
				if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
					t.Fatalf("expected deleted, got %v", err)
				}
				if err := c.Delete(ctx, "k"); err != nil {
					t.Fatalf("second delete must be idempotent: %v", err)
				}
			})

			t.Run("take consumes once", func(t *testing.T) {
				c, _ := b.new(t)
				_ = c.Set(ctx, "challenge", "abc", time.Minute)
				got, err := c.Take(ctx, "challenge")
				if err != nil || got != "abc" {
					t.Fatalf("take = %q, %v", got, err)
				}
				if _, err := c.Take(ctx, "challenge"); !IsNotFound(err) {
					t.Fatalf("second take must miss, got %v", err)
				}
			})

			t.Run("concurrent take has single winner", func(t *testing.T) {
				c, _ := b.new(t)
				_ = c.Set(ctx, "slot", "x", time.Minute)
				var wins int32
				var wg sync.WaitGroup
				for i := 0; i < 16; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if _, err := c.Take(ctx, "slot"); err == nil {
							atomic.AddInt32(&wins, 1)
						}
					}()
				}
				wg.Wait()
				if wins != 1 {
					t.Fatalf("wins = %d, want 1", wins)
				}
			})

			t.Run("overwrite is last write wins", func(t *testing.T) {
				c, _ := b.new(t)
				_ = c.Set(ctx, "k", "one", time.Minute)
				_ = c.Set(ctx, "k", "two", time.Minute)
				if got, _ := c.Get(ctx, "k"); got != "two" {
					t.Fatalf("got %q", got)
				}
			})
		})
	}
}

func TestRedisTTLAndPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	c := NewRedis(rdb, "atgate")
	ctx := context.Background()

	if err := c.Set(ctx, "twofa:pending:did:plc:x", "{}", 10*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("atgate:twofa:pending:did:plc:x") {
		t.Fatalf("expected prefixed key in redis, keys=%v", mr.Keys())
	}
	mr.FastForward(11 * time.Minute)
	if _, err := c.Get(ctx, "twofa:pending:did:plc:x"); !IsNotFound(err) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestOpenRedisPingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := OpenRedis(context.Background(), Config{Addr: addr}); err == nil {
		t.Fatalf("expected ping failure against closed server")
	}
}

func TestNewSelectsDriver(t *testing.T) {
	ctx := context.Background()

	mem, err := New(ctx, Config{Driver: "memory", Prefix: "atgate", CleanupInterval: time.Minute})
	if err != nil {
		t.Fatalf("new memory: %v", err)
	}
	defer mem.Close()
	if mem.Driver() != "memory" {
		t.Fatalf("driver = %q, want memory", mem.Driver())
	}

	mr := miniredis.RunT(t)
	c, err := New(ctx, Config{Driver: "redis", Addr: mr.Addr(), Prefix: "atgate"})
	if err != nil {
		t.Fatalf("new redis: %v", err)
	}
	defer c.Close()
	rc, ok := c.(*RedisClient)
	if !ok {
		t.Fatalf("expected *RedisClient, got %T", c)
	}
	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("atgate:k") {
		t.Fatalf("prefix not applied, keys=%v", mr.Keys())
	}
	// la conexión compartida apunta al mismo servidor
	if err := rc.Redis().Ping(ctx).Err(); err != nil {
		t.Fatalf("shared client ping: %v", err)
	}
}
