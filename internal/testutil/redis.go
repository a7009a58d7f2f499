//go:build integration

package testutil

import (
	"context"
	"slices"
	"testing"

	"github.com/go-redis/redis/v8"
)

// RedisClient returns a client for db, closed when the test ends.
func RedisClient(t *testing.T, addr string, db int) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	t.Cleanup(func() { client.Close() })
	return client
}

// FlushDB empties one Redis database.
func FlushDB(t *testing.T, addr string, db int) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flushing DB %d: %v", db, err)
	}
}

// Keys returns the sorted keys of a Redis database matching pattern.
func Keys(t *testing.T, addr string, db int, pattern string) []string {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	keys, err := client.Keys(context.Background(), pattern).Result()
	if err != nil {
		t.Fatalf("listing keys in DB %d: %v", db, err)
	}
	slices.Sort(keys)
	return keys
}

// HashField reads one field of a Redis hash, "" when absent.
func HashField(t *testing.T, addr string, db int, key, field string) string {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	v, err := client.HGet(context.Background(), key, field).Result()
	if err == redis.Nil {
		return ""
	}
	if err != nil {
		t.Fatalf("reading %s.%s: %v", key, field, err)
	}
	return v
}
