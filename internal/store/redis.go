package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// Debouncer admits the first hit per key inside a window, using SET NX PX.
type Debouncer struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewDebouncer builds a Debouncer; keys are stored as prefix+key.
func NewDebouncer(client *redis.Client, prefix string, window time.Duration) *Debouncer {
	if prefix == "" {
		prefix = "attendance:debounce:"
	}
	return &Debouncer{client: client, prefix: prefix, window: window}
}

// Allow returns true when key has not been seen in the current window.
func (d *Debouncer) Allow(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+key, time.Now().UnixMilli(), d.window).Result()
}
