package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server. Values are stored as plain
// strings; List scans with SCAN MATCH and yields keys in sorted order.
type Redis struct {
	rdb  redis.UniversalClient
	opts *Options
	ttl  time.Duration
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Options *Options

	// TTL expires keys after the given duration. Zero keeps them forever.
	TTL time.Duration
}

// NewRedis wraps an existing client. Close closes the client.
func NewRedis(rdb redis.UniversalClient, ropts RedisOptions) *Redis {
	return &Redis{rdb: rdb, opts: ropts.Options, ttl: ropts.TTL}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int, ropts RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("kv: redis: ping %s: %w", addr, err)
	}
	return NewRedis(rdb, ropts), nil
}

func (r *Redis) Get(ctx context.Context, key Key) ([]byte, error) {
	data, err := r.rdb.Get(ctx, string(r.opts.encode(key))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: redis: get %s: %w", key, err)
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, key Key, value []byte) error {
	if err := r.rdb.Set(ctx, string(r.opts.encode(key)), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("kv: redis: set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}
	enc := make([]string, len(keys))
	for i, k := range keys {
		enc[i] = string(r.opts.encode(k))
	}
	if err := r.rdb.Del(ctx, enc...).Err(); err != nil {
		return fmt.Errorf("kv: redis: delete: %w", err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		var keys []string
		it := r.rdb.Scan(ctx, 0, string(r.opts.scanPrefix(prefix))+"*", 100).Iterator()
		for it.Next(ctx) {
			keys = append(keys, it.Val())
		}
		if err := it.Err(); err != nil {
			yield(Entry{}, fmt.Errorf("kv: redis: scan %s: %w", prefix, err))
			return
		}
		slices.Sort(keys)
		keys = slices.Compact(keys)

		for chunk := range slices.Chunk(keys, 100) {
			vals, err := r.rdb.MGet(ctx, chunk...).Result()
			if err != nil {
				yield(Entry{}, fmt.Errorf("kv: redis: mget: %w", err))
				return
			}
			for i, v := range vals {
				s, ok := v.(string)
				if !ok {
					// Expired or deleted between SCAN and MGET.
					continue
				}
				if !yield(Entry{Key: r.opts.decode([]byte(chunk[i])), Value: []byte(s)}, nil) {
					return
				}
			}
		}
	}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
