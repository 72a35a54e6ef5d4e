// Package cache defines the enrichment cache abstraction and its in-process
// implementation. The Redis implementation lives in database/redis.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New(errors.ErrCodeNotFound, "cache miss")

// Cache stores JSON-encoded values with a per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return errors.IsCode(err, errors.ErrCodeNotFound)
}

// Loader produces a value on a cache miss.
type Loader func(ctx context.Context) (interface{}, error)

// Loading wraps a Cache with a deduplicated read-through GetOrSet.
type Loading struct {
	Cache
	group singleflight.Group
}

// NewLoading wraps c.
func NewLoading(c Cache) *Loading {
	return &Loading{Cache: c}
}

// GetOrSet reads key into dest, calling load on a miss. Concurrent misses
// for the same key share one load. A cache read or write failure degrades
// to calling load directly; only load errors are returned.
func (l *Loading) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, load Loader) error {
	err := l.Get(ctx, key, dest)
	if err == nil {
		return nil
	}

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		val, loadErr := load(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		_ = l.Set(ctx, key, val, ttl)
		return val, nil
	})
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cache: marshal loaded value")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cache: unmarshal loaded value")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Instrumentation
// ─────────────────────────────────────────────────────────────────────────────

// Metrics receives hit and miss counts.
type Metrics interface {
	RecordCacheAccess(cache string, hit bool)
}

type instrumented struct {
	Cache
	name    string
	metrics Metrics
}

// Instrument records every Get as a hit or a miss under name.
func Instrument(c Cache, name string, m Metrics) Cache {
	if m == nil {
		return c
	}
	return &instrumented{Cache: c, name: name, metrics: m}
}

func (i *instrumented) Get(ctx context.Context, key string, dest interface{}) error {
	err := i.Cache.Get(ctx, key, dest)
	i.metrics.RecordCacheAccess(i.name, err == nil)
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Nop
// ─────────────────────────────────────────────────────────────────────────────

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, interface{}) error { return ErrCacheMiss }

func (Nop) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (Nop) Delete(context.Context, ...string) error { return nil }

func (Nop) Ping(context.Context) error { return nil }

func (Nop) Close() error { return nil }
