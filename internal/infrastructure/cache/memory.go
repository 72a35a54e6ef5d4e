package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// MemoryConfig sizes the in-process cache.
type MemoryConfig struct {
	// MaxTTL bounds every entry; bigcache evicts on this window.
	MaxTTL time.Duration
	// MaxSizeMB is the hard memory cap; zero means unbounded.
	MaxSizeMB int
	// CleanWindow is how often expired entries are purged.
	CleanWindow time.Duration
}

// Memory is a bigcache-backed Cache. bigcache has a single global life
// window, so each entry carries its own expiry in an envelope.
type Memory struct {
	cache *bigcache.BigCache
	now   func() time.Time
}

type envelope struct {
	Expires int64           `json:"e"`
	Data    json.RawMessage `json:"d"`
}

// NewMemory builds an in-process cache.
func NewMemory(cfg MemoryConfig) (*Memory, error) {
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 24 * time.Hour
	}
	if cfg.CleanWindow <= 0 {
		cfg.CleanWindow = 5 * time.Minute
	}
	bc := bigcache.DefaultConfig(cfg.MaxTTL)
	bc.HardMaxCacheSize = cfg.MaxSizeMB
	bc.CleanWindow = cfg.CleanWindow
	bc.Verbose = false

	c, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "cache: failed to initialise bigcache")
	}
	return &Memory{cache: c, now: time.Now}, nil
}

func (m *Memory) Get(_ context.Context, key string, dest interface{}) error {
	raw, err := m.cache.Get(key)
	if stderrors.Is(err, bigcache.ErrEntryNotFound) {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache: get failed")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		_ = m.cache.Delete(key)
		return ErrCacheMiss
	}
	if env.Expires > 0 && m.now().UnixNano() >= env.Expires {
		_ = m.cache.Delete(key)
		return ErrCacheMiss
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cache: decode failed")
	}
	return nil
}

func (m *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cache: encode failed")
	}
	env := envelope{Data: data}
	if ttl > 0 {
		env.Expires = m.now().Add(ttl).UnixNano()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cache: encode failed")
	}
	if err := m.cache.Set(key, raw); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache: set failed")
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		if err := m.cache.Delete(k); err != nil && !stderrors.Is(err, bigcache.ErrEntryNotFound) {
			return errors.Wrap(err, errors.ErrCodeCacheError, "cache: delete failed")
		}
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Len is the number of stored entries, expired ones included.
func (m *Memory) Len() int { return m.cache.Len() }

func (m *Memory) Close() error { return m.cache.Close() }
