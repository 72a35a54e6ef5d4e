package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

type indicator struct {
	Code  string  `json:"code"`
	Value float64 `json:"value"`
}

func newMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory(MemoryConfig{MaxTTL: time.Hour, MaxSizeMB: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMemory_SetGet(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "wb:GHA", indicator{Code: "CC.EST", Value: -0.1}, time.Minute))

	var got indicator
	require.NoError(t, m.Get(ctx, "wb:GHA", &got))
	assert.Equal(t, indicator{Code: "CC.EST", Value: -0.1}, got)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_Miss(t *testing.T) {
	m := newMemory(t)
	var got indicator
	err := m.Get(context.Background(), "absent", &got)
	assert.True(t, IsMiss(err))
}

func TestMemory_PerEntryExpiry(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "short", 1, time.Second))
	require.NoError(t, m.Set(ctx, "forever", 2, 0))

	now = now.Add(2 * time.Second)

	var v int
	assert.True(t, IsMiss(m.Get(ctx, "short", &v)))
	require.NoError(t, m.Get(ctx, "forever", &v))
	assert.Equal(t, 2, v)
}

func TestMemory_Delete(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, m.Delete(ctx, "k", "never-set"))

	var s string
	assert.True(t, IsMiss(m.Get(ctx, "k", &s)))
}

func TestMemory_UnencodableValue(t *testing.T) {
	m := newMemory(t)
	err := m.Set(context.Background(), "k", func() {}, time.Minute)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

func TestLoading_GetOrSet(t *testing.T) {
	l := NewLoading(newMemory(t))
	ctx := context.Background()
	var calls int32

	load := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return indicator{Code: "RL.EST", Value: 0.4}, nil
	}

	var first, second indicator
	require.NoError(t, l.GetOrSet(ctx, "k", &first, time.Minute, load))
	require.NoError(t, l.GetOrSet(ctx, "k", &second, time.Minute, load))

	assert.Equal(t, indicator{Code: "RL.EST", Value: 0.4}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoading_GetOrSet_Dedupes(t *testing.T) {
	l := NewLoading(Nop{})
	ctx := context.Background()
	var calls int32
	release := make(chan struct{})

	load := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.GetOrSet(ctx, "same", &results[i], time.Minute, load))
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, []int{7, 7, 7, 7, 7}, results)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(5))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestLoading_LoadErrorNotCached(t *testing.T) {
	m := newMemory(t)
	l := NewLoading(m)
	ctx := context.Background()

	boom := errors.New(errors.ErrCodeEnrichmentUnavailable, "down")
	var v int
	err := l.GetOrSet(ctx, "k", &v, time.Minute, func(context.Context) (interface{}, error) { return nil, boom })
	assert.True(t, errors.IsCode(err, errors.ErrCodeEnrichmentUnavailable))
	assert.True(t, IsMiss(m.Get(ctx, "k", &v)))
}

type hitRecorder struct {
	mu   sync.Mutex
	hits map[bool]int
}

func (h *hitRecorder) RecordCacheAccess(_ string, hit bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hits == nil {
		h.hits = map[bool]int{}
	}
	h.hits[hit]++
}

func TestInstrument(t *testing.T) {
	rec := &hitRecorder{}
	c := Instrument(newMemory(t), "memory", rec)
	ctx := context.Background()

	var v int
	_ = c.Get(ctx, "k", &v)
	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	require.NoError(t, c.Get(ctx, "k", &v))

	assert.Equal(t, 1, rec.hits[true])
	assert.Equal(t, 1, rec.hits[false])

	plain := Nop{}
	assert.Equal(t, Cache(plain), Instrument(plain, "x", nil))
}

func TestNop(t *testing.T) {
	var n Nop
	ctx := context.Background()
	var v int
	assert.NoError(t, n.Set(ctx, "k", 1, time.Minute))
	assert.True(t, IsMiss(n.Get(ctx, "k", &v)))
	assert.NoError(t, n.Delete(ctx, "k"))
	assert.NoError(t, n.Ping(ctx))
	assert.NoError(t, n.Close())
}
