package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

func TestTokenBucket_AllowRespectsBurst(t *testing.T) {
	b := NewTokenBucket(DependencyOracle, 0.001, 2)

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())
	assert.Equal(t, DependencyOracle, b.Name())
}

func TestTokenBucket_WaitHonoursContext(t *testing.T) {
	b := NewTokenBucket(DependencyNews, 0.001, 1)
	require.True(t, b.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeRateLimit))
}

func TestTokenBucket_NonPositiveRateIsUnlimited(t *testing.T) {
	b := NewTokenBucket("free", 0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, b.Allow())
	}
}

func TestLimiterSet_GetFallsBackToUnlimited(t *testing.T) {
	s := NewLimiterSet()
	registered := s.Register(DependencyWorldBank, 1, 1)

	assert.Same(t, registered, s.Get(DependencyWorldBank))
	assert.IsType(t, Unlimited{}, s.Get("unknown"))
	assert.NoError(t, s.Get("unknown").Wait(context.Background()))
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	var transitions []gobreaker.State
	b := NewBreaker(BreakerSettings{
		Name:             DependencyOracle,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, logging.NewNopLogger(), func(_ string, s gobreaker.State) {
		transitions = append(transitions, s)
	})

	boom := stderrors.New("boom")
	fail := func() (int, error) { return 0, boom }

	_, err := Execute(b, fail)
	assert.ErrorIs(t, err, boom)
	_, err = Execute(b, fail)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, gobreaker.StateOpen, b.State())
	calls := 0
	_, err = Execute(b, func() (int, error) { calls++; return 1, nil })
	require.Error(t, err)
	assert.Zero(t, calls, "open breaker must not invoke fn")
	assert.True(t, errors.IsCode(err, errors.ErrCodeOracleCircuitOpen))
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

func TestBreaker_SuccessPassesValueThrough(t *testing.T) {
	b := NewBreaker(BreakerSettings{Name: "x"}, nil, nil)
	v, err := Execute(b, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_NilRunsDirectly(t *testing.T) {
	var b *Breaker
	v, err := Execute(b, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
