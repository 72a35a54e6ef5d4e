package resilience

import (
	stderrors "errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New(errors.ErrCodeOracleCircuitOpen, "circuit breaker is open")

// BreakerSettings configures a Breaker.
type BreakerSettings struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval is the closed-state window after which counts reset.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// FailureThreshold consecutive failures trip the breaker.
	FailureThreshold uint32
}

// StateObserver receives breaker transitions, typically a metrics gauge.
type StateObserver func(name string, state gobreaker.State)

// Breaker wraps gobreaker with logging and an optional state observer.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker builds a Breaker. A zero FailureThreshold defaults to 5.
func NewBreaker(st BreakerSettings, logger logging.Logger, observe StateObserver) *Breaker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	threshold := st.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	gs := gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logging.String("name", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
			if observe != nil {
				observe(name, to)
			}
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(gs)}
}

// State reports the current breaker state.
func (b *Breaker) State() gobreaker.State {
	if b == nil || b.cb == nil {
		return gobreaker.StateClosed
	}
	return b.cb.State()
}

// Execute runs fn through the breaker. A nil Breaker runs fn directly.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	res, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrCircuitOpen.WithCause(err)
		}
		return zero, err
	}
	return res.(T), nil
}
