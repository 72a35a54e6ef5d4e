package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// GapFiller estimates missing values. It never returns an error: a failed
// call is an Estimate with no values and Err set.
type GapFiller interface {
	Estimate(ctx context.Context, fields []Field, c Context) Estimate
}

// Estimate is the outcome of one oracle call.
type Estimate struct {
	// Values holds the fields that passed validation.
	Values map[Field]float64
	// Reasoning is the model's optional explanation.
	Reasoning string
	// Rejected lists requested fields that were returned but failed
	// validation, or were not known fields at all.
	Rejected []Field
	// Err is why no fields were recovered, if the call failed outright.
	Err error
}

// Get returns an accepted value.
func (e Estimate) Get(f Field) (float64, bool) {
	v, ok := e.Values[f]
	return v, ok
}

// Recovered reports whether any field was accepted.
func (e Estimate) Recovered() bool { return len(e.Values) > 0 }

func failed(err error, unknown []Field) Estimate {
	return Estimate{Err: err, Rejected: unknown}
}

// Metrics is the subset of the metrics surface the oracle reports to.
type Metrics interface {
	RecordOracleCall(outcome string, d time.Duration)
	RecordOracleField(field string, accepted bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordOracleCall(string, time.Duration) {}
func (nopMetrics) RecordOracleField(string, bool)         {}

// Call outcomes reported to Metrics.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
	OutcomeMalformed   = "malformed"
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 20 * time.Second

// Oracle is the GapFiller backed by a chat model. It makes exactly one
// attempt per call.
type Oracle struct {
	client  ChatClient
	prompts *PromptManager
	schemas map[Field]*jsonschema.Schema
	limiter resilience.Limiter
	breaker *resilience.Breaker
	timeout time.Duration
	metrics Metrics
	logger  logging.Logger
}

// Option customizes an Oracle.
type Option func(*Oracle)

// WithLimiter gates calls through l.
func WithLimiter(l resilience.Limiter) Option {
	return func(o *Oracle) {
		if l != nil {
			o.limiter = l
		}
	}
}

// WithBreaker guards calls with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(o *Oracle) { o.breaker = b }
}

// WithTimeout sets the fixed per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Oracle) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMetrics reports call and field outcomes to m.
func WithMetrics(m Metrics) Option {
	return func(o *Oracle) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Oracle) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPromptManager replaces the built-in prompts.
func WithPromptManager(pm *PromptManager) Option {
	return func(o *Oracle) {
		if pm != nil {
			o.prompts = pm
		}
	}
}

// New builds an Oracle over client.
func New(client ChatClient, opts ...Option) (*Oracle, error) {
	if client == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "oracle: chat client is required")
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	o := &Oracle{
		client:  client,
		schemas: schemas,
		limiter: resilience.Unlimited{},
		timeout: DefaultTimeout,
		metrics: nopMetrics{},
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.prompts == nil {
		if o.prompts, err = NewPromptManager(); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.Named("oracle")
	return o, nil
}

// NewFromConfig wires an Oracle from configuration, or returns Disabled when
// the oracle is switched off.
func NewFromConfig(cfg config.OracleConfig, limiters *resilience.LimiterSet, metrics Metrics, logger logging.Logger, observe resilience.StateObserver) (GapFiller, error) {
	if !cfg.Enabled {
		return Disabled{}, nil
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if limiters == nil {
		limiters = resilience.NewLimiterSet()
	}
	client := NewOpenAIClient(OpenAIConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}, &http.Client{Timeout: DefaultHTTPTimeout})
	breaker := resilience.NewBreaker(resilience.BreakerSettings{
		Name:             resilience.DependencyOracle,
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}, logger, observe)

	return New(client,
		WithLimiter(limiters.Register(resilience.DependencyOracle, cfg.RatePerSecond, cfg.Burst)),
		WithBreaker(breaker),
		WithTimeout(cfg.Timeout),
		WithMetrics(metrics),
		WithLogger(logger),
	)
}

// Estimate asks for fields in one call. Unknown fields are rejected up front;
// every failure yields an Estimate with no values.
func (o *Oracle) Estimate(ctx context.Context, fields []Field, c Context) Estimate {
	fields, unknown := normalizeFields(fields)
	if len(fields) == 0 {
		return Estimate{Rejected: unknown}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	msgs, err := o.prompts.Build(fields, c)
	if err != nil {
		o.logger.Error("failed to build oracle prompt", logging.Err(err))
		return failed(err, unknown)
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return o.fail(OutcomeRateLimited, start, c,
			errors.Wrap(err, errors.ErrCodeOracleRateLimited, "oracle: rate limit wait failed"), unknown)
	}

	content, err := resilience.Execute(o.breaker, func() (string, error) {
		return o.client.Complete(ctx, msgs)
	})
	if err != nil {
		return o.fail(classify(ctx, err), start, c, err, unknown)
	}

	obj, err := extractObject(content)
	if err != nil {
		return o.fail(OutcomeMalformed, start, c, err, unknown)
	}

	est := o.validate(obj, fields)
	est.Rejected = append(unknown, est.Rejected...)
	o.metrics.RecordOracleCall(OutcomeOK, time.Since(start))
	o.logger.Debug("oracle estimate received",
		logging.String("company", c.CompanyName),
		logging.String("country", c.Country),
		logging.Int("requested", len(fields)),
		logging.Int("accepted", len(est.Values)),
	)
	return est
}

// validate keeps only requested fields whose values pass their schema.
// Missing keys are neither accepted nor rejected.
func (o *Oracle) validate(obj map[string]json.RawMessage, fields []Field) Estimate {
	est := Estimate{Values: make(map[Field]float64, len(fields)), Reasoning: reasoningOf(obj)}
	for _, f := range fields {
		raw, ok := obj[string(f)]
		if !ok {
			continue
		}
		v, err := o.check(f, raw)
		if err != nil {
			o.logger.Warn("discarding oracle field",
				logging.String("field", string(f)),
				logging.String("raw", string(raw)),
				logging.Err(err),
			)
			est.Rejected = append(est.Rejected, f)
			o.metrics.RecordOracleField(string(f), false)
			continue
		}
		est.Values[f] = v
		o.metrics.RecordOracleField(string(f), true)
	}
	return est
}

func (o *Oracle) check(f Field, raw json.RawMessage) (float64, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	if err := o.schemas[f].Validate(v); err != nil {
		return 0, err
	}
	n, ok := v.(float64)
	if !ok {
		return 0, errors.New(errors.ErrCodeOracleMalformed, "oracle: value is not a number")
	}
	return n, nil
}

func (o *Oracle) fail(outcome string, start time.Time, c Context, err error, unknown []Field) Estimate {
	o.metrics.RecordOracleCall(outcome, time.Since(start))
	o.logger.Warn("oracle call failed, no fields recovered",
		logging.String("outcome", outcome),
		logging.String("company", c.CompanyName),
		logging.String("country", c.Country),
		logging.Err(err),
	)
	return failed(err, unknown)
}

func classify(ctx context.Context, err error) string {
	switch {
	case errors.IsCode(err, errors.ErrCodeOracleCircuitOpen):
		return OutcomeCircuitOpen
	case errors.IsCode(err, errors.ErrCodeOracleTimeout), ctx.Err() == context.DeadlineExceeded:
		return OutcomeTimeout
	case errors.IsCode(err, errors.ErrCodeOracleMalformed):
		return OutcomeMalformed
	default:
		return OutcomeUnavailable
	}
}

// Disabled is the GapFiller used when no oracle is configured.
type Disabled struct{}

// ErrDisabled is the Err of every Disabled estimate.
var ErrDisabled = errors.New(errors.ErrCodeOracleDisabled, "oracle is disabled")

func (Disabled) Estimate(_ context.Context, _ []Field, _ Context) Estimate {
	return Estimate{Err: ErrDisabled}
}

// IsDisabled reports whether g is the Disabled filler.
func IsDisabled(g GapFiller) bool {
	_, ok := g.(Disabled)
	return ok
}
