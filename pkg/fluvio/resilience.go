package fluvio

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eapache/go-resiliency/breaker"

	"github.com/nimbusstream/fluvio-go/pkg/flerr"
)

// retrier wraps an operation with bounded exponential-backoff retry,
// retrying only errors flerr.IsRetriable classifies as safe to retry,
// built on cenkalti/backoff/v4's ExponentialBackOff combined with
// WithMaxRetries/WithContext.
type retrier struct {
	maxRetries  int
	baseDelay   time.Duration
	maxInterval time.Duration
	hooks       Hooks
	apiKey      int16
}

// retryCapForRole returns the ceiling each backoff interval is clamped to:
// 5s for the data connection, 10s for the control (admin) connection.
func retryCapForRole(role string) time.Duration {
	if role == "control" {
		return 10 * time.Second
	}
	return 5 * time.Second
}

func newRetrier(c cfg, role string, apiKey int16) retrier {
	return retrier{
		maxRetries:  c.maxRetries,
		baseDelay:   c.retryBaseDelay,
		maxInterval: retryCapForRole(role),
		hooks:       c.hooks,
		apiKey:      apiKey,
	}
}

// do runs op, retrying on retriable failures up to maxRetries additional
// attempts with exponential backoff. Non-retriable errors (ProtocolError,
// StreamError, CircuitOpen, Cancelled) return immediately.
func (r retrier) do(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.baseDelay
	bo.Multiplier = 2
	bo.MaxInterval = r.maxInterval
	bo.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not elapsed time

	attempt := 0
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !flerr.IsRetriable(err) {
			return backoff.Permanent(err)
		}
		attempt++
		r.hooks.OnRetry(r.apiKey, attempt)
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.maxRetries)), ctx))
}

// circuitGate wraps an operation with a circuit breaker built on
// eapache/go-resiliency/breaker. A tripped breaker rejects calls with
// flerr.CircuitOpen without attempting I/O.
type circuitGate struct {
	b     *breaker.Breaker
	hooks Hooks
	role  string
}

// circuitDefaultsForRole returns the failure-threshold/break-duration
// pair used when WithCircuitBreaker has not overridden them: 5
// failures/30s for the data connection, 3 failures/60s for the control
// (admin) connection.
func circuitDefaultsForRole(role string) (int, time.Duration) {
	if role == "control" {
		return 3, 60 * time.Second
	}
	return 5, 30 * time.Second
}

func newCircuitGate(c cfg, role string) *circuitGate {
	if !c.enableCircuitBreaker {
		return nil
	}
	defaultThreshold, defaultBreak := circuitDefaultsForRole(role)
	threshold := defaultThreshold
	if c.cbFailureThreshold != nil {
		threshold = *c.cbFailureThreshold
	}
	breakDuration := defaultBreak
	if c.cbBreakDuration != nil {
		breakDuration = *c.cbBreakDuration
	}
	return &circuitGate{
		b:     breaker.New(threshold, 1, breakDuration),
		hooks: c.hooks,
		role:  role,
	}
}

// run executes op through the breaker, or directly if the gate is nil
// (circuit breaker disabled).
func (g *circuitGate) run(op func() error) error {
	if g == nil {
		return op()
	}
	err := g.b.Run(op)
	if err == breaker.ErrBreakerOpen {
		g.hooks.OnCircuitOpen(g.role)
		return flerr.CircuitOpen
	}
	return err
}
