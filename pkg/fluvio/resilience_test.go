package fluvio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nimbusstream/fluvio-go/pkg/flerr"
)

func TestRetrierRetriesRetriableErrors(t *testing.T) {
	c := defaultCfg()
	c.retryBaseDelay = time.Millisecond
	r := newRetrier(c, "data", 0)

	attempts := 0
	err := r.do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return flerr.Disconnected
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetrierDoesNotRetryProtocolErrors(t *testing.T) {
	c := defaultCfg()
	c.retryBaseDelay = time.Millisecond
	r := newRetrier(c, "data", 0)

	attempts := 0
	err := r.do(context.Background(), func() error {
		attempts++
		return flerr.NewProtocolError(36, "exists")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetrierGivesUpAfterMaxRetries(t *testing.T) {
	c := defaultCfg()
	c.retryBaseDelay = time.Millisecond
	c.maxRetries = 2
	r := newRetrier(c, "data", 0)

	attempts := 0
	err := r.do(context.Background(), func() error {
		attempts++
		return flerr.Disconnected
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts) // initial attempt + 2 retries
}

func TestCircuitGateOpensAfterThreshold(t *testing.T) {
	c := defaultCfg()
	c.enableCircuitBreaker = true
	threshold := 2
	breakDuration := time.Minute
	c.cbFailureThreshold = &threshold
	c.cbBreakDuration = &breakDuration
	gate := newCircuitGate(c, "data")

	boom := errors.New("boom")
	require.ErrorIs(t, gate.run(func() error { return boom }), boom)
	require.ErrorIs(t, gate.run(func() error { return boom }), boom)

	calls := 0
	err := gate.run(func() error { calls++; return nil })
	require.ErrorIs(t, err, flerr.CircuitOpen)
	require.Equal(t, 0, calls)
}

func TestCircuitGateDefaultsDifferByRole(t *testing.T) {
	dataThreshold, dataBreak := circuitDefaultsForRole("data")
	require.Equal(t, 5, dataThreshold)
	require.Equal(t, 30*time.Second, dataBreak)

	ctrlThreshold, ctrlBreak := circuitDefaultsForRole("control")
	require.Equal(t, 3, ctrlThreshold)
	require.Equal(t, 60*time.Second, ctrlBreak)
}

func TestRetryCapDiffersByRole(t *testing.T) {
	require.Equal(t, 5*time.Second, retryCapForRole("data"))
	require.Equal(t, 10*time.Second, retryCapForRole("control"))
}

func TestCircuitGateDisabledRunsDirectly(t *testing.T) {
	c := defaultCfg()
	c.enableCircuitBreaker = false
	gate := newCircuitGate(c, "data")
	require.Nil(t, gate)

	calls := 0
	err := gate.run(func() error { calls++; return nil })
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}
