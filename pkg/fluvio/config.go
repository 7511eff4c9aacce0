package fluvio

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nimbusstream/fluvio-go/pkg/flerr"
)

// Default configuration values.
const (
	DefaultDataEndpoint      = "localhost:9010"
	DefaultControlEndpoint   = "localhost:9003"
	DefaultConnectionTimeout = 30 * time.Second
	DefaultRequestTimeout    = 60 * time.Second
	DefaultMaxRetries        = 3
	DefaultRetryBaseDelay    = 100 * time.Millisecond
)

// cfg is the client's fully-resolved configuration, built by applying a
// sequence of Opt values over a defaulted struct, the functional-options
// pattern used throughout this ecosystem's client configs.
type cfg struct {
	dataEndpoint    string
	controlEndpoint string
	useTLS          bool
	tlsConfig       *tls.Config
	clientID        *string

	connectionTimeout time.Duration
	requestTimeout    time.Duration

	maxRetries     int
	retryBaseDelay time.Duration

	enableCircuitBreaker bool
	// cbFailureThreshold/cbBreakDuration are nil until WithCircuitBreaker
	// is called explicitly; an unset value falls back to the role-specific
	// default in newCircuitGate (data: 5 failures/30s, control: 3
	// failures/60s) rather than one shared number.
	cbFailureThreshold *int
	cbBreakDuration    *time.Duration

	enableAutoReconnect  bool
	maxReconnectAttempts int
	reconnectBaseDelay   time.Duration

	logger Logger
	hooks  Hooks
}

func defaultCfg() cfg {
	return cfg{
		dataEndpoint:      DefaultDataEndpoint,
		controlEndpoint:   DefaultControlEndpoint,
		connectionTimeout: DefaultConnectionTimeout,
		requestTimeout:    DefaultRequestTimeout,

		maxRetries:     DefaultMaxRetries,
		retryBaseDelay: DefaultRetryBaseDelay,

		enableCircuitBreaker: true,

		enableAutoReconnect:  true,
		maxReconnectAttempts: 5,
		reconnectBaseDelay:   200 * time.Millisecond,

		logger: noopLogger{},
		hooks:  noopHooks{},
	}
}

// validate checks the resolved configuration for internal consistency.
func (c cfg) validate() error {
	for _, ep := range []string{c.dataEndpoint, c.controlEndpoint} {
		if err := validateHostPort(ep); err != nil {
			return fmt.Errorf("%w: %s: %v", flerr.InvalidConfiguration, ep, err)
		}
	}
	if c.connectionTimeout >= c.requestTimeout {
		return fmt.Errorf("%w: connection_timeout must be less than request_timeout", flerr.InvalidConfiguration)
	}
	if c.maxRetries <= 0 {
		return fmt.Errorf("%w: max_retries must be positive", flerr.InvalidConfiguration)
	}
	if c.retryBaseDelay <= 0 {
		return fmt.Errorf("%w: retry_base_delay must be positive", flerr.InvalidConfiguration)
	}
	if c.enableCircuitBreaker && c.cbFailureThreshold != nil && *c.cbFailureThreshold <= 0 {
		return fmt.Errorf("%w: cb_failure_threshold must be positive", flerr.InvalidConfiguration)
	}
	if c.enableAutoReconnect && c.maxReconnectAttempts <= 0 {
		return fmt.Errorf("%w: max_reconnect_attempts must be positive", flerr.InvalidConfiguration)
	}
	return nil
}

func validateHostPort(hostport string) error {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return err
	}
	if host == "" {
		return fmt.Errorf("empty host")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("non-numeric port %q", portStr)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range [1, 65535]", port)
	}
	return nil
}

// Opt configures client-level behavior: endpoints, TLS, timeouts,
// resilience, and observability hooks.
type Opt interface {
	apply(*cfg)
}

type optFunc func(*cfg)

func (f optFunc) apply(c *cfg) { f(c) }

// WithDataEndpoint overrides the data-plane (partition leader) endpoint.
func WithDataEndpoint(hostport string) Opt {
	return optFunc(func(c *cfg) { c.dataEndpoint = hostport })
}

// WithControlEndpoint overrides the control-plane endpoint.
func WithControlEndpoint(hostport string) Opt {
	return optFunc(func(c *cfg) { c.controlEndpoint = hostport })
}

// WithTLS enables TLS on both endpoints, optionally with a custom config.
func WithTLS(tlsConfig *tls.Config) Opt {
	return optFunc(func(c *cfg) {
		c.useTLS = true
		c.tlsConfig = tlsConfig
	})
}

// WithClientID sets the optional client id sent in every request header.
func WithClientID(id string) Opt {
	return optFunc(func(c *cfg) { c.clientID = &id })
}

// WithConnectionTimeout overrides the dial/TLS-handshake deadline.
func WithConnectionTimeout(d time.Duration) Opt {
	return optFunc(func(c *cfg) { c.connectionTimeout = d })
}

// WithRequestTimeout overrides the per-request deadline.
func WithRequestTimeout(d time.Duration) Opt {
	return optFunc(func(c *cfg) { c.requestTimeout = d })
}

// WithRetry configures bounded-retry behavior.
func WithRetry(maxRetries int, baseDelay time.Duration) Opt {
	return optFunc(func(c *cfg) {
		c.maxRetries = maxRetries
		c.retryBaseDelay = baseDelay
	})
}

// WithCircuitBreaker enables the circuit breaker with the given
// consecutive-failure threshold and open-state duration, overriding the
// role-specific defaults (5 failures/30s for the data connection, 3
// failures/60s for the control connection) for both connections alike.
func WithCircuitBreaker(failureThreshold int, breakDuration time.Duration) Opt {
	return optFunc(func(c *cfg) {
		c.enableCircuitBreaker = true
		c.cbFailureThreshold = &failureThreshold
		c.cbBreakDuration = &breakDuration
	})
}

// WithoutCircuitBreaker disables the circuit breaker entirely.
func WithoutCircuitBreaker() Opt {
	return optFunc(func(c *cfg) { c.enableCircuitBreaker = false })
}

// WithAutoReconnect configures automatic reconnection bounds.
func WithAutoReconnect(maxAttempts int, baseDelay time.Duration) Opt {
	return optFunc(func(c *cfg) {
		c.enableAutoReconnect = true
		c.maxReconnectAttempts = maxAttempts
		c.reconnectBaseDelay = baseDelay
	})
}

// WithoutAutoReconnect disables reconnection: a dropped connection
// surfaces Disconnected to every in-flight and future caller.
func WithoutAutoReconnect() Opt {
	return optFunc(func(c *cfg) { c.enableAutoReconnect = false })
}

// WithLogger installs a structured logger used for events emitted at
// well-defined points in the connection lifecycle.
func WithLogger(l Logger) Opt {
	return optFunc(func(c *cfg) { c.logger = l })
}

// WithHooks installs an observability hook set.
func WithHooks(h Hooks) Opt {
	return optFunc(func(c *cfg) { c.hooks = h })
}
