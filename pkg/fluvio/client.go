// Package fluvio implements a client for a distributed log-streaming
// broker's wire protocol: a multiplexed connection carrying concurrent
// unary requests and long-lived streaming subscriptions, a partition-
// routing batching producer, a backpressured streaming consumer, and
// topic administration, fronted by bounded retry, a circuit breaker, and
// automatic reconnection.
package fluvio

import (
	"context"
	"fmt"
)

// Client owns up to two Connections: one to the data plane (produce/
// consume) and one to the control plane (topic administration). Producer,
// Consumer, and Admin facades hold non-owning references; disposing them
// does not close either socket.
type Client struct {
	cfg cfg

	dataConn    *conn
	controlConn *conn
}

// NewClient validates opts, dials both the data-plane and control-plane
// connections, and returns a ready-to-use Client. The initial dial always
// happens here regardless of WithoutAutoReconnect: auto-reconnect governs
// recovery after a later failure, not whether the client can connect at
// all.
func NewClient(ctx context.Context, opts ...Opt) (*Client, error) {
	c := defaultCfg()
	for _, o := range opts {
		o.apply(&c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	dataConn := newConn("data", c.dataEndpoint, c)
	if err := dataConn.connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting data plane: %w", err)
	}
	controlConn := newConn("control", c.controlEndpoint, c)
	if err := controlConn.connect(ctx); err != nil {
		_ = dataConn.close()
		return nil, fmt.Errorf("connecting control plane: %w", err)
	}

	return &Client{cfg: c, dataConn: dataConn, controlConn: controlConn}, nil
}

// Producer returns a new facade over the data-plane connection.
func (c *Client) Producer(opts ...ProducerOpt) *Producer {
	return newProducer(c.dataConn, c.cfg.hooks, opts...)
}

// Consumer returns a new facade over the data-plane connection.
func (c *Client) Consumer(opts ...ConsumerOpt) *Consumer {
	return newConsumer(c.dataConn, c.cfg.hooks, opts...)
}

// Admin returns a facade over the control-plane connection.
func (c *Client) Admin() *Admin {
	return newAdmin(c.controlConn, c.cfg.hooks)
}

// Close tears down both connections. It is safe to call once; Producer,
// Consumer, and Admin facades obtained beforehand become unusable.
func (c *Client) Close() error {
	dataErr := c.dataConn.close()
	ctrlErr := c.controlConn.close()
	if dataErr != nil {
		return dataErr
	}
	if ctrlErr != nil {
		return ctrlErr
	}
	return nil
}

// Closed reports whether both connections are in the Failed state, set
// either by Close or by an exhausted reconnection budget. Only Close is
// final: a connection that exhausted its budget is redialed on its next
// operation when auto-reconnect is enabled.
func (c *Client) Closed() bool {
	return c.dataConn.getState() == stateFailed && c.controlConn.getState() == stateFailed
}
