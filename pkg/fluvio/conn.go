package fluvio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nimbusstream/fluvio-go/pkg/flbin"
	"github.com/nimbusstream/fluvio-go/pkg/flerr"
	"github.com/nimbusstream/fluvio-go/pkg/flmsg"
)

// connState is the connection lifecycle state: Disconnected, Connecting,
// Connected, Reconnecting, or Failed. Transitions go through atomic
// stores: setState stores the new state unconditionally and rejects no
// transition; only handleReadOrWriteFailure checks the current state
// (it acts only from Connected).
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateReconnecting
	stateFailed
)

// streamChanCapacity is the bounded record channel capacity that
// enforces backpressure: a slow consumer stalls the reader goroutine
// rather than buffering without limit.
const streamChanCapacity = 100

type pendingResult struct {
	body []byte
	err  error
}

// conn is a multiplexed connection carrying concurrent unary requests
// and long-lived streaming subscriptions over one socket: one write
// lock serializing framed writes, one reader goroutine dispatching
// inbound frames by correlation id, one connection per role rather
// than per request type.
type conn struct {
	role string // "data" or "control", used for hook/log labels
	addr string
	cfg  cfg

	// instanceID distinguishes this conn's log lines from a prior
	// incarnation's after a reconnect, since the socket is replaced. The
	// correlation-id counter is not reset and keeps counting across
	// reconnects.
	instanceID uuid.UUID

	state atomic.Int32

	netConnMu sync.Mutex
	netConn   net.Conn

	writeMu sync.Mutex
	corrID  atomic.Int32

	pendingMu sync.Mutex
	pending   map[int32]chan pendingResult

	streamsMu sync.Mutex
	streams   map[int32]chan flmsg.StreamFetchFrame

	closeOnce sync.Once
	closed    chan struct{}

	gate *circuitGate
}

func newConn(role, addr string, c cfg) *conn {
	return &conn{
		role:       role,
		addr:       addr,
		cfg:        c,
		instanceID: uuid.New(),
		pending:    make(map[int32]chan pendingResult),
		streams:    make(map[int32]chan flmsg.StreamFetchFrame),
		closed:     make(chan struct{}),
		gate:       newCircuitGate(c, role),
	}
}

func (c *conn) setState(s connState) { c.state.Store(int32(s)) }
func (c *conn) getState() connState  { return connState(c.state.Load()) }

func (c *conn) tlsConfig() *tls.Config {
	if !c.cfg.useTLS {
		return nil
	}
	if c.cfg.tlsConfig != nil {
		return c.cfg.tlsConfig
	}
	return &tls.Config{}
}

// connect dials addr and starts the reader goroutine. Each successful dial
// gets a fresh instanceID: a reconnect replaces the socket, so log lines
// should not imply continuity with the prior incarnation.
func (c *conn) connect(ctx context.Context) error {
	c.setState(stateConnecting)
	nc, err := dialFrame(c.addr, c.cfg.connectionTimeout, c.tlsConfig())
	if err != nil {
		c.setState(stateFailed)
		c.cfg.hooks.OnConnectionFailed(c.role)
		return err
	}
	c.instanceID = uuid.New()
	c.netConnMu.Lock()
	c.netConn = nc
	c.netConnMu.Unlock()
	c.setState(stateConnected)
	c.cfg.hooks.OnConnectionOpened(c.role)
	c.cfg.logger.Info("connection established",
		zap.String("role", c.role), zap.String("addr", c.addr), zap.String("conn_id", c.instanceID.String()))
	go c.readLoop(nc)
	return nil
}

// ensureConnected returns nil once the connection is in the Connected
// state, dialing (or redialing, with bounded exponential backoff) as
// needed.
func (c *conn) ensureConnected(ctx context.Context) error {
	if c.getState() == stateConnected {
		return nil
	}
	select {
	case <-c.closed:
		return flerr.Disconnected
	default:
	}
	if !c.cfg.enableAutoReconnect {
		return flerr.Disconnected
	}

	c.setState(stateReconnecting)
	delay := c.cfg.reconnectBaseDelay
	var lastErr error
	for attempt := 0; attempt < c.cfg.maxReconnectAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-c.closed:
				timer.Stop()
				return flerr.Disconnected
			}
			delay *= 2
		}
		if err := c.connect(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	c.setState(stateFailed)
	return fmt.Errorf("%w: %v", flerr.ConnectionFailed, lastErr)
}

// nextCorrID returns the next correlation id, wrapping at int32 max.
func (c *conn) nextCorrID() int32 {
	return c.corrID.Add(1)
}

// do performs one unary request/response exchange: encode the header and
// body, write the frame under the write lock, register a one-shot
// completion, and wait for either the reader goroutine to deliver the
// response or ctx to finish. It returns the response body with the
// correlation id prefix already stripped.
func (c *conn) do(ctx context.Context, apiKey, apiVersion int16, body []byte) ([]byte, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	r := newRetrier(c.cfg, c.role, apiKey)
	var result []byte
	err := c.gate.run(func() error {
		return r.do(ctx, func() error {
			if err := c.ensureConnected(ctx); err != nil {
				return err
			}
			res, err := c.doOnce(ctx, apiKey, apiVersion, body)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	c.cfg.hooks.OnRequest(apiKey, time.Since(start), err)
	return result, err
}

func (c *conn) doOnce(ctx context.Context, apiKey, apiVersion int16, body []byte) ([]byte, error) {
	corrID := c.nextCorrID()
	ch := make(chan pendingResult, 1)
	c.pendingMu.Lock()
	c.pending[corrID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, corrID)
		c.pendingMu.Unlock()
	}()

	if err := c.writeRequest(apiKey, apiVersion, corrID, body); err != nil {
		return nil, err
	}

	deadline := time.NewTimer(c.cfg.requestTimeout)
	defer deadline.Stop()
	select {
	case res := <-ch:
		return res.body, res.err
	case <-ctx.Done():
		return nil, flerr.Cancelled
	case <-deadline.C:
		return nil, flerr.Timeout
	case <-c.closed:
		return nil, flerr.Disconnected
	}
}

// openStream sends a stream-fetch style request once and registers a
// bounded streaming channel for its correlation id: the broker replies
// with an unbounded series of frames sharing that id. The returned
// cancel func unregisters the channel (used by fetch_batch,
// which reads exactly one frame from what is otherwise an unbounded
// session and then walks away without tearing down the socket).
func (c *conn) openStream(ctx context.Context, apiKey, apiVersion int16, body []byte) (<-chan flmsg.StreamFetchFrame, func(), error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, nil, err
	}
	corrID := c.nextCorrID()
	ch := make(chan flmsg.StreamFetchFrame, streamChanCapacity)
	c.streamsMu.Lock()
	c.streams[corrID] = ch
	c.streamsMu.Unlock()

	cancel := func() {
		c.streamsMu.Lock()
		delete(c.streams, corrID)
		c.streamsMu.Unlock()
	}

	if err := c.writeRequest(apiKey, apiVersion, corrID, body); err != nil {
		cancel()
		return nil, nil, err
	}
	return ch, cancel, nil
}

func (c *conn) writeRequest(apiKey, apiVersion int16, corrID int32, body []byte) error {
	var clientID *string
	if c.cfg.clientID != nil {
		clientID = c.cfg.clientID
	}
	w := flbin.NewWriter(16 + len(body))
	hdr := flmsg.RequestHeader{APIKey: apiKey, APIVersion: apiVersion, CorrelationID: corrID, ClientID: clientID}
	hdr.Encode(w)
	w.Raw(body)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.netConnMu.Lock()
	nc := c.netConn
	c.netConnMu.Unlock()
	if nc == nil {
		return flerr.Disconnected
	}
	if err := writeFrame(nc, w.Bytes()); err != nil {
		c.handleReadOrWriteFailure(err)
		return err
	}
	return nil
}

// readLoop is the connection's single reader goroutine, one per live
// socket. It dispatches each inbound frame to a one-shot completion or
// a streaming channel by correlation id; unmatched ids are a stray
// response and are discarded.
func (c *conn) readLoop(nc net.Conn) {
	for {
		frameBody, err := readFrame(nc)
		if err != nil {
			c.handleReadOrWriteFailure(err)
			return
		}
		r := flbin.NewReader(frameBody)
		hdr := flmsg.DecodeResponseHeader(r)
		rest := r.Raw(r.Remaining())

		c.pendingMu.Lock()
		pend, isPending := c.pending[hdr.CorrelationID]
		if isPending {
			delete(c.pending, hdr.CorrelationID)
		}
		c.pendingMu.Unlock()
		if isPending {
			pend <- pendingResult{body: rest, err: nil}
			continue
		}

		c.streamsMu.Lock()
		sch, isStream := c.streams[hdr.CorrelationID]
		c.streamsMu.Unlock()
		if isStream {
			sr := flbin.NewReader(rest)
			frame := flmsg.DecodeStreamFetchFrame(sr)
			if frame.ErrorCode != 0 {
				c.streamsMu.Lock()
				delete(c.streams, hdr.CorrelationID)
				c.streamsMu.Unlock()
			}
			// Blocking send enforces backpressure through to the
			// socket read.
			sch <- frame
			if frame.ErrorCode != 0 {
				close(sch)
			}
			continue
		}

		c.cfg.logger.Warn("stray response",
			zap.Int32("correlation_id", hdr.CorrelationID), zap.String("conn_id", c.instanceID.String()))
	}
}

// handleReadOrWriteFailure transitions the connection out of Connected,
// fails every pending one-shot with Disconnected, and closes every
// streaming sink: a stream_id is never portable across sockets, so a
// reconnect cannot resume an in-flight stream.
func (c *conn) handleReadOrWriteFailure(err error) {
	if c.getState() != stateConnected {
		return
	}
	c.setState(stateDisconnected)
	c.cfg.hooks.OnConnectionClosed(c.role)
	c.cfg.logger.Warn("connection lost",
		zap.String("role", c.role), zap.String("conn_id", c.instanceID.String()), zap.Error(err))

	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int32]chan pendingResult)
	c.pendingMu.Unlock()
	for _, ch := range pending {
		ch <- pendingResult{err: flerr.Disconnected}
	}

	c.streamsMu.Lock()
	streams := c.streams
	c.streams = make(map[int32]chan flmsg.StreamFetchFrame)
	c.streamsMu.Unlock()
	for _, ch := range streams {
		close(ch)
	}
}

// close tears down the connection permanently.
func (c *conn) close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.netConnMu.Lock()
		nc := c.netConn
		c.netConnMu.Unlock()
		if nc != nil {
			err = nc.Close()
		}
		c.setState(stateFailed)
	})
	return err
}
