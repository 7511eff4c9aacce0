package fluvio

import (
	"context"
	"sync"
	"time"

	"github.com/nimbusstream/fluvio-go/pkg/flbin"
	"github.com/nimbusstream/fluvio-go/pkg/flerr"
	"github.com/nimbusstream/fluvio-go/pkg/flmsg"
)

// consumerCfg holds identity/auto-commit knobs.
type consumerCfg struct {
	consumerID     *string
	commitInterval time.Duration // zero disables auto-commit
}

// ConsumerOpt configures a Consumer at construction.
type ConsumerOpt interface{ apply(*consumerCfg) }

type consumerOptFunc func(*consumerCfg)

func (f consumerOptFunc) apply(c *consumerCfg) { f(c) }

// WithConsumerID sets the identity offsets are persisted under
// cluster-side.
func WithConsumerID(id string) ConsumerOpt {
	return consumerOptFunc(func(c *consumerCfg) { c.consumerID = &id })
}

// WithAutoCommit enables periodic offset commits at interval, requiring a
// consumer id (set separately via WithConsumerID).
func WithAutoCommit(interval time.Duration) ConsumerOpt {
	return consumerOptFunc(func(c *consumerCfg) { c.commitInterval = interval })
}

// Consumer reads records from one (topic, partition) at a time;
// subscribing to multiple partitions takes multiple Consumers.
type Consumer struct {
	conn  *conn
	hooks Hooks
	ccfg  consumerCfg
}

func newConsumer(c *conn, hooks Hooks, opts ...ConsumerOpt) *Consumer {
	cc := consumerCfg{}
	for _, o := range opts {
		o.apply(&cc)
	}
	return &Consumer{conn: c, hooks: hooks, ccfg: cc}
}

// StreamSession is the handle for an open, infinite streaming-fetch
// session. Records arrive in order on the Records channel; the channel
// closes when the session ends, at which point Err reports why (nil for
// a caller-driven shutdown via context cancellation).
type StreamSession struct {
	Records <-chan Record

	mu  sync.Mutex
	err error
}

func (s *StreamSession) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Err returns the error that ended the session, if any. Only meaningful
// once Records has closed.
func (s *StreamSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stream opens a new, non-restartable streaming-fetch session starting at
// startOffset (use OffsetEarliest, OffsetLatest, OffsetStoredOrEarliest,
// or OffsetStoredOrLatest for the reset sentinels; the stored_or variants
// are resolved against a committed offset before the request is sent).
// The returned session's Records channel is bounded at streamChanCapacity:
// a slow reader blocks the connection's reader goroutine, which blocks
// the socket read.
func (c *Consumer) Stream(ctx context.Context, topic string, partition int32, startOffset int64) (*StreamSession, error) {
	resolved, err := c.resolveStartOffset(ctx, topic, partition, startOffset)
	if err != nil {
		return nil, err
	}
	req := flmsg.StreamFetchRequest{
		Topic:       topic,
		Partition:   partition,
		StartOffset: resolved,
		MaxBytes:    0,
		Isolation:   flmsg.IsolationUncommitted,
		ConsumerID:  c.ccfg.consumerID,
	}
	frames, cancel, err := c.conn.openStream(ctx, flmsg.APIKeyStreamFetch, flmsg.StreamFetchVersion, req.Encode())
	if err != nil {
		return nil, err
	}

	out := make(chan Record, streamChanCapacity)
	session := &StreamSession{Records: out}
	go c.pump(ctx, topic, partition, frames, out, session, cancel)
	return session, nil
}

// resolveStartOffset turns the stored_or_earliest/stored_or_latest
// sentinels into a concrete offset by looking up the consumer's last
// committed offset, falling back to the corresponding plain sentinel
// when no consumer id is set or nothing is stored. Plain offsets
// (including OffsetEarliest and OffsetLatest) pass through unchanged.
func (c *Consumer) resolveStartOffset(ctx context.Context, topic string, partition int32, startOffset int64) (int64, error) {
	var fallback int64
	switch startOffset {
	case flmsg.OffsetStoredOrEarliest:
		fallback = flmsg.OffsetEarliest
	case flmsg.OffsetStoredOrLatest:
		fallback = flmsg.OffsetLatest
	default:
		return startOffset, nil
	}
	if c.ccfg.consumerID == nil {
		return fallback, nil
	}
	stored, err := c.FetchLastOffset(ctx, *c.ccfg.consumerID, topic, partition)
	if err != nil {
		return 0, err
	}
	if stored == nil {
		return fallback, nil
	}
	return *stored + 1, nil
}

// pump decodes stream-fetch frames into records until the session ends,
// then unregisters the stream's channel via cancel so a frame arriving
// after shutdown has nowhere to block the connection's single reader
// goroutine.
func (c *Consumer) pump(ctx context.Context, topic string, partition int32, frames <-chan flmsg.StreamFetchFrame, out chan<- Record, session *StreamSession, cancel func()) {
	defer cancel()
	defer close(out)

	var lastOffset int64 = -1
	var lastCommitted int64 = -1
	var lastCommitTime time.Time

	commitIfDue := func() {
		if c.ccfg.commitInterval <= 0 || c.ccfg.consumerID == nil {
			return
		}
		if lastOffset == lastCommitted {
			return
		}
		if !lastCommitTime.IsZero() && time.Since(lastCommitTime) < c.ccfg.commitInterval {
			return
		}
		if err := c.CommitOffset(context.Background(), *c.ccfg.consumerID, topic, partition, lastOffset, 0); err == nil {
			lastCommitted = lastOffset
			lastCommitTime = time.Now()
		}
	}

	for {
		select {
		case <-ctx.Done():
			if c.ccfg.commitInterval > 0 && c.ccfg.consumerID != nil && lastOffset != lastCommitted && lastOffset >= 0 {
				_ = c.CommitOffset(context.Background(), *c.ccfg.consumerID, topic, partition, lastOffset, 0)
			}
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if frame.ErrorCode != 0 {
				session.setErr(flerr.NewStreamError(frame.ErrorCode))
				return
			}
			batch, err := flmsg.Decode(frame.RecordSet)
			if err != nil {
				session.setErr(err)
				return
			}
			for _, rec := range batch.Records {
				select {
				case out <- rec:
					lastOffset = rec.Offset
				case <-ctx.Done():
					return
				}
			}
			c.hooks.OnRecordsConsumed(topic, len(batch.Records))
			commitIfDue()
		}
	}
}

// FetchBatch issues one stream-fetch request, reads exactly the one
// response frame it yields, and returns its decoded records without
// leaving a long-lived session registered.
func (c *Consumer) FetchBatch(ctx context.Context, topic string, partition int32, startOffset int64, maxBytes int32) ([]Record, error) {
	req := flmsg.StreamFetchRequest{
		Topic:       topic,
		Partition:   partition,
		StartOffset: startOffset,
		MaxBytes:    maxBytes,
		Isolation:   flmsg.IsolationUncommitted,
		ConsumerID:  c.ccfg.consumerID,
	}
	frames, cancel, err := c.conn.openStream(ctx, flmsg.APIKeyStreamFetch, flmsg.StreamFetchVersion, req.Encode())
	if err != nil {
		return nil, err
	}
	defer cancel()

	select {
	case frame, ok := <-frames:
		if !ok {
			return nil, flerr.Disconnected
		}
		if frame.ErrorCode != 0 {
			return nil, flerr.NewStreamError(frame.ErrorCode)
		}
		batch, err := flmsg.Decode(frame.RecordSet)
		if err != nil {
			return nil, err
		}
		c.hooks.OnRecordsConsumed(topic, len(batch.Records))
		return batch.Records, nil
	case <-ctx.Done():
		return nil, flerr.Cancelled
	}
}

// FetchLastOffset looks up a consumer's last committed offset, returning
// nil if none is stored.
func (c *Consumer) FetchLastOffset(ctx context.Context, consumerID, topic string, partition int32) (*int64, error) {
	req := flmsg.FetchConsumerOffsetsRequest{ConsumerID: consumerID, Topic: topic, Partition: partition}
	body, err := c.conn.do(ctx, flmsg.APIKeyFetchConsumerOffsets, flmsg.FetchConsumerOffsetsVersion, req.Encode())
	if err != nil {
		return nil, err
	}
	resp := flmsg.DecodeFetchConsumerOffsetsResponse(flbin.NewReader(body))
	if resp.ErrorCode != 0 {
		return nil, flerr.NewProtocolError(resp.ErrorCode, "")
	}
	return resp.Offset, nil
}

// CommitOffset persists a consumer's processed offset.
func (c *Consumer) CommitOffset(ctx context.Context, consumerID, topic string, partition int32, offset int64, sessionID uint32) error {
	req := flmsg.UpdateConsumerOffsetRequest{
		ConsumerID: consumerID,
		Topic:      topic,
		Partition:  partition,
		Offset:     offset,
		SessionID:  sessionID,
	}
	body, err := c.conn.do(ctx, flmsg.APIKeyUpdateConsumerOffset, flmsg.UpdateConsumerOffsetVersion, req.Encode())
	if err != nil {
		return err
	}
	resp := flmsg.DecodeUpdateConsumerOffsetResponse(flbin.NewReader(body))
	if resp.ErrorCode != 0 {
		return flerr.NewProtocolError(resp.ErrorCode, "")
	}
	return nil
}
