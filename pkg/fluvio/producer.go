package fluvio

import (
	"context"
	"sync"
	"time"

	"github.com/nimbusstream/fluvio-go/pkg/flbin"
	"github.com/nimbusstream/fluvio-go/pkg/flerr"
	"github.com/nimbusstream/fluvio-go/pkg/flmsg"
)

// producerCfg holds batching/partitioning knobs.
type producerCfg struct {
	lingerTime  time.Duration
	batchSize   int
	partitioner Partitioner
}

func defaultProducerCfg() producerCfg {
	return producerCfg{batchSize: 1, partitioner: NewKeyHashPartitioner()}
}

// ProducerOpt configures a Producer at construction.
type ProducerOpt interface{ apply(*producerCfg) }

type producerOptFunc func(*producerCfg)

func (f producerOptFunc) apply(c *producerCfg) { f(c) }

// WithLinger sets the buffering window: together with WithBatchSize > 1,
// send enqueues records instead of sending immediately, flushing once the
// linger timer fires. A zero linger (the default) disables buffering
// entirely: Send sends each record immediately.
func WithLinger(d time.Duration) ProducerOpt {
	return producerOptFunc(func(c *producerCfg) { c.lingerTime = d })
}

// WithBatchSize sets the buffer size that triggers an immediate flush.
func WithBatchSize(n int) ProducerOpt {
	return producerOptFunc(func(c *producerCfg) { c.batchSize = n })
}

// WithPartitioner overrides the default KeyHashPartitioner.
func WithPartitioner(p Partitioner) ProducerOpt {
	return producerOptFunc(func(c *producerCfg) { c.partitioner = p })
}

type pendingRecord struct {
	rec  Record
	done chan sendResult
}

type sendResult struct {
	offset int64
	err    error
}

// topicBuffer is the per-topic linger buffer guarded by its own mutex.
type topicBuffer struct {
	mu      sync.Mutex
	pending []pendingRecord
	timer   *time.Timer
}

// Producer routes records to partitions and sends them to the data-plane
// connection.
type Producer struct {
	conn  *conn
	hooks Hooks
	pcfg  producerCfg

	partCountMu     sync.RWMutex
	partitionCounts map[string]int32

	buffersMu sync.Mutex
	buffers   map[string]*topicBuffer
}

func newProducer(c *conn, hooks Hooks, opts ...ProducerOpt) *Producer {
	pc := defaultProducerCfg()
	for _, o := range opts {
		o.apply(&pc)
	}
	return &Producer{
		conn:            c,
		hooks:           hooks,
		pcfg:            pc,
		partitionCounts: make(map[string]int32),
		buffers:         make(map[string]*topicBuffer),
	}
}

// SetPartitionCount records the partition count a topic currently has,
// used by the partitioner to pick a destination. Topics never configured
// default to a single partition.
func (p *Producer) SetPartitionCount(topic string, n int32) {
	p.partCountMu.Lock()
	defer p.partCountMu.Unlock()
	p.partitionCounts[topic] = n
}

func (p *Producer) partitionCount(topic string) int32 {
	p.partCountMu.RLock()
	defer p.partCountMu.RUnlock()
	if n, ok := p.partitionCounts[topic]; ok {
		return n
	}
	return 1
}

// Send produces one record, returning its assigned offset. When linger
// batching is enabled (WithLinger > 0 and WithBatchSize > 1), Send
// enqueues the record and blocks until a flush (triggered by buffer
// size, the linger timer, or an explicit Flush) assigns it an offset.
func (p *Producer) Send(ctx context.Context, topic string, value, key []byte) (int64, error) {
	if p.pcfg.lingerTime > 0 && p.pcfg.batchSize > 1 {
		return p.enqueue(ctx, topic, Record{Key: key, Value: value})
	}
	offsets, err := p.sendBatchRaw(ctx, topic, []Record{{Key: key, Value: value}})
	if err != nil {
		return 0, err
	}
	return offsets[0], nil
}

// SendBatch produces a sequence of records to topic as a single batch,
// bypassing any linger buffering, and returns their offsets as a
// contiguous increasing sequence starting at the response's base offset.
func (p *Producer) SendBatch(ctx context.Context, topic string, records []Record) ([]int64, error) {
	return p.sendBatchRaw(ctx, topic, records)
}

func (p *Producer) enqueue(ctx context.Context, topic string, rec Record) (int64, error) {
	buf := p.topicBuffer(topic)
	done := make(chan sendResult, 1)

	buf.mu.Lock()
	buf.pending = append(buf.pending, pendingRecord{rec: rec, done: done})
	flushNow := len(buf.pending) >= p.pcfg.batchSize
	if buf.timer == nil {
		buf.timer = time.AfterFunc(p.pcfg.lingerTime, func() { p.flushTopic(topic) })
	}
	buf.mu.Unlock()

	if flushNow {
		go p.flushTopic(topic)
	}

	select {
	case res := <-done:
		return res.offset, res.err
	case <-ctx.Done():
		return 0, flerr.Cancelled
	}
}

func (p *Producer) topicBuffer(topic string) *topicBuffer {
	p.buffersMu.Lock()
	defer p.buffersMu.Unlock()
	b, ok := p.buffers[topic]
	if !ok {
		b = &topicBuffer{}
		p.buffers[topic] = b
	}
	return b
}

func (p *Producer) flushTopic(topic string) {
	buf := p.topicBuffer(topic)
	buf.mu.Lock()
	pending := buf.pending
	buf.pending = nil
	if buf.timer != nil {
		buf.timer.Stop()
		buf.timer = nil
	}
	buf.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	recs := make([]Record, len(pending))
	for i, pr := range pending {
		recs[i] = pr.rec
	}
	offsets, err := p.sendBatchRaw(context.Background(), topic, recs)
	for i, pr := range pending {
		if err != nil {
			pr.done <- sendResult{err: err}
			continue
		}
		pr.done <- sendResult{offset: offsets[i]}
	}
}

// Flush drains every topic's linger buffer, blocking until each has been
// sent.
func (p *Producer) Flush(ctx context.Context) error {
	p.buffersMu.Lock()
	topics := make([]string, 0, len(p.buffers))
	for t := range p.buffers {
		topics = append(topics, t)
	}
	p.buffersMu.Unlock()

	for _, t := range topics {
		select {
		case <-ctx.Done():
			return flerr.Cancelled
		default:
		}
		p.flushTopic(t)
	}
	return nil
}

// sendBatchRaw routes records to one partition (via the configured
// Partitioner, keyed off the first record) and sends them as a single
// encoded batch in one produce request. The wire request layout carries
// exactly one partition entry per batch, so a whole send_batch call is
// necessarily routed as a unit rather than per-record.
func (p *Producer) sendBatchRaw(ctx context.Context, topic string, records []Record) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}
	count := p.partitionCount(topic)
	partition, err := p.pcfg.partitioner.Partition(records[0].Key, count)
	if err != nil {
		return nil, err
	}

	batch := flmsg.EncodeNew(records, nowUnixMs(), nil)
	req := flmsg.ProduceRequest{
		TimeoutMs: int32(p.conn.cfg.requestTimeout.Milliseconds()),
		Topics: []flmsg.ProduceTopicRequest{{
			Topic: topic,
			Partitions: []flmsg.ProducePartitionRequest{{
				PartitionIndex: partition,
				Batch:          batch,
			}},
		}},
	}

	respBody, err := p.conn.do(ctx, flmsg.APIKeyProduce, flmsg.ProduceVersion, req.Encode())
	if err != nil {
		return nil, err
	}
	resp := flmsg.DecodeProduceResponse(flbin.NewReader(respBody))
	if len(resp.Topics) == 0 || len(resp.Topics[0].Partitions) == 0 {
		return nil, flerr.MalformedFrame
	}
	partResp := resp.Topics[0].Partitions[0]
	if partResp.ErrorCode != 0 {
		return nil, flerr.NewProtocolError(partResp.ErrorCode, "")
	}

	offsets := make([]int64, len(records))
	for i := range records {
		offsets[i] = partResp.BaseOffset + int64(i)
	}
	p.hooks.OnRecordsProduced(topic, len(records))
	return offsets, nil
}

func nowUnixMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
