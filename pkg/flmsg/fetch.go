package flmsg

import "github.com/nimbusstream/fluvio-go/pkg/flbin"

// StreamFetchRequest is sent once per stream session (API key 1003,
// version 10). The broker replies with an unbounded series of frames
// sharing the request's correlation id.
type StreamFetchRequest struct {
	Topic       string
	Partition   int32
	StartOffset int64
	MaxBytes    int32
	Isolation   int8
	ConsumerID  *string
}

// Encode serializes the stream-fetch request body. The smart-module list
// is always empty: smart-module invocation is not implemented by this
// client.
func (req StreamFetchRequest) Encode() []byte {
	w := flbin.NewWriter(32 + len(req.Topic))
	w.String(req.Topic)
	w.Int32(req.Partition)
	w.Int64(req.StartOffset)
	w.Int32(req.MaxBytes)
	w.Int8(req.Isolation)
	w.Int32(0) // smart-module list, always empty
	w.NullableString(req.ConsumerID)
	return w.Bytes()
}

// AbortedTransaction is one entry of a stream-fetch response's optional
// aborted-transactions list.
type AbortedTransaction struct {
	ProducerID  int64
	FirstOffset int64
}

// StreamFetchFrame is one of the unbounded series of response frames a
// stream session receives, all sharing the session's correlation id.
type StreamFetchFrame struct {
	Topic          string
	StreamID       uint32
	PartitionIndex int32
	ErrorCode      int16
	HighWaterMark  int64
	LogStartOffset int64
	AbortedTxns    []AbortedTransaction
	RecordSet      []byte
}

// DecodeStreamFetchFrame reads one StreamFetchFrame from r.
func DecodeStreamFetchFrame(r *flbin.Reader) StreamFetchFrame {
	var f StreamFetchFrame
	f.Topic = r.String()
	f.StreamID = r.Uint32()
	f.PartitionIndex = r.Int32()
	f.ErrorCode = r.Int16()
	f.HighWaterMark = r.Int64()
	f.LogStartOffset = r.Int64()
	if r.OptionalTag() {
		n := r.Int32()
		f.AbortedTxns = make([]AbortedTransaction, 0, max0(n))
		for i := int32(0); i < n; i++ {
			f.AbortedTxns = append(f.AbortedTxns, AbortedTransaction{
				ProducerID:  r.Int64(),
				FirstOffset: r.Int64(),
			})
		}
	}
	f.RecordSet = r.GetBytes()
	return f
}

// FetchConsumerOffsetsRequest looks up a consumer's last committed offset
// (API key 1005).
type FetchConsumerOffsetsRequest struct {
	ConsumerID string
	Topic      string
	Partition  int32
}

// Encode serializes the request body.
func (req FetchConsumerOffsetsRequest) Encode() []byte {
	w := flbin.NewWriter(32 + len(req.ConsumerID) + len(req.Topic))
	w.String(req.ConsumerID)
	w.String(req.Topic)
	w.Int32(req.Partition)
	return w.Bytes()
}

// FetchConsumerOffsetsResponse reports whether a stored offset exists for
// the requested consumer/topic/partition.
type FetchConsumerOffsetsResponse struct {
	ErrorCode int16
	Offset    *int64
}

// DecodeFetchConsumerOffsetsResponse reads a FetchConsumerOffsetsResponse
// from r.
func DecodeFetchConsumerOffsetsResponse(r *flbin.Reader) FetchConsumerOffsetsResponse {
	var resp FetchConsumerOffsetsResponse
	resp.ErrorCode = r.Int16()
	if r.OptionalTag() {
		off := r.Int64()
		resp.Offset = &off
	}
	return resp
}

// UpdateConsumerOffsetRequest commits a consumer's processed offset
// (API key 1006).
type UpdateConsumerOffsetRequest struct {
	ConsumerID string
	Topic      string
	Partition  int32
	Offset     int64
	SessionID  uint32
}

// Encode serializes the request body.
func (req UpdateConsumerOffsetRequest) Encode() []byte {
	w := flbin.NewWriter(40 + len(req.ConsumerID) + len(req.Topic))
	w.String(req.ConsumerID)
	w.String(req.Topic)
	w.Int32(req.Partition)
	w.Int64(req.Offset)
	w.Uint32(req.SessionID)
	return w.Bytes()
}

// UpdateConsumerOffsetResponse reports whether a commit succeeded.
type UpdateConsumerOffsetResponse struct {
	ErrorCode int16
}

// DecodeUpdateConsumerOffsetResponse reads an UpdateConsumerOffsetResponse
// from r.
func DecodeUpdateConsumerOffsetResponse(r *flbin.Reader) UpdateConsumerOffsetResponse {
	return UpdateConsumerOffsetResponse{ErrorCode: r.Int16()}
}

// Offset reset sentinels. StoredOrEarliest/StoredOrLatest are resolved
// client-side before the stream-fetch request is sent: look up a
// consumer's last committed offset and resume at stored+1, falling back
// to Earliest/Latest when nothing is stored.
const (
	OffsetEarliest         int64 = 0
	OffsetLatest           int64 = -1
	OffsetStoredOrEarliest int64 = -2
	OffsetStoredOrLatest   int64 = -3
)
