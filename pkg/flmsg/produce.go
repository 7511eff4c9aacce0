package flmsg

import "github.com/nimbusstream/fluvio-go/pkg/flbin"

// IsolationUncommitted and IsolationCommitted select the read isolation
// level on produce and stream-fetch requests.
const (
	IsolationUncommitted int8 = 0
	IsolationCommitted   int8 = 1
)

// ProducePartitionRequest carries one encoded batch for one partition of
// one topic.
type ProducePartitionRequest struct {
	PartitionIndex int32
	Batch          []byte // pre-encoded via Encode/EncodeNew
}

// ProduceTopicRequest groups partition requests under a topic name.
type ProduceTopicRequest struct {
	Topic      string
	Partitions []ProducePartitionRequest
}

// ProduceRequest is the body sent after RequestHeader for API key 0,
// version 25. transactional_id is always absent and isolation is always
// read-uncommitted; the smart-module list is always empty.
type ProduceRequest struct {
	TimeoutMs int32
	Topics    []ProduceTopicRequest
}

// Encode serializes the produce request body.
func (req ProduceRequest) Encode() []byte {
	w := flbin.NewWriter(64)
	w.NullableString(nil) // transactional_id
	w.Int8(IsolationUncommitted)
	w.Int32(req.TimeoutMs)
	w.Int32(int32(len(req.Topics)))
	for _, t := range req.Topics {
		w.String(t.Topic)
		w.Int32(int32(len(t.Partitions)))
		for _, p := range t.Partitions {
			w.Int32(p.PartitionIndex)
			w.PutBytes(p.Batch)
		}
		w.Int32(0) // smart-module list, always empty
	}
	return w.Bytes()
}

// ProducePartitionResponse is one partition's outcome within a topic
// response.
type ProducePartitionResponse struct {
	PartitionIndex  int32
	ErrorCode       int16
	BaseOffset      int64
	LogAppendTimeMs int64
	LogStartOffset  int64
}

// ProduceTopicResponse groups partition responses under a topic name.
type ProduceTopicResponse struct {
	Topic      string
	Partitions []ProducePartitionResponse
}

// ProduceResponse is the decoded body of a produce response, following
// ResponseHeader.
type ProduceResponse struct {
	Topics         []ProduceTopicResponse
	ThrottleTimeMs int32
}

// DecodeProduceResponse reads a ProduceResponse from r.
func DecodeProduceResponse(r *flbin.Reader) ProduceResponse {
	var resp ProduceResponse
	topicCount := r.Int32()
	resp.Topics = make([]ProduceTopicResponse, 0, max0(topicCount))
	for i := int32(0); i < topicCount; i++ {
		var t ProduceTopicResponse
		t.Topic = r.String()
		partCount := r.Int32()
		t.Partitions = make([]ProducePartitionResponse, 0, max0(partCount))
		for j := int32(0); j < partCount; j++ {
			t.Partitions = append(t.Partitions, ProducePartitionResponse{
				PartitionIndex:  r.Int32(),
				ErrorCode:       r.Int16(),
				BaseOffset:      r.Int64(),
				LogAppendTimeMs: r.Int64(),
				LogStartOffset:  r.Int64(),
			})
		}
		resp.Topics = append(resp.Topics, t)
	}
	resp.ThrottleTimeMs = r.Int32()
	return resp
}

func max0(n int32) int32 {
	if n < 0 {
		return 0
	}
	return n
}
