package flmsg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusstream/fluvio-go/pkg/flbin"
	"github.com/nimbusstream/fluvio-go/pkg/flerr"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{TypeLabel: TopicObjectType, Body: []byte("payload")}
	r := flbin.NewReader(env.Encode())
	got := DecodeEnvelope(r)
	require.Equal(t, TopicObjectType, got.TypeLabel)
	require.Equal(t, []byte("payload"), got.Body)
	require.NoError(t, r.Complete())
}

func TestTopicSpecComputedRoundTrip(t *testing.T) {
	spec := TopicSpec{Kind: TopicSpecComputed, Partitions: 4, ReplicationFactor: 3, IgnoreRack: true}
	w := flbin.NewWriter(16)
	require.NoError(t, spec.Encode(w))

	r := flbin.NewReader(w.Bytes())
	got := DecodeTopicSpec(r)
	require.Equal(t, TopicSpecComputed, got.Kind)
	require.Equal(t, int32(4), got.Partitions)
	require.Equal(t, int32(3), got.ReplicationFactor)
	require.True(t, got.IgnoreRack)
	require.NoError(t, r.Complete())
}

func TestTopicSpecAssignedRoundTrip(t *testing.T) {
	spec := TopicSpec{Kind: TopicSpecAssigned, Assignment: map[int32][]int32{
		1: {10, 11},
		0: {10, 12},
	}}
	w := flbin.NewWriter(32)
	require.NoError(t, spec.Encode(w))

	r := flbin.NewReader(w.Bytes())
	got := DecodeTopicSpec(r)
	require.Equal(t, TopicSpecAssigned, got.Kind)
	require.Equal(t, []int32{10, 12}, got.Assignment[0])
	require.Equal(t, []int32{10, 11}, got.Assignment[1])
	require.NoError(t, r.Complete())
}

func TestTopicSpecMirrorFailsOnEncode(t *testing.T) {
	spec := TopicSpec{Kind: TopicSpecMirror}
	w := flbin.NewWriter(4)
	err := spec.Encode(w)
	require.ErrorIs(t, err, flerr.Unimplemented)
}

func TestCreateTopicRequestEncode(t *testing.T) {
	req := CreateTopicRequest{
		Name: "orders",
		Spec: TopicSpec{Kind: TopicSpecComputed, Partitions: 4, ReplicationFactor: 3},
	}
	wire, err := req.Encode()
	require.NoError(t, err)

	r := flbin.NewReader(wire)
	require.Equal(t, "orders", r.String())
	require.False(t, r.OptionalTag()) // dry_run
	require.False(t, r.OptionalTag()) // timeout absent
	got := DecodeTopicSpec(r)
	require.Equal(t, int32(4), got.Partitions)
	require.False(t, r.OptionalTag()) // cleanup policy absent
	require.False(t, r.OptionalTag()) // storage config absent
	require.Equal(t, "any", r.String())
	require.False(t, r.OptionalTag()) // deduplication absent
	require.False(t, r.OptionalTag()) // system
	require.NoError(t, r.Complete())
}

func TestCreateTopicRequestMirrorFails(t *testing.T) {
	req := CreateTopicRequest{Name: "orders", Spec: TopicSpec{Kind: TopicSpecMirror}}
	_, err := req.Encode()
	require.ErrorIs(t, err, flerr.Unimplemented)
}

func TestTopicStatusUses16BitMapWidth(t *testing.T) {
	status := TopicStatus{
		Resolution: TopicResolutionProvisioned,
		Replicas:   map[int32][]int32{0: {1, 2}, 1: {2, 3}},
		Mirrors:    map[int32][]int32{},
	}
	w := flbin.NewWriter(32)
	status.Encode(w)
	wire := w.Bytes()

	// The replica map's entry count must decode as a 16-bit field, not
	// the 32-bit width used by every other count in this protocol.
	r := flbin.NewReader(wire)
	r.Int8() // resolution
	require.Equal(t, uint16(2), r.Uint16())

	got := DecodeTopicStatus(flbin.NewReader(wire))
	require.Equal(t, TopicResolutionProvisioned, got.Resolution)
	require.Equal(t, []int32{1, 2}, got.Replicas[0])
	require.Empty(t, got.Mirrors)
	require.Nil(t, got.Reason)
}

func TestListTopicsResponseDecode(t *testing.T) {
	w := flbin.NewWriter(64)
	env := Envelope{TypeLabel: TopicObjectType, Body: nil}
	w.Raw(env.Encode())
	w.Int32(1)
	w.String("orders")
	spec := TopicSpec{Kind: TopicSpecComputed, Partitions: 1, ReplicationFactor: 1}
	require.NoError(t, spec.Encode(w))
	status := TopicStatus{Resolution: TopicResolutionProvisioned, Replicas: map[int32][]int32{0: {1}}, Mirrors: map[int32][]int32{}}
	status.Encode(w)

	resp := DecodeListTopicsResponse(flbin.NewReader(w.Bytes()))
	require.Len(t, resp.Topics, 1)
	require.Equal(t, "orders", resp.Topics[0].Name)
	require.Equal(t, TopicResolutionProvisioned, resp.Topics[0].Status.Resolution)
}

func TestValidateTopicName(t *testing.T) {
	require.NoError(t, ValidateTopicName("orders"))
	require.NoError(t, ValidateTopicName("orders-2024"))
	require.Error(t, ValidateTopicName("Orders"))
	require.Error(t, ValidateTopicName("-orders"))
	require.Error(t, ValidateTopicName("orders-"))
	require.Error(t, ValidateTopicName(""))
	require.Error(t, ValidateTopicName("orders_x"))

	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	require.Error(t, ValidateTopicName(string(long)))
}

func TestDeleteAndListRequestsEncode(t *testing.T) {
	del := DeleteTopicRequest{Name: "orders", Force: true}
	r := flbin.NewReader(del.Encode())
	require.Equal(t, "orders", r.String())
	require.True(t, r.OptionalTag())
	require.NoError(t, r.Complete())

	list := ListTopicsRequest{Filters: []string{"a", "b"}, Summary: true}
	lr := flbin.NewReader(list.Encode())
	require.Equal(t, int32(2), lr.Int32())
	require.Equal(t, "a", lr.String())
	require.Equal(t, "b", lr.String())
	require.True(t, lr.OptionalTag())
	require.False(t, lr.OptionalTag())
	require.NoError(t, lr.Complete())
}
