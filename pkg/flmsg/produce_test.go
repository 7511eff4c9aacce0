package flmsg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusstream/fluvio-go/pkg/flbin"
)

func TestProduceRequestEncode(t *testing.T) {
	batch := EncodeNew([]Record{{Value: []byte("v")}}, 1, nil)
	req := ProduceRequest{
		TimeoutMs: 5000,
		Topics: []ProduceTopicRequest{
			{Topic: "orders", Partitions: []ProducePartitionRequest{
				{PartitionIndex: 0, Batch: batch},
			}},
		},
	}
	wire := req.Encode()

	r := flbin.NewReader(wire)
	txID := r.NullableString()
	require.Nil(t, txID)
	require.Equal(t, IsolationUncommitted, r.Int8())
	require.Equal(t, int32(5000), r.Int32())
	require.Equal(t, int32(1), r.Int32())
	require.Equal(t, "orders", r.String())
	require.Equal(t, int32(1), r.Int32())
	require.Equal(t, int32(0), r.Int32())
	gotBatch := r.GetBytes()
	require.Equal(t, batch, gotBatch)
	require.Equal(t, int32(0), r.Int32()) // smart-module list
	require.NoError(t, r.Complete())
}

func TestProduceResponseDecode(t *testing.T) {
	w := flbin.NewWriter(64)
	w.Int32(1) // topic count
	w.String("orders")
	w.Int32(1) // partition count
	w.Int32(0)
	w.Int16(0)
	w.Int64(100)
	w.Int64(1700000000000)
	w.Int64(0)
	w.Int32(0) // throttle time

	resp := DecodeProduceResponse(flbin.NewReader(w.Bytes()))
	require.Len(t, resp.Topics, 1)
	require.Equal(t, "orders", resp.Topics[0].Topic)
	require.Len(t, resp.Topics[0].Partitions, 1)
	require.Equal(t, int64(100), resp.Topics[0].Partitions[0].BaseOffset)
	require.Equal(t, int16(0), resp.Topics[0].Partitions[0].ErrorCode)
}
