package fluvio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusstream/fluvio-go/pkg/flerr"
)

func TestKeyHashPartitionerDeterministicForSameKey(t *testing.T) {
	p := NewKeyHashPartitioner()
	key := []byte("order-42")

	first, err := p.Partition(key, 8)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		got, err := p.Partition(key, 8)
		require.NoError(t, err)
		require.Equal(t, first, got)
	}
}

func TestKeyHashPartitionerRoundRobinsWithoutKey(t *testing.T) {
	p := NewKeyHashPartitioner()
	seen := map[int32]bool{}
	for i := 0; i < 10; i++ {
		idx, err := p.Partition(nil, 3)
		require.NoError(t, err)
		require.GreaterOrEqual(t, idx, int32(0))
		require.Less(t, idx, int32(3))
		seen[idx] = true
	}
	require.Len(t, seen, 3) // cycles through [0, n)
}

func TestSpecificPartitionerRejectsOutOfRange(t *testing.T) {
	p := SpecificPartitioner{Index: 5}
	_, err := p.Partition(nil, 3)
	require.ErrorIs(t, err, flerr.UnknownPartition)

	idx, err := p.Partition(nil, 6)
	require.NoError(t, err)
	require.Equal(t, int32(5), idx)
}
