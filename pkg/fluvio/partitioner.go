package fluvio

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/nimbusstream/fluvio-go/pkg/flerr"
)

// Partitioner chooses a destination partition for a record.
type Partitioner interface {
	// Partition returns the index to route a record with the given key
	// (nil/empty if absent) to, among availablePartitions partitions.
	Partition(key []byte, availablePartitions int32) (int32, error)
}

// KeyHashPartitioner is the default partitioner: key-hash routing when a
// non-empty key is present, round-robin otherwise, using xxhash's 64-bit
// hash as the fixed hash function.
type KeyHashPartitioner struct {
	mu      sync.Mutex
	counter uint64
}

// NewKeyHashPartitioner returns a ready-to-use KeyHashPartitioner.
func NewKeyHashPartitioner() *KeyHashPartitioner {
	return &KeyHashPartitioner{}
}

// Partition implements Partitioner.
func (p *KeyHashPartitioner) Partition(key []byte, availablePartitions int32) (int32, error) {
	if availablePartitions <= 0 {
		return 0, flerr.UnknownPartition
	}
	if len(key) > 0 {
		h := xxhash.Sum64(key)
		return int32(h % uint64(availablePartitions)), nil
	}
	return p.nextRoundRobin(availablePartitions), nil
}

func (p *KeyHashPartitioner) nextRoundRobin(availablePartitions int32) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := int32(p.counter % uint64(availablePartitions))
	p.counter++
	// Reset before the counter can overflow.
	if p.counter >= uint64(availablePartitions)*(1<<32) {
		p.counter = 0
	}
	return idx
}

// SpecificPartitioner always routes to a single, caller-configured
// partition index.
type SpecificPartitioner struct {
	Index int32
}

// Partition implements Partitioner. It fails with flerr.UnknownPartition
// if Index is outside the available set.
func (p SpecificPartitioner) Partition(_ []byte, availablePartitions int32) (int32, error) {
	if p.Index < 0 || p.Index >= availablePartitions {
		return 0, flerr.UnknownPartition
	}
	return p.Index, nil
}
