package flmsg

import (
	"github.com/nimbusstream/fluvio-go/pkg/flbin"
	"github.com/nimbusstream/fluvio-go/pkg/flerr"
)

// schemaPresentBit is attribute bit 4 of a batch's attributes field:
// when set, a 32-bit schema_id follows first_sequence.
const schemaPresentBit = int16(0x0010)

// compressionMask covers the low 3 bits of the attributes field, which
// this client always encodes as 0 (no compression codec). Client-side
// compression is explicitly out of scope; a decoded batch with a non-zero
// compression codec is rejected rather than silently mishandled.
const compressionMask = int16(0x0007)

// BatchHeader carries the fixed-width fields that precede the records
// payload in a batch. SchemaID is nil unless the schema-present
// attribute bit is set.
type BatchHeader struct {
	PartitionLeaderEpoch int32
	Attributes           int16
	LastOffsetDelta      int32
	FirstTimestamp       int64
	MaxTimestamp         int64
	ProducerID           int64
	ProducerEpoch        int16
	FirstSequence        int32
	SchemaID             *uint32
}

// Batch is a contiguous sequence of records for a single (topic, partition)
// produced atomically.
type Batch struct {
	BaseOffset int64
	Header     BatchHeader
	Records    []Record
}

// batchMagic is the only magic byte value this client writes or accepts.
const batchMagic = int8(2)

// encodeRecord writes one record in the varint-length-prefixed wire layout.
func encodeRecord(rec Record, offsetDelta int64, timestampDelta int64) []byte {
	body := flbin.NewWriter(32 + len(rec.Key) + len(rec.Value))
	body.Int8(0) // record attributes: unused, always zero
	body.Varint64(timestampDelta)
	body.Varint64(offsetDelta)
	if rec.Key == nil {
		body.OptionalTag(false)
	} else {
		body.OptionalTag(true)
		body.VarintBytes(rec.Key)
	}
	body.VarintBytes(rec.Value)
	body.Varint64(int64(len(rec.Headers)))
	for _, h := range rec.Headers {
		body.VarintBytes([]byte(h.Key))
		body.VarintBytes(h.Value)
	}

	out := flbin.NewWriter(body.Len() + 5)
	out.VarintBytes(body.Bytes())
	return out.Bytes()
}

// decodeRecord reads one record from r, which must be positioned at the
// record's own length varint (i.e. r has already been sliced to the
// records region, or the caller is reading records back to back).
func decodeRecord(r *flbin.Reader, baseOffset int64, firstTimestamp int64) (Record, error) {
	body := r.VarintBytes()
	if r.Err() != nil {
		return Record{}, flerr.MalformedFrame
	}
	br := flbin.NewReader(body)
	br.Int8() // record attributes, unused
	timestampDelta := br.Varint64()
	offsetDelta := br.Varint64()
	var key []byte
	if br.OptionalTag() {
		key = br.VarintBytes()
	}
	value := br.VarintBytes()
	headerCount := br.Varint64()
	if br.Err() != nil || headerCount < 0 {
		return Record{}, flerr.MalformedFrame
	}
	headers := make([]Header, 0, headerCount)
	for i := int64(0); i < headerCount; i++ {
		name := br.VarintBytes()
		val := br.VarintBytes()
		headers = append(headers, Header{Key: string(name), Value: val})
	}
	if err := br.Complete(); err != nil {
		return Record{}, flerr.MalformedFrame
	}

	rec := Record{
		Key:     key,
		Value:   value,
		Headers: headers,
		Offset:  baseOffset + offsetDelta,
	}
	if firstTimestamp >= 0 {
		rec.Timestamp = firstTimestamp + timestampDelta
	}
	return rec, nil
}

// buildSubrange assembles the CRC-protected region of a batch: attributes
// through the end of the records payload. recordCount is always written
// as a 32-bit integer.
func buildSubrange(h BatchHeader, recordCount int32, recordsPayload []byte) []byte {
	w := flbin.NewWriter(26 + len(recordsPayload))
	w.Int16(h.Attributes)
	w.Int32(h.LastOffsetDelta)
	w.Int64(h.FirstTimestamp)
	w.Int64(h.MaxTimestamp)
	w.Int64(h.ProducerID)
	w.Int16(h.ProducerEpoch)
	w.Int32(h.FirstSequence)
	if h.SchemaID != nil {
		w.Uint32(*h.SchemaID)
	}
	w.Int32(recordCount)
	w.Raw(recordsPayload)
	return w.Bytes()
}

// Encode serializes b to its on-wire representation, recomputing batch_len
// and crc from the current header and records. It does not mutate b.
func Encode(b Batch) []byte {
	recordsPayload := flbin.NewWriter(64 * len(b.Records))
	for i, rec := range b.Records {
		recordsPayload.Raw(encodeRecord(rec, int64(i), 0))
	}

	h := b.Header
	if h.Attributes&schemaPresentBit == 0 {
		h.SchemaID = nil
	}
	sub := buildSubrange(h, int32(len(b.Records)), recordsPayload.Bytes())
	crc := flbin.CRC32C(sub)

	w := flbin.NewWriter(21 + len(sub))
	w.Int64(b.BaseOffset)
	w.Int32(int32(9 + len(sub)))
	w.Int32(h.PartitionLeaderEpoch)
	w.Int8(batchMagic)
	w.Uint32(crc)
	w.Raw(sub)
	return w.Bytes()
}

// EncodeNew builds and encodes a batch from scratch following the producer
// invariants: first/max timestamp set from nowUnixMs, last_offset_delta =
// count-1 (or -1 when empty), record i has offset_delta = i and
// timestamp_delta = 0, and defaults of -1 for the remaining producer
// identity fields.
func EncodeNew(records []Record, nowUnixMs int64, schemaID *uint32) []byte {
	lastOffsetDelta := int32(len(records) - 1)
	attrs := int16(0)
	if schemaID != nil {
		attrs |= schemaPresentBit
	}
	return Encode(Batch{
		BaseOffset: 0,
		Header: BatchHeader{
			PartitionLeaderEpoch: -1,
			Attributes:           attrs,
			LastOffsetDelta:      lastOffsetDelta,
			FirstTimestamp:       nowUnixMs,
			MaxTimestamp:         nowUnixMs,
			ProducerID:           -1,
			ProducerEpoch:        -1,
			FirstSequence:        -1,
			SchemaID:             schemaID,
		},
		Records: records,
	})
}

// Decode parses a batch from its on-wire representation, verifying the
// embedded CRC against the recomputed CRC over the attribute-through-records
// region.
func Decode(src []byte) (Batch, error) {
	r := flbin.NewReader(src)
	baseOffset := r.Int64()
	batchLen := r.Int32()
	partitionLeaderEpoch := r.Int32()
	magic := r.Int8()
	crc := r.Uint32()
	if r.Err() != nil {
		return Batch{}, flerr.MalformedFrame
	}
	if magic != batchMagic {
		return Batch{}, flerr.CorruptBatch
	}
	if batchLen < 9 {
		return Batch{}, flerr.MalformedFrame
	}
	region := r.Raw(int(batchLen) - 9)
	if r.Err() != nil {
		return Batch{}, flerr.MalformedFrame
	}

	if flbin.CRC32C(region) != crc {
		return Batch{}, flerr.CorruptBatch
	}

	rr := flbin.NewReader(region)
	h := BatchHeader{PartitionLeaderEpoch: partitionLeaderEpoch}
	h.Attributes = rr.Int16()
	h.LastOffsetDelta = rr.Int32()
	h.FirstTimestamp = rr.Int64()
	h.MaxTimestamp = rr.Int64()
	h.ProducerID = rr.Int64()
	h.ProducerEpoch = rr.Int16()
	h.FirstSequence = rr.Int32()
	if h.Attributes&compressionMask != 0 {
		return Batch{}, flerr.CorruptBatch
	}
	if h.Attributes&schemaPresentBit != 0 {
		id := rr.Uint32()
		h.SchemaID = &id
	}
	recordCount := rr.Int32()
	if rr.Err() != nil || recordCount < 0 {
		return Batch{}, flerr.MalformedFrame
	}

	records := make([]Record, 0, recordCount)
	for i := int32(0); i < recordCount; i++ {
		rec, err := decodeRecord(rr, baseOffset, h.FirstTimestamp)
		if err != nil {
			return Batch{}, err
		}
		records = append(records, rec)
	}
	if err := rr.Complete(); err != nil {
		return Batch{}, flerr.MalformedFrame
	}

	return Batch{BaseOffset: baseOffset, Header: h, Records: records}, nil
}
