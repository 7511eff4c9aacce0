// Package flbin implements the big-endian primitive codec shared by every
// wire message in this client: fixed-width integers, zig-zag varints,
// length-prefixed strings and byte arrays, optional-value tags, and
// CRC-32C. It mirrors the narrow packetEncoder/packetDecoder split found
// in Kafka-protocol client libraries: one type per direction, one method
// per primitive, errors accumulated rather than checked at each call.
package flbin

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNotEnoughData is returned by Reader methods when the underlying
// buffer is exhausted before a value can be fully read.
var ErrNotEnoughData = errors.New("flbin: not enough data to decode value")

// ErrVarintTooLong is returned when a varint consumes more continuation
// bytes than its width allows without terminating.
var ErrVarintTooLong = errors.New("flbin: varint exceeds maximum encoded width")

// ErrNegativeLength is returned when a length-prefixed field's declared
// length is negative and not the designated "absent" sentinel.
var ErrNegativeLength = errors.New("flbin: negative length prefix")

// Writer accumulates an encoded message into a growable byte slice.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with an initial capacity hint.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded bytes accumulated so far.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Int8 appends a signed 8-bit integer.
func (w *Writer) Int8(v int8) { w.buf = append(w.buf, byte(v)) }

// Int16 appends a big-endian signed 16-bit integer.
func (w *Writer) Int16(v int16) {
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

// Uint16 appends a big-endian unsigned 16-bit integer.
func (w *Writer) Uint16(v uint16) {
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

// Int32 appends a big-endian signed 32-bit integer.
func (w *Writer) Int32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}

// Uint32 appends a big-endian unsigned 32-bit integer.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// Int64 appends a big-endian signed 64-bit integer.
func (w *Writer) Int64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

// Uint64 appends a big-endian unsigned 64-bit integer.
func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// Varint32 appends a zig-zag encoded signed 32-bit integer as a varint.
func (w *Writer) Varint32(v int32) {
	w.Varint64(int64(v))
}

// Varint64 appends a zig-zag encoded signed 64-bit integer as a varint.
func (w *Writer) Varint64(v int64) {
	u := uint64((v << 1) ^ (v >> 63))
	for u >= 0x80 {
		w.buf = append(w.buf, byte(u)|0x80)
		u >>= 7
	}
	w.buf = append(w.buf, byte(u))
}

// NullableString appends a 16-bit-length-prefixed UTF-8 string, or a
// length of -1 if s is nil.
func (w *Writer) NullableString(s *string) {
	if s == nil {
		w.Int16(-1)
		return
	}
	w.Int16(int16(len(*s)))
	w.buf = append(w.buf, *s...)
}

// String appends a non-nullable 16-bit-length-prefixed UTF-8 string.
func (w *Writer) String(s string) {
	w.Int16(int16(len(s)))
	w.buf = append(w.buf, s...)
}

// NullableBytes appends a 32-bit-length-prefixed byte array, or a length
// of -1 if b is nil.
func (w *Writer) NullableBytes(b []byte) {
	if b == nil {
		w.Int32(-1)
		return
	}
	w.Int32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// PutBytes appends a non-nullable 32-bit-length-prefixed byte array.
func (w *Writer) PutBytes(b []byte) {
	w.Int32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// VarintBytes appends a varint-length-prefixed byte array (used inside
// record batches, where lengths are varint rather than fixed-width).
func (w *Writer) VarintBytes(b []byte) {
	w.Varint64(int64(len(b)))
	w.buf = append(w.buf, b...)
}

// Raw appends b verbatim with no length prefix.
func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

// OptionalTag appends the one-byte optional-value tag: 0 for absent, 1
// for present. Callers write the payload themselves when present is true.
func (w *Writer) OptionalTag(present bool) {
	if present {
		w.Int8(1)
	} else {
		w.Int8(0)
	}
}

// Reader decodes a wire message from a byte slice, accumulating the
// first error encountered so callers can chain reads without checking
// every call; call Err or Complete once decoding is finished.
type Reader struct {
	src []byte
	err error
}

// NewReader wraps src for sequential decoding.
func NewReader(src []byte) *Reader { return &Reader{src: src} }

// Err returns the first decode error encountered, if any.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int { return len(r.src) }

// Complete returns an error if any bytes remain unconsumed, or if a
// prior read already failed.
func (r *Reader) Complete() error {
	if r.err != nil {
		return r.err
	}
	if len(r.src) != 0 {
		return fmt.Errorf("flbin: %d trailing bytes after decode", len(r.src))
	}
	return nil
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.src) < n {
		r.err = ErrNotEnoughData
		return nil
	}
	b := r.src[:n]
	r.src = r.src[n:]
	return b
}

// Int8 reads a signed 8-bit integer.
func (r *Reader) Int8() int8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return int8(b[0])
}

// Int16 reads a big-endian signed 16-bit integer.
func (r *Reader) Int16() int16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int16(binary.BigEndian.Uint16(b))
}

// Uint16 reads a big-endian unsigned 16-bit integer.
func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// Int32 reads a big-endian signed 32-bit integer.
func (r *Reader) Int32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

// Uint32 reads a big-endian unsigned 32-bit integer.
func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// Int64 reads a big-endian signed 64-bit integer.
func (r *Reader) Int64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// Uint64 reads a big-endian unsigned 64-bit integer.
func (r *Reader) Uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// Varint32 reads a zig-zag encoded signed 32-bit varint. Fails with
// ErrVarintTooLong if more than 5 bytes are consumed without terminating.
func (r *Reader) Varint32() int32 {
	return int32(r.varint(5))
}

// Varint64 reads a zig-zag encoded signed 64-bit varint. Fails with
// ErrVarintTooLong if more than 10 bytes are consumed without terminating.
func (r *Reader) Varint64() int64 {
	return r.varint(10)
}

func (r *Reader) varint(maxBytes int) int64 {
	if r.err != nil {
		return 0
	}
	var u uint64
	var shift uint
	for i := 0; i < maxBytes; i++ {
		b := r.take(1)
		if b == nil {
			return 0
		}
		u |= uint64(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			return int64(u>>1) ^ -int64(u&1)
		}
		shift += 7
	}
	r.err = ErrVarintTooLong
	return 0
}

// NullableString reads a 16-bit-length-prefixed UTF-8 string; a length of
// -1 yields a nil *string.
func (r *Reader) NullableString() *string {
	n := r.Int16()
	if r.err != nil {
		return nil
	}
	if n < 0 {
		return nil
	}
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	s := string(b)
	return &s
}

// String reads a non-nullable 16-bit-length-prefixed UTF-8 string.
func (r *Reader) String() string {
	n := r.Int16()
	if r.err != nil {
		return ""
	}
	if n < 0 {
		r.err = ErrNegativeLength
		return ""
	}
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

// NullableBytes reads a 32-bit-length-prefixed byte array; a length of -1
// yields a nil slice.
func (r *Reader) NullableBytes() []byte {
	n := r.Int32()
	if r.err != nil {
		return nil
	}
	if n < 0 {
		return nil
	}
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// GetBytes reads a non-nullable 32-bit-length-prefixed byte array.
func (r *Reader) GetBytes() []byte {
	n := r.Int32()
	if r.err != nil {
		return nil
	}
	if n < 0 {
		r.err = ErrNegativeLength
		return nil
	}
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// VarintBytes reads a varint-length-prefixed byte array.
func (r *Reader) VarintBytes() []byte {
	n := r.Varint64()
	if r.err != nil {
		return nil
	}
	if n < 0 {
		r.err = ErrNegativeLength
		return nil
	}
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Raw reads exactly n unframed bytes.
func (r *Reader) Raw(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// OptionalTag reads the one-byte optional-value tag, returning whether
// the payload that follows is present.
func (r *Reader) OptionalTag() bool {
	return r.Int8() == 1
}
