// Package bytecursor provides a growable byte buffer with typed big/little
// endian reads and writes, a read position, and mark/reset support.
//
// A Cursor is either written to (New) or read from (Wrap); the written bytes of
// a writer can also be read back. A Cursor is not safe for concurrent use.
package bytecursor

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// ErrOutOfBounds is returned when a read needs more bytes than remain.
var ErrOutOfBounds = errors.New("bytecursor: read past end of buffer")

// DefaultCapacity is the initial capacity used by New when capacity <= 0.
const DefaultCapacity = 64

// Cursor is a growable byte buffer with a current byte order.
type Cursor struct {
	buf   []byte
	size  int // valid bytes in buf
	pos   int // read position
	mark  int
	order binary.ByteOrder
}

// New returns an empty writable cursor with the given initial capacity.
// The byte order starts as big-endian.
func New(capacity int) *Cursor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cursor{
		buf:   make([]byte, capacity),
		order: binary.BigEndian,
	}
}

// Wrap returns a cursor reading b from offset 0. The cursor does not copy b,
// so b must not be modified while the cursor is in use. Writes append after
// the wrapped bytes and copy them into a new backing array on first growth.
func Wrap(b []byte) *Cursor {
	return &Cursor{
		buf:   b,
		size:  len(b),
		order: binary.BigEndian,
	}
}

// ByteOrder returns the order used for multi-byte values.
func (c *Cursor) ByteOrder() binary.ByteOrder {
	return c.order
}

// SetByteOrder sets the order used for subsequent multi-byte reads and writes.
// A nil order is ignored.
func (c *Cursor) SetByteOrder(order binary.ByteOrder) {
	if order == nil {
		return
	}
	c.order = order
}

// Len returns the number of valid bytes held by the cursor.
func (c *Cursor) Len() int {
	return c.size
}

// Cap returns the capacity of the backing storage.
func (c *Cursor) Cap() int {
	return len(c.buf)
}

// Position returns the read position.
func (c *Cursor) Position() int {
	return c.pos
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return c.size - c.pos
}

// Mark saves the current read position.
func (c *Cursor) Mark() {
	c.mark = c.pos
}

// Reset restores the read position saved by the last Mark (or 0).
func (c *Cursor) Reset() {
	c.pos = c.mark
}

// Bytes returns a copy of exactly the valid bytes, not the backing capacity.
func (c *Cursor) Bytes() []byte {
	out := make([]byte, c.size)
	copy(out, c.buf[:c.size])
	return out
}

func (c *Cursor) grow(n int) {
	if c.size+n <= len(c.buf) {
		return
	}
	minimum := len(c.buf) + n
	oneAndAHalf := int(math.Ceil(float64(len(c.buf)) * 1.5))
	next := make([]byte, max(minimum, oneAndAHalf))
	copy(next, c.buf[:c.size])
	c.buf = next
}

// next reserves n bytes at the end of the written region.
func (c *Cursor) next(n int) []byte {
	c.grow(n)
	b := c.buf[c.size : c.size+n]
	c.size += n
	return b
}

// WriteU8 appends a single byte.
func (c *Cursor) WriteU8(v uint8) {
	c.next(1)[0] = v
}

// WriteI16 appends a 16-bit integer in the current byte order.
func (c *Cursor) WriteI16(v int16) {
	c.order.PutUint16(c.next(2), uint16(v))
}

// WriteU32 appends an unsigned 32-bit integer in the current byte order.
func (c *Cursor) WriteU32(v uint32) {
	c.order.PutUint32(c.next(4), v)
}

// WriteI32 appends a signed 32-bit integer in the current byte order.
func (c *Cursor) WriteI32(v int32) {
	c.WriteU32(uint32(v))
}

// WriteI64 appends a signed 64-bit integer in the current byte order.
func (c *Cursor) WriteI64(v int64) {
	c.order.PutUint64(c.next(8), uint64(v))
}

// WriteF32 appends an IEEE-754 single in the current byte order.
func (c *Cursor) WriteF32(v float32) {
	c.WriteU32(math.Float32bits(v))
}

// WriteF64 appends an IEEE-754 double in the current byte order.
func (c *Cursor) WriteF64(v float64) {
	c.order.PutUint64(c.next(8), math.Float64bits(v))
}

// WriteBytes appends b verbatim.
func (c *Cursor) WriteBytes(b []byte) {
	copy(c.next(len(b)), b)
}

// take consumes n bytes from the read position.
func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, errors.Wrapf(ErrOutOfBounds, "need %d bytes at offset %d, %d remaining", n, c.pos, c.Remaining())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadU8 reads a single byte.
func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadI16 reads a 16-bit integer in the current byte order.
func (c *Cursor) ReadI16() (int16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return int16(c.order.Uint16(b)), nil
}

// ReadU32 reads an unsigned 32-bit integer in the current byte order.
func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return c.order.Uint32(b), nil
}

// ReadI32 reads a signed 32-bit integer in the current byte order.
func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

// ReadI64 reads a signed 64-bit integer in the current byte order.
func (c *Cursor) ReadI64() (int64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return int64(c.order.Uint64(b)), nil
}

// ReadF32 reads an IEEE-754 single in the current byte order.
func (c *Cursor) ReadF32() (float32, error) {
	v, err := c.ReadU32()
	return math.Float32frombits(v), err
}

// ReadF64 reads an IEEE-754 double in the current byte order.
func (c *Cursor) ReadF64() (float64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(c.order.Uint64(b)), nil
}

// ReadBytes reads n bytes. The returned slice is a copy.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}
