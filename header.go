package gpkg

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/tingold/orb-gpkg/bytecursor"
)

// Magic is the two-byte prefix of every GeoPackage geometry BLOB.
var Magic = [2]byte{'G', 'P'}

// MinHeaderSize is the size of a header with no envelope.
const MinHeaderSize = 8

// EnvelopeIndicator selects how many envelope doubles follow the SRS id.
type EnvelopeIndicator uint8

// Envelope indicators as stored in flag bits 1-3.
const (
	NoEnvelope   EnvelopeIndicator = iota // no envelope
	EnvelopeXY                            // minX, maxX, minY, maxY
	EnvelopeXYZ                           // XY plus minZ, maxZ
	EnvelopeXYM                           // XY plus minM, maxM
	EnvelopeXYZM                          // XY plus Z and M ranges
)

// ArraySize is the number of envelope doubles for the indicator.
func (i EnvelopeIndicator) ArraySize() int {
	switch i {
	case EnvelopeXY:
		return 4
	case EnvelopeXYZ, EnvelopeXYM:
		return 6
	case EnvelopeXYZM:
		return 8
	default:
		return 0
	}
}

func (i EnvelopeIndicator) valid() bool { return i <= EnvelopeXYZM }

func (i EnvelopeIndicator) String() string {
	switch i {
	case NoEnvelope:
		return "NoEnvelope"
	case EnvelopeXY:
		return "XY"
	case EnvelopeXYZ:
		return "XYZ"
	case EnvelopeXYM:
		return "XYM"
	case EnvelopeXYZM:
		return "XYZM"
	default:
		return fmt.Sprintf("EnvelopeIndicator(%d)", uint8(i))
	}
}

// BinaryType tells whether the payload uses a core OGC geometry type.
type BinaryType uint8

// Binary types as stored in flag bit 5.
const (
	Standard BinaryType = iota // core OGC geometry type
	Extended                   // extension geometry type
)

func (t BinaryType) String() string {
	if t == Extended {
		return "Extended"
	}
	return "Standard"
}

// Contents tells whether the payload is the empty geometry.
type Contents uint8

// Contents values as stored in flag bit 4.
const (
	NotEmpty Contents = iota
	Empty
)

func (c Contents) String() string {
	if c == Empty {
		return "Empty"
	}
	return "NotEmpty"
}

const (
	flagLittleEndian   = 1 << 0
	flagIndicatorShift = 1
	flagIndicatorMask  = 0x7 << flagIndicatorShift
	flagEmpty          = 1 << 4
	flagExtended       = 1 << 5
)

func errorInvalidIndicator(code uint8) error {
	return errors.Wrapf(ErrInvalidArgument, "invalid envelope contents indicator code %d", code)
}

func errorEnvelopeLength(ind EnvelopeIndicator, n int) error {
	return errors.Wrapf(ErrInvalidArgument,
		"envelope indicator %s requires %d values, got %d", ind, ind.ArraySize(), n)
}

// BinaryHeader is the GeoPackage Binary header preceding the WKB payload.
// A BinaryHeader is immutable.
type BinaryHeader struct {
	version    uint8
	binaryType BinaryType
	contents   Contents
	order      binary.ByteOrder
	srsID      int32
	indicator  EnvelopeIndicator
	envelope   []float64
}

// NewBinaryHeader validates its arguments and returns a header. envelope is
// copied and must hold exactly ind.ArraySize() values.
func NewBinaryHeader(version uint8, bt BinaryType, contents Contents, order binary.ByteOrder,
	srsID int32, ind EnvelopeIndicator, envelope []float64,
) (*BinaryHeader, error) {
	if err := checkByteOrder(order); err != nil {
		return nil, err
	}
	if bt > Extended {
		return nil, errors.Wrapf(ErrInvalidArgument, "invalid binary type %d", uint8(bt))
	}
	if contents > Empty {
		return nil, errors.Wrapf(ErrInvalidArgument, "invalid contents %d", uint8(contents))
	}
	if !ind.valid() {
		return nil, errorInvalidIndicator(uint8(ind))
	}
	if len(envelope) != ind.ArraySize() {
		return nil, errorEnvelopeLength(ind, len(envelope))
	}
	return &BinaryHeader{
		version:    version,
		binaryType: bt,
		contents:   contents,
		order:      order,
		srsID:      srsID,
		indicator:  ind,
		envelope:   append([]float64{}, envelope...),
	}, nil
}

// ParseBinaryHeader parses the header at the start of b.
func ParseBinaryHeader(b []byte) (*BinaryHeader, error) {
	return ReadBinaryHeader(bytecursor.Wrap(b))
}

// ReadBinaryHeader reads a header from the cursor's read position and leaves
// the cursor positioned at the WKB payload. The cursor's byte order is set to
// the header's.
func ReadBinaryHeader(c *bytecursor.Cursor) (*BinaryHeader, error) {
	if c.Remaining() < MinHeaderSize {
		return nil, errors.Wrapf(ErrInvalidFormat,
			"geopackage binary header needs %d bytes, got %d", MinHeaderSize, c.Remaining())
	}
	start := c.Position()

	magic, err := c.ReadBytes(2)
	if err != nil {
		return nil, formatError(err)
	}
	if magic[0] != Magic[0] || magic[1] != Magic[1] {
		return nil, errors.Wrapf(ErrInvalidFormat,
			"unexpected geopackage binary magic number %#x %#x, expected %q", magic[0], magic[1], "GP")
	}
	version, err := c.ReadU8()
	if err != nil {
		return nil, formatError(err)
	}
	flags, err := c.ReadU8()
	if err != nil {
		return nil, formatError(err)
	}

	var order binary.ByteOrder = binary.BigEndian
	if flags&flagLittleEndian != 0 {
		order = binary.LittleEndian
	}
	ind := EnvelopeIndicator((flags & flagIndicatorMask) >> flagIndicatorShift)
	if !ind.valid() {
		return nil, errors.Wrapf(ErrInvalidFormat, "invalid envelope contents indicator code %d", uint8(ind))
	}
	contents := NotEmpty
	if flags&flagEmpty != 0 {
		contents = Empty
	}
	bt := Standard
	if flags&flagExtended != 0 {
		bt = Extended
	}

	size := MinHeaderSize + 8*ind.ArraySize()
	if avail := c.Len() - start; avail < size {
		return nil, errors.Wrapf(ErrInvalidFormat,
			"geopackage binary header with %s envelope needs %d bytes, got %d", ind, size, avail)
	}

	c.SetByteOrder(order)
	srsID, err := c.ReadI32()
	if err != nil {
		return nil, formatError(err)
	}
	envelope := make([]float64, ind.ArraySize())
	for i := range envelope {
		if envelope[i], err = c.ReadF64(); err != nil {
			return nil, formatError(err)
		}
	}

	return &BinaryHeader{
		version:    version,
		binaryType: bt,
		contents:   contents,
		order:      order,
		srsID:      srsID,
		indicator:  ind,
		envelope:   envelope,
	}, nil
}

// HeaderFor derives a version 0, big-endian header for g: the binary type
// follows from g's type name, the contents from g.IsEmpty, and the envelope
// from g.Envelope.
func HeaderFor(g Geometry, srsID int32) (*BinaryHeader, error) {
	return headerFor(g, srsID, binary.BigEndian, false)
}

func headerFor(g Geometry, srsID int32, order binary.ByteOrder, omitEnvelope bool) (*BinaryHeader, error) {
	if g == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "geometry may not be nil")
	}
	bt := Standard
	if !IsCoreTypeName(g.TypeName()) {
		bt = Extended
	}
	contents := NotEmpty
	if g.IsEmpty() {
		contents = Empty
	}
	ind, values := NoEnvelope, []float64{}
	if !omitEnvelope {
		env := g.Envelope()
		ind, values = env.Indicator(), env.Array()
	}
	return NewBinaryHeader(0, bt, contents, order, srsID, ind, values)
}

// WriteHeaderFor writes the header HeaderFor derives for g.
func WriteHeaderFor(c *bytecursor.Cursor, g Geometry, srsID int32) error {
	h, err := HeaderFor(g, srsID)
	if err != nil {
		return err
	}
	h.WriteBytes(c)
	return nil
}

// Version returns the version byte; 0 means version 1.
func (h *BinaryHeader) Version() uint8 { return h.version }

// BinaryType returns whether the payload is a core or extension type.
func (h *BinaryHeader) BinaryType() BinaryType { return h.binaryType }

// Contents returns whether the geometry is empty.
func (h *BinaryHeader) Contents() Contents { return h.contents }

// ByteOrder returns the byte order of the header fields.
func (h *BinaryHeader) ByteOrder() binary.ByteOrder { return h.order }

// SRSID returns the spatial reference system id.
func (h *BinaryHeader) SRSID() int32 { return h.srsID }

// EnvelopeIndicator returns the envelope contents indicator.
func (h *BinaryHeader) EnvelopeIndicator() EnvelopeIndicator { return h.indicator }

// Envelope returns a copy of the envelope values in header order.
func (h *BinaryHeader) Envelope() []float64 { return append([]float64{}, h.envelope...) }

// Flags returns the flags byte derived from the header fields.
func (h *BinaryHeader) Flags() uint8 {
	var f uint8
	if h.order == binary.LittleEndian {
		f |= flagLittleEndian
	}
	f |= uint8(h.indicator) << flagIndicatorShift
	if h.contents == Empty {
		f |= flagEmpty
	}
	if h.binaryType == Extended {
		f |= flagExtended
	}
	return f
}

// ByteSize returns the serialized header length.
func (h *BinaryHeader) ByteSize() int {
	return MinHeaderSize + 8*h.indicator.ArraySize()
}

// Equal reports whether both headers hold the same fields. Any two NaN
// envelope values compare equal.
func (h *BinaryHeader) Equal(o *BinaryHeader) bool {
	if h == nil || o == nil {
		return h == o
	}
	if h.version != o.version || h.Flags() != o.Flags() || h.srsID != o.srsID ||
		len(h.envelope) != len(o.envelope) {
		return false
	}
	for i := range h.envelope {
		a, b := h.envelope[i], o.envelope[i]
		if math.IsNaN(a) && math.IsNaN(b) {
			continue
		}
		if math.Float64bits(a) != math.Float64bits(b) {
			return false
		}
	}
	return true
}

// WriteBytes sets the cursor's byte order to the header's and writes the
// header. Callers reset the byte order before writing the payload.
func (h *BinaryHeader) WriteBytes(c *bytecursor.Cursor) {
	c.SetByteOrder(h.order)
	c.WriteBytes(Magic[:])
	c.WriteU8(h.version)
	c.WriteU8(h.Flags())
	c.WriteI32(h.srsID)
	for _, v := range h.envelope {
		c.WriteF64(v)
	}
}

// Bytes returns the serialized header.
func (h *BinaryHeader) Bytes() []byte {
	c := bytecursor.New(h.ByteSize())
	h.WriteBytes(c)
	return c.Bytes()
}

func (h *BinaryHeader) String() string {
	return fmt.Sprintf("GP(v%d %s %s %s srs=%d envelope=%s%v)",
		h.version, h.binaryType, h.contents, h.order, h.srsID, h.indicator, h.envelope)
}
