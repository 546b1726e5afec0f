// Package gpkg implements the GeoPackage Binary geometry encoding: the
// "GP" envelope header followed by an OGC Well-Known Binary payload.
//
// It decodes BLOBs read from a GeoPackage geometry column into Geometry values
// and encodes Geometry values back into BLOBs, for all seven OGC geometry
// kinds in XY, XYZ, XYM and XYZM. Decoders are looked up in a Registry keyed
// by WKB type code, so extension geometry types can be plugged in at runtime.
package gpkg

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/tingold/orb-gpkg/bytecursor"
)

// Common errors returned by this package.
var (
	// ErrInvalidFormat reports malformed GeoPackage Binary or WKB bytes.
	ErrInvalidFormat = errors.New("gpkg: invalid format")
	// ErrInvalidArgument reports programmer misuse: nil values, mismatched
	// lengths, out of range codes, or geometry/column disagreement.
	ErrInvalidArgument = errors.New("gpkg: invalid argument")
)

// formatError marks err as ErrInvalidFormat. Buffer underruns coming from the
// cursor stay matchable with bytecursor.ErrOutOfBounds.
func formatError(err error) error {
	if err == nil || errors.Is(err, ErrInvalidFormat) {
		return err
	}
	if errors.Is(err, bytecursor.ErrOutOfBounds) {
		return errors.Mark(errors.Wrap(err, "gpkg: truncated data"), ErrInvalidFormat)
	}
	return errors.Mark(err, ErrInvalidFormat)
}

// Options configures encoding of GeoPackage geometry BLOBs.
type Options struct {
	HeaderByteOrder binary.ByteOrder // Byte order of the GP header fields (default: big-endian)
	WKBByteOrder    binary.ByteOrder // Byte order of the WKB payload (default: big-endian)
	OmitEnvelope    bool             // Write the NoEnvelope indicator instead of the computed envelope
	Registry        *Registry        // Decoder registry (default: DefaultRegistry())
}

// DefaultOptions returns the default options: big-endian header and payload
// with an envelope.
func DefaultOptions() *Options {
	return &Options{
		HeaderByteOrder: binary.BigEndian,
		WKBByteOrder:    binary.BigEndian,
	}
}

func (o *Options) withDefaults() Options {
	out := *DefaultOptions()
	if o == nil {
		return out
	}
	if o.HeaderByteOrder != nil {
		out.HeaderByteOrder = o.HeaderByteOrder
	}
	if o.WKBByteOrder != nil {
		out.WKBByteOrder = o.WKBByteOrder
	}
	out.OmitEnvelope = o.OmitEnvelope
	out.Registry = o.Registry
	return out
}

func checkByteOrder(order binary.ByteOrder) error {
	if order == nil {
		return errors.Wrap(ErrInvalidArgument, "byte order may not be nil")
	}
	if order != binary.BigEndian && order != binary.LittleEndian {
		return errors.Wrapf(ErrInvalidArgument, "unsupported byte order %s", order)
	}
	return nil
}
