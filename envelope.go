package gpkg

import (
	"math"

	"github.com/paulmach/orb"
)

// Envelope is an axis-aligned bounding box. Absent axes and an empty envelope
// hold NaN.
type Envelope struct {
	Layout     Layout
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
	MinM, MaxM float64
}

// EmptyEnvelope returns an envelope with every bound NaN.
func EmptyEnvelope(l Layout) Envelope {
	nan := math.NaN()
	return Envelope{
		Layout: l,
		MinX:   nan, MaxX: nan,
		MinY: nan, MaxY: nan,
		MinZ: nan, MaxZ: nan,
		MinM: nan, MaxM: nan,
	}
}

// IsEmpty reports whether no X/Y extent has been computed.
func (e Envelope) IsEmpty() bool {
	return math.IsNaN(e.MinX) && math.IsNaN(e.MaxX) && math.IsNaN(e.MinY) && math.IsNaN(e.MaxY)
}

// Indicator returns the header envelope indicator for e. An empty envelope
// maps to NoEnvelope.
func (e Envelope) Indicator() EnvelopeIndicator {
	if e.IsEmpty() {
		return NoEnvelope
	}
	switch e.Layout {
	case XYZ:
		return EnvelopeXYZ
	case XYM:
		return EnvelopeXYM
	case XYZM:
		return EnvelopeXYZM
	default:
		return EnvelopeXY
	}
}

// Array returns the bounds in header order for the envelope's indicator.
func (e Envelope) Array() []float64 {
	switch e.Indicator() {
	case NoEnvelope:
		return []float64{}
	case EnvelopeXYZ:
		return []float64{e.MinX, e.MaxX, e.MinY, e.MaxY, e.MinZ, e.MaxZ}
	case EnvelopeXYM:
		return []float64{e.MinX, e.MaxX, e.MinY, e.MaxY, e.MinM, e.MaxM}
	case EnvelopeXYZM:
		return []float64{e.MinX, e.MaxX, e.MinY, e.MaxY, e.MinZ, e.MaxZ, e.MinM, e.MaxM}
	default:
		return []float64{e.MinX, e.MaxX, e.MinY, e.MaxY}
	}
}

// EnvelopeFromArray builds an envelope from header-ordered bounds.
func EnvelopeFromArray(ind EnvelopeIndicator, values []float64) (Envelope, error) {
	if !ind.valid() {
		return Envelope{}, errorInvalidIndicator(uint8(ind))
	}
	if len(values) != ind.ArraySize() {
		return Envelope{}, errorEnvelopeLength(ind, len(values))
	}
	var e Envelope
	switch ind {
	case NoEnvelope:
		return EmptyEnvelope(XY), nil
	case EnvelopeXY:
		e = EmptyEnvelope(XY)
	case EnvelopeXYZ:
		e = EmptyEnvelope(XYZ)
		e.MinZ, e.MaxZ = values[4], values[5]
	case EnvelopeXYM:
		e = EmptyEnvelope(XYM)
		e.MinM, e.MaxM = values[4], values[5]
	case EnvelopeXYZM:
		e = EmptyEnvelope(XYZM)
		e.MinZ, e.MaxZ = values[4], values[5]
		e.MinM, e.MaxM = values[6], values[7]
	}
	e.MinX, e.MaxX, e.MinY, e.MaxY = values[0], values[1], values[2], values[3]
	return e, nil
}

// Extend returns e grown to include c.
func (e Envelope) Extend(c Coord) Envelope {
	e.MinX, e.MaxX = nanMin(e.MinX, c.X), nanMax(e.MaxX, c.X)
	e.MinY, e.MaxY = nanMin(e.MinY, c.Y), nanMax(e.MaxY, c.Y)
	if e.Layout.HasZ() {
		e.MinZ, e.MaxZ = nanMin(e.MinZ, c.Z), nanMax(e.MaxZ, c.Z)
	}
	if e.Layout.HasM() {
		e.MinM, e.MaxM = nanMin(e.MinM, c.M), nanMax(e.MaxM, c.M)
	}
	return e
}

// Combine returns the smallest envelope holding both e and o. NaN bounds on
// either side are ignored.
func (e Envelope) Combine(o Envelope) Envelope {
	e.MinX, e.MaxX = nanMin(e.MinX, o.MinX), nanMax(e.MaxX, o.MaxX)
	e.MinY, e.MaxY = nanMin(e.MinY, o.MinY), nanMax(e.MaxY, o.MaxY)
	if e.Layout.HasZ() {
		e.MinZ, e.MaxZ = nanMin(e.MinZ, o.MinZ), nanMax(e.MaxZ, o.MaxZ)
	}
	if e.Layout.HasM() {
		e.MinM, e.MaxM = nanMin(e.MinM, o.MinM), nanMax(e.MaxM, o.MaxM)
	}
	return e
}

// Contains reports whether the X/Y extent of e contains that of o.
func (e Envelope) Contains(o Envelope) bool {
	if e.IsEmpty() || o.IsEmpty() {
		return false
	}
	return e.MinX <= o.MinX && e.MaxX >= o.MaxX && e.MinY <= o.MinY && e.MaxY >= o.MaxY
}

// Bound returns the X/Y extent as an orb.Bound. An empty envelope returns the
// zero bound.
func (e Envelope) Bound() orb.Bound {
	if e.IsEmpty() {
		return orb.Bound{}
	}
	return orb.Bound{
		Min: orb.Point{e.MinX, e.MinY},
		Max: orb.Point{e.MaxX, e.MaxY},
	}
}

// EnvelopeFromBound returns the XY envelope of b.
func EnvelopeFromBound(b orb.Bound) Envelope {
	e := EmptyEnvelope(XY)
	e.MinX, e.MaxX = b.Min[0], b.Max[0]
	e.MinY, e.MaxY = b.Min[1], b.Max[1]
	return e
}

func nanMin(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	default:
		return math.Min(a, b)
	}
}

func nanMax(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	default:
		return math.Max(a, b)
	}
}
