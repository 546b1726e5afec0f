package gpkg

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/tingold/orb-gpkg/bytecursor"
)

// Layout is the dimensionality of a geometry's coordinates.
type Layout uint8

// Supported layouts. The WKB type code offset is 1000 times the layout.
const (
	XY   Layout = iota // X, Y
	XYZ                // X, Y, Z
	XYM                // X, Y, M
	XYZM               // X, Y, Z, M
)

// HasZ reports whether coordinates carry a Z ordinate.
func (l Layout) HasZ() bool { return l == XYZ || l == XYZM }

// HasM reports whether coordinates carry an M ordinate.
func (l Layout) HasM() bool { return l == XYM || l == XYZM }

// Stride is the number of ordinates per coordinate.
func (l Layout) Stride() int {
	n := 2
	if l.HasZ() {
		n++
	}
	if l.HasM() {
		n++
	}
	return n
}

// TypeCodeBase is the offset added to a base WKB type code: 0, 1000, 2000 or
// 3000.
func (l Layout) TypeCodeBase() uint32 {
	return uint32(l) * 1000
}

func (l Layout) valid() bool { return l <= XYZM }

func (l Layout) String() string {
	switch l {
	case XY:
		return "XY"
	case XYZ:
		return "XYZ"
	case XYM:
		return "XYM"
	case XYZM:
		return "XYZM"
	default:
		return "INVALID"
	}
}

// LayoutOf returns the layout with the given Z and M presence.
func LayoutOf(hasZ, hasM bool) Layout {
	switch {
	case hasZ && hasM:
		return XYZM
	case hasZ:
		return XYZ
	case hasM:
		return XYM
	default:
		return XY
	}
}

// Kind is the base OGC geometry type code (0-7).
type Kind uint32

// Base type codes. KindGeometry is abstract and never decoded.
const (
	KindGeometry Kind = iota
	KindPoint
	KindLineString
	KindPolygon
	KindMultiPoint
	KindMultiLineString
	KindMultiPolygon
	KindGeometryCollection
)

var kindNames = [...]string{
	KindGeometry:           "GEOMETRY",
	KindPoint:              "POINT",
	KindLineString:         "LINESTRING",
	KindPolygon:            "POLYGON",
	KindMultiPoint:         "MULTIPOINT",
	KindMultiLineString:    "MULTILINESTRING",
	KindMultiPolygon:       "MULTIPOLYGON",
	KindGeometryCollection: "GEOMETRYCOLLECTION",
}

func (k Kind) String() string {
	if k > KindGeometryCollection {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// IsCoreTypeName reports whether name is one of the eight core OGC geometry
// type names. Comparison is case-insensitive.
func IsCoreTypeName(name string) bool {
	for _, n := range kindNames {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// TypeCode combines a base kind and a layout into a WKB type code.
func TypeCode(k Kind, l Layout) uint32 {
	return uint32(k) + l.TypeCodeBase()
}

// SplitTypeCode splits a core WKB type code into its kind and layout.
// ok is false for codes outside the 32 core codes.
func SplitTypeCode(code uint32) (k Kind, l Layout, ok bool) {
	l = Layout(code / 1000)
	k = Kind(code % 1000)
	if !l.valid() || k > KindGeometryCollection {
		return 0, 0, false
	}
	return k, l, true
}

// Coord is a single position. Z and M are only meaningful when the owning
// geometry's layout has them.
type Coord struct {
	X, Y, Z, M float64
}

// EmptyCoord returns a coordinate with all ordinates NaN.
func EmptyCoord() Coord {
	nan := math.NaN()
	return Coord{X: nan, Y: nan, Z: nan, M: nan}
}

// IsEmpty reports whether X and Y are both NaN.
func (c Coord) IsEmpty() bool {
	return math.IsNaN(c.X) && math.IsNaN(c.Y)
}

// in drops the ordinates l does not carry.
func (c Coord) in(l Layout) Coord {
	if !l.HasZ() {
		c.Z = 0
	}
	if !l.HasM() {
		c.M = 0
	}
	return c
}

// Geometry is implemented by all geometry values, including extension types
// registered with a Registry.
type Geometry interface {
	// TypeName is the upper-case geometry type name, e.g. "POINT".
	TypeName() string
	// TypeCode is the full WKB type code including the dimensionality base.
	TypeCode() uint32
	HasZ() bool
	HasM() bool
	IsEmpty() bool
	// Envelope computes the minimal bounding envelope of the geometry.
	Envelope() Envelope
	// WriteWKB writes the geometry as WKB using the cursor's byte order.
	WriteWKB(c *bytecursor.Cursor) error
}

// base holds what every core geometry shares.
type base struct {
	kind   Kind
	layout Layout
}

func (b base) Kind() Kind         { return b.kind }
func (b base) Layout() Layout     { return b.layout }
func (b base) TypeName() string   { return b.kind.String() }
func (b base) TypeCode() uint32   { return TypeCode(b.kind, b.layout) }
func (b base) HasZ() bool         { return b.layout.HasZ() }
func (b base) HasM() bool         { return b.layout.HasM() }
func (b base) emptyEnv() Envelope { return EmptyEnvelope(b.layout) }

func copyCoords(coords []Coord, l Layout) []Coord {
	out := make([]Coord, len(coords))
	for i, c := range coords {
		out[i] = c.in(l)
	}
	return out
}

func copyRings(rings [][]Coord, l Layout) [][]Coord {
	out := make([][]Coord, len(rings))
	for i, r := range rings {
		out[i] = copyCoords(r, l)
	}
	return out
}

func cloneRings(rings [][]Coord) [][]Coord {
	out := make([][]Coord, len(rings))
	for i, r := range rings {
		out[i] = append([]Coord(nil), r...)
	}
	return out
}

func coordsEnvelope(l Layout, coords []Coord) Envelope {
	env := EmptyEnvelope(l)
	for _, c := range coords {
		env = env.Extend(c)
	}
	return env
}

// Point is a single position, possibly empty (all ordinates NaN).
type Point struct {
	base
	coord Coord
}

// NewPoint returns a point at c.
func NewPoint(l Layout, c Coord) *Point {
	return &Point{base: base{KindPoint, l}, coord: c.in(l)}
}

// NewPointEmpty returns the empty point, encoded with NaN ordinates.
func NewPointEmpty(l Layout) *Point {
	return &Point{base: base{KindPoint, l}, coord: EmptyCoord().in(l)}
}

// Coord returns the point's position.
func (p *Point) Coord() Coord { return p.coord }

// IsEmpty reports whether the point is the empty point.
func (p *Point) IsEmpty() bool { return p.coord.IsEmpty() }

// Envelope returns the degenerate envelope at the point.
func (p *Point) Envelope() Envelope {
	if p.IsEmpty() {
		return p.emptyEnv()
	}
	return p.emptyEnv().Extend(p.coord)
}

// LineString is an ordered sequence of positions.
type LineString struct {
	base
	coords []Coord
}

// NewLineString returns a line string through coords. coords is copied.
func NewLineString(l Layout, coords []Coord) *LineString {
	return &LineString{base: base{KindLineString, l}, coords: copyCoords(coords, l)}
}

// Coords returns a copy of the positions.
func (ls *LineString) Coords() []Coord { return append([]Coord(nil), ls.coords...) }

// NumCoords returns the number of positions.
func (ls *LineString) NumCoords() int { return len(ls.coords) }

// IsEmpty reports whether the line string has no positions.
func (ls *LineString) IsEmpty() bool { return len(ls.coords) == 0 }

// Envelope returns the envelope of all positions.
func (ls *LineString) Envelope() Envelope { return coordsEnvelope(ls.layout, ls.coords) }

// Polygon is an ordered sequence of linear rings; the first is the exterior.
type Polygon struct {
	base
	rings [][]Coord
}

// NewPolygon returns a polygon with the given rings. rings is copied.
func NewPolygon(l Layout, rings [][]Coord) *Polygon {
	return &Polygon{base: base{KindPolygon, l}, rings: copyRings(rings, l)}
}

// Rings returns a copy of all rings, exterior first.
func (p *Polygon) Rings() [][]Coord { return cloneRings(p.rings) }

// NumRings returns the number of rings.
func (p *Polygon) NumRings() int { return len(p.rings) }

// ExteriorRing returns a copy of the exterior ring, nil for an empty polygon.
func (p *Polygon) ExteriorRing() []Coord {
	if len(p.rings) == 0 {
		return nil
	}
	return append([]Coord(nil), p.rings[0]...)
}

// IsEmpty reports whether the polygon has no exterior ring positions.
func (p *Polygon) IsEmpty() bool { return len(p.rings) == 0 || len(p.rings[0]) == 0 }

// Envelope returns the envelope of the exterior ring.
func (p *Polygon) Envelope() Envelope {
	if p.IsEmpty() {
		return p.emptyEnv()
	}
	return coordsEnvelope(p.layout, p.rings[0])
}

// MultiPoint is an ordered sequence of points.
type MultiPoint struct {
	base
	coords []Coord
}

// NewMultiPoint returns a multi point with one member per coordinate. An empty
// coordinate becomes an empty member point.
func NewMultiPoint(l Layout, coords []Coord) *MultiPoint {
	return &MultiPoint{base: base{KindMultiPoint, l}, coords: copyCoords(coords, l)}
}

// Coords returns a copy of the member positions.
func (mp *MultiPoint) Coords() []Coord { return append([]Coord(nil), mp.coords...) }

// NumPoints returns the number of members.
func (mp *MultiPoint) NumPoints() int { return len(mp.coords) }

// Point returns member i.
func (mp *MultiPoint) Point(i int) *Point { return NewPoint(mp.layout, mp.coords[i]) }

// IsEmpty reports whether there are no members.
func (mp *MultiPoint) IsEmpty() bool { return len(mp.coords) == 0 }

// Envelope combines the envelopes of all non-empty members.
func (mp *MultiPoint) Envelope() Envelope {
	env := mp.emptyEnv()
	for _, c := range mp.coords {
		if !c.IsEmpty() {
			env = env.Extend(c)
		}
	}
	return env
}

// MultiLineString is an ordered sequence of line strings.
type MultiLineString struct {
	base
	lines [][]Coord
}

// NewMultiLineString returns a multi line string. lines is copied.
func NewMultiLineString(l Layout, lines [][]Coord) *MultiLineString {
	return &MultiLineString{base: base{KindMultiLineString, l}, lines: copyRings(lines, l)}
}

// Lines returns a copy of the member line strings' positions.
func (ml *MultiLineString) Lines() [][]Coord { return cloneRings(ml.lines) }

// NumLineStrings returns the number of members.
func (ml *MultiLineString) NumLineStrings() int { return len(ml.lines) }

// LineString returns member i.
func (ml *MultiLineString) LineString(i int) *LineString {
	return NewLineString(ml.layout, ml.lines[i])
}

// IsEmpty reports whether there are no members.
func (ml *MultiLineString) IsEmpty() bool { return len(ml.lines) == 0 }

// Envelope combines the envelopes of all members.
func (ml *MultiLineString) Envelope() Envelope {
	env := ml.emptyEnv()
	for _, line := range ml.lines {
		env = env.Combine(coordsEnvelope(ml.layout, line))
	}
	return env
}

// MultiPolygon is an ordered sequence of polygons.
type MultiPolygon struct {
	base
	polygons [][][]Coord
}

// NewMultiPolygon returns a multi polygon. polygons is copied.
func NewMultiPolygon(l Layout, polygons [][][]Coord) *MultiPolygon {
	out := make([][][]Coord, len(polygons))
	for i, rings := range polygons {
		out[i] = copyRings(rings, l)
	}
	return &MultiPolygon{base: base{KindMultiPolygon, l}, polygons: out}
}

// Polygons returns a copy of every member's rings.
func (mp *MultiPolygon) Polygons() [][][]Coord {
	out := make([][][]Coord, len(mp.polygons))
	for i, rings := range mp.polygons {
		out[i] = cloneRings(rings)
	}
	return out
}

// NumPolygons returns the number of members.
func (mp *MultiPolygon) NumPolygons() int { return len(mp.polygons) }

// Polygon returns member i.
func (mp *MultiPolygon) Polygon(i int) *Polygon { return NewPolygon(mp.layout, mp.polygons[i]) }

// IsEmpty reports whether there are no members.
func (mp *MultiPolygon) IsEmpty() bool { return len(mp.polygons) == 0 }

// Envelope combines the envelopes of all members.
func (mp *MultiPolygon) Envelope() Envelope {
	env := mp.emptyEnv()
	for i := range mp.polygons {
		env = env.Combine(mp.Polygon(i).Envelope())
	}
	return env
}

// GeometryCollection is an ordered sequence of arbitrary geometries sharing
// the collection's dimensionality.
type GeometryCollection struct {
	base
	geometries []Geometry
}

// NewGeometryCollection returns a collection of geoms. Members must be non-nil
// and agree with l in Z and M presence.
func NewGeometryCollection(l Layout, geoms ...Geometry) (*GeometryCollection, error) {
	for i, g := range geoms {
		if g == nil {
			return nil, errors.Wrapf(ErrInvalidArgument, "geometry collection member %d is nil", i)
		}
		if g.HasZ() != l.HasZ() || g.HasM() != l.HasM() {
			return nil, errors.Wrapf(ErrInvalidArgument,
				"geometry collection member %d (%s) is not in dimensionality agreement with %s", i, g.TypeName(), l)
		}
	}
	return &GeometryCollection{
		base:       base{KindGeometryCollection, l},
		geometries: append([]Geometry(nil), geoms...),
	}, nil
}

// MustNewGeometryCollection is like NewGeometryCollection but panics on error.
func MustNewGeometryCollection(l Layout, geoms ...Geometry) *GeometryCollection {
	gc, err := NewGeometryCollection(l, geoms...)
	if err != nil {
		panic(err)
	}
	return gc
}

// Geometries returns a copy of the member list.
func (gc *GeometryCollection) Geometries() []Geometry {
	return append([]Geometry(nil), gc.geometries...)
}

// NumGeometries returns the number of members.
func (gc *GeometryCollection) NumGeometries() int { return len(gc.geometries) }

// Geometry returns member i.
func (gc *GeometryCollection) Geometry(i int) Geometry { return gc.geometries[i] }

// IsEmpty reports whether there are no members.
func (gc *GeometryCollection) IsEmpty() bool { return len(gc.geometries) == 0 }

// Envelope combines the envelopes of all members.
func (gc *GeometryCollection) Envelope() Envelope {
	env := gc.emptyEnv()
	for _, g := range gc.geometries {
		env = env.Combine(g.Envelope())
	}
	return env
}
