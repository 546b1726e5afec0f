package gpkg

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/tingold/orb-gpkg/bytecursor"
)

// WKB byte order markers.
const (
	wkbBigEndian    = 0
	wkbLittleEndian = 1
)

// PreambleSize is the size of the WKB byte order marker plus type code.
const PreambleSize = 5

func orderMarker(order binary.ByteOrder) uint8 {
	if order == binary.LittleEndian {
		return wkbLittleEndian
	}
	return wkbBigEndian
}

// readPreamble reads the byte order marker, applies it to c and returns the
// type code.
func readPreamble(c *bytecursor.Cursor) (uint32, error) {
	marker, err := c.ReadU8()
	if err != nil {
		return 0, formatError(err)
	}
	if marker == wkbBigEndian {
		c.SetByteOrder(binary.BigEndian)
	} else {
		c.SetByteOrder(binary.LittleEndian)
	}
	code, err := c.ReadU32()
	if err != nil {
		return 0, formatError(err)
	}
	return code, nil
}

func expectPreamble(c *bytecursor.Cursor, want uint32) error {
	code, err := readPreamble(c)
	if err != nil {
		return err
	}
	if code != want {
		return errors.Wrapf(ErrInvalidFormat, "unexpected geometry type code %d, expected %d", code, want)
	}
	return nil
}

func writePreamble(c *bytecursor.Cursor, code uint32) {
	c.WriteU8(orderMarker(c.ByteOrder()))
	c.WriteU32(code)
}

// readCount reads a uint32 item count and fails when count items of at least
// minSize bytes each cannot fit in what remains.
func readCount(c *bytecursor.Cursor, minSize int, what string) (int, error) {
	n, err := c.ReadU32()
	if err != nil {
		return 0, formatError(err)
	}
	if need := uint64(n) * uint64(minSize); need > uint64(c.Remaining()) {
		return 0, errors.Wrapf(ErrInvalidFormat,
			"declared %d %s need at least %d bytes, %d remaining", n, what, need, c.Remaining())
	}
	return int(n), nil
}

func readCoord(c *bytecursor.Cursor, l Layout) (Coord, error) {
	var p Coord
	var err error
	if p.X, err = c.ReadF64(); err != nil {
		return p, formatError(err)
	}
	if p.Y, err = c.ReadF64(); err != nil {
		return p, formatError(err)
	}
	if l.HasZ() {
		if p.Z, err = c.ReadF64(); err != nil {
			return p, formatError(err)
		}
	}
	if l.HasM() {
		if p.M, err = c.ReadF64(); err != nil {
			return p, formatError(err)
		}
	}
	return p, nil
}

func readCoords(c *bytecursor.Cursor, l Layout) ([]Coord, error) {
	n, err := readCount(c, 8*l.Stride(), "points")
	if err != nil {
		return nil, err
	}
	coords := make([]Coord, n)
	for i := range coords {
		if coords[i], err = readCoord(c, l); err != nil {
			return nil, err
		}
	}
	return coords, nil
}

func readRings(c *bytecursor.Cursor, l Layout) ([][]Coord, error) {
	n, err := readCount(c, 4, "rings")
	if err != nil {
		return nil, err
	}
	rings := make([][]Coord, n)
	for i := range rings {
		if rings[i], err = readCoords(c, l); err != nil {
			return nil, err
		}
	}
	return rings, nil
}

func writeCoord(c *bytecursor.Cursor, l Layout, p Coord) {
	c.WriteF64(p.X)
	c.WriteF64(p.Y)
	if l.HasZ() {
		c.WriteF64(p.Z)
	}
	if l.HasM() {
		c.WriteF64(p.M)
	}
}

func writeCoords(c *bytecursor.Cursor, l Layout, coords []Coord) {
	c.WriteU32(uint32(len(coords)))
	for _, p := range coords {
		writeCoord(c, l, p)
	}
}

// writeRings writes every ring, an empty exterior included, so interior
// rings are never dropped.
func writeRings(c *bytecursor.Cursor, l Layout, rings [][]Coord) {
	c.WriteU32(uint32(len(rings)))
	for _, r := range rings {
		writeCoords(c, l, r)
	}
}

// ReadPoint decodes a WKB point of layout l.
func ReadPoint(c *bytecursor.Cursor, l Layout) (*Point, error) {
	if err := expectPreamble(c, TypeCode(KindPoint, l)); err != nil {
		return nil, err
	}
	p, err := readCoord(c, l)
	if err != nil {
		return nil, err
	}
	return &Point{base: base{KindPoint, l}, coord: p}, nil
}

// WriteWKB writes the point as WKB.
func (p *Point) WriteWKB(c *bytecursor.Cursor) error {
	writePreamble(c, p.TypeCode())
	writeCoord(c, p.layout, p.coord)
	return nil
}

// ReadLineString decodes a WKB line string of layout l.
func ReadLineString(c *bytecursor.Cursor, l Layout) (*LineString, error) {
	if err := expectPreamble(c, TypeCode(KindLineString, l)); err != nil {
		return nil, err
	}
	coords, err := readCoords(c, l)
	if err != nil {
		return nil, err
	}
	return &LineString{base: base{KindLineString, l}, coords: coords}, nil
}

// WriteWKB writes the line string as WKB.
func (ls *LineString) WriteWKB(c *bytecursor.Cursor) error {
	writePreamble(c, ls.TypeCode())
	writeCoords(c, ls.layout, ls.coords)
	return nil
}

// ReadPolygon decodes a WKB polygon of layout l.
func ReadPolygon(c *bytecursor.Cursor, l Layout) (*Polygon, error) {
	if err := expectPreamble(c, TypeCode(KindPolygon, l)); err != nil {
		return nil, err
	}
	rings, err := readRings(c, l)
	if err != nil {
		return nil, err
	}
	return &Polygon{base: base{KindPolygon, l}, rings: rings}, nil
}

// WriteWKB writes the polygon as WKB.
func (p *Polygon) WriteWKB(c *bytecursor.Cursor) error {
	writePreamble(c, p.TypeCode())
	writeRings(c, p.layout, p.rings)
	return nil
}

// readMembers reads a counted sequence of whole sub-geometries with f and
// hands each to add.
func readMembers(c *bytecursor.Cursor, f Factory, what string, add func(i int, g Geometry) error) error {
	n, err := readCount(c, PreambleSize, what)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		g, err := f(c)
		if err != nil {
			return errors.Wrapf(err, "%s member %d", what, i)
		}
		if err := add(i, g); err != nil {
			return err
		}
	}
	return nil
}

func errorMember(i int, g Geometry, want uint32) error {
	return errors.Wrapf(ErrInvalidFormat,
		"member at index %d has type code %d, expected %d", i, g.TypeCode(), want)
}

// ReadMultiPoint decodes a WKB multi point of layout l. Members are decoded
// with f and must be points of the same layout.
func ReadMultiPoint(c *bytecursor.Cursor, l Layout, f Factory) (*MultiPoint, error) {
	if err := expectPreamble(c, TypeCode(KindMultiPoint, l)); err != nil {
		return nil, err
	}
	want := TypeCode(KindPoint, l)
	var coords []Coord
	err := readMembers(c, f, "points", func(i int, g Geometry) error {
		p, ok := g.(*Point)
		if !ok || p.TypeCode() != want {
			return errorMember(i, g, want)
		}
		coords = append(coords, p.coord)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &MultiPoint{base: base{KindMultiPoint, l}, coords: coords}, nil
}

// WriteWKB writes the multi point as WKB.
func (mp *MultiPoint) WriteWKB(c *bytecursor.Cursor) error {
	writePreamble(c, mp.TypeCode())
	c.WriteU32(uint32(len(mp.coords)))
	code := TypeCode(KindPoint, mp.layout)
	for _, p := range mp.coords {
		writePreamble(c, code)
		writeCoord(c, mp.layout, p)
	}
	return nil
}

// ReadMultiLineString decodes a WKB multi line string of layout l. Members are
// decoded with f and must be line strings of the same layout.
func ReadMultiLineString(c *bytecursor.Cursor, l Layout, f Factory) (*MultiLineString, error) {
	if err := expectPreamble(c, TypeCode(KindMultiLineString, l)); err != nil {
		return nil, err
	}
	want := TypeCode(KindLineString, l)
	var lines [][]Coord
	err := readMembers(c, f, "line strings", func(i int, g Geometry) error {
		ls, ok := g.(*LineString)
		if !ok || ls.TypeCode() != want {
			return errorMember(i, g, want)
		}
		lines = append(lines, ls.coords)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &MultiLineString{base: base{KindMultiLineString, l}, lines: lines}, nil
}

// WriteWKB writes the multi line string as WKB.
func (ml *MultiLineString) WriteWKB(c *bytecursor.Cursor) error {
	writePreamble(c, ml.TypeCode())
	c.WriteU32(uint32(len(ml.lines)))
	code := TypeCode(KindLineString, ml.layout)
	for _, line := range ml.lines {
		writePreamble(c, code)
		writeCoords(c, ml.layout, line)
	}
	return nil
}

// ReadMultiPolygon decodes a WKB multi polygon of layout l. Members are decoded
// with f and must be polygons of the same layout.
func ReadMultiPolygon(c *bytecursor.Cursor, l Layout, f Factory) (*MultiPolygon, error) {
	if err := expectPreamble(c, TypeCode(KindMultiPolygon, l)); err != nil {
		return nil, err
	}
	want := TypeCode(KindPolygon, l)
	var polygons [][][]Coord
	err := readMembers(c, f, "polygons", func(i int, g Geometry) error {
		p, ok := g.(*Polygon)
		if !ok || p.TypeCode() != want {
			return errorMember(i, g, want)
		}
		polygons = append(polygons, p.rings)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &MultiPolygon{base: base{KindMultiPolygon, l}, polygons: polygons}, nil
}

// WriteWKB writes the multi polygon as WKB.
func (mp *MultiPolygon) WriteWKB(c *bytecursor.Cursor) error {
	writePreamble(c, mp.TypeCode())
	c.WriteU32(uint32(len(mp.polygons)))
	code := TypeCode(KindPolygon, mp.layout)
	for _, rings := range mp.polygons {
		writePreamble(c, code)
		writeRings(c, mp.layout, rings)
	}
	return nil
}

// ReadGeometryCollection decodes a WKB geometry collection of layout l.
// Members are decoded with f, so any registered type may nest, but each must
// share the collection's Z and M presence.
func ReadGeometryCollection(c *bytecursor.Cursor, l Layout, f Factory) (*GeometryCollection, error) {
	if err := expectPreamble(c, TypeCode(KindGeometryCollection, l)); err != nil {
		return nil, err
	}
	var geoms []Geometry
	err := readMembers(c, f, "geometries", func(i int, g Geometry) error {
		if g.HasZ() != l.HasZ() || g.HasM() != l.HasM() {
			return errors.Wrapf(ErrInvalidFormat,
				"geometry at index %d is not in dimensionality agreement with its parent geometry collection", i)
		}
		geoms = append(geoms, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &GeometryCollection{base: base{KindGeometryCollection, l}, geometries: geoms}, nil
}

// WriteWKB writes the collection as WKB; members write themselves in the
// cursor's current byte order.
func (gc *GeometryCollection) WriteWKB(c *bytecursor.Cursor) error {
	writePreamble(c, gc.TypeCode())
	c.WriteU32(uint32(len(gc.geometries)))
	for i, g := range gc.geometries {
		if err := g.WriteWKB(c); err != nil {
			return errors.Wrapf(err, "geometry collection member %d", i)
		}
	}
	return nil
}

// WKB returns g encoded as WKB in the given byte order.
func WKB(g Geometry, order binary.ByteOrder) ([]byte, error) {
	if g == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "geometry may not be nil")
	}
	if err := checkByteOrder(order); err != nil {
		return nil, err
	}
	c := bytecursor.New(0)
	c.SetByteOrder(order)
	if err := g.WriteWKB(c); err != nil {
		return nil, err
	}
	return c.Bytes(), nil
}
