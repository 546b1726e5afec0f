package gpkg

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/tingold/orb-gpkg/bytecursor"
)

var geometryComparer = cmp.Options{
	cmp.AllowUnexported(base{}, Point{}, LineString{}, Polygon{}, MultiPoint{},
		MultiLineString{}, MultiPolygon{}, GeometryCollection{}),
	cmpopts.EquateNaNs(),
	cmpopts.EquateEmpty(),
}

var allLayouts = []Layout{XY, XYZ, XYM, XYZM}

func pt(x, y float64) Coord {
	return Coord{X: x, Y: y, Z: x + y, M: x * y}
}

func square(x, y, size float64) []Coord {
	return []Coord{pt(x, y), pt(x+size, y), pt(x+size, y+size), pt(x, y+size), pt(x, y)}
}

// sampleGeometries returns one non-trivial value per kind plus the empty
// variants, all in layout l.
func sampleGeometries(l Layout) map[string]Geometry {
	point := NewPoint(l, pt(1, 2))
	line := NewLineString(l, []Coord{pt(0, 0), pt(1, 1), pt(2, 0.5)})
	poly := NewPolygon(l, [][]Coord{square(0, 0, 10), square(2, 2, 3)})

	return map[string]Geometry{
		"point":             point,
		"empty point":       NewPointEmpty(l),
		"linestring":        line,
		"empty linestring":  NewLineString(l, nil),
		"polygon":           poly,
		"empty polygon":     NewPolygon(l, nil),
		"multipoint":        NewMultiPoint(l, []Coord{pt(1, 2), pt(-3, 4)}),
		"empty multipoint":  NewMultiPoint(l, nil),
		"multilinestring":   NewMultiLineString(l, [][]Coord{{pt(0, 0), pt(1, 1)}, {pt(5, 5), pt(6, 7), pt(8, 9)}}),
		"multipolygon":      NewMultiPolygon(l, [][][]Coord{{square(0, 0, 1)}, {square(5, 5, 2), square(5.5, 5.5, 0.5)}}),
		"empty multipolygon": NewMultiPolygon(l, nil),
		"collection": MustNewGeometryCollection(l,
			point, line, poly,
			MustNewGeometryCollection(l, NewMultiPoint(l, []Coord{pt(9, 9)})),
		),
		"empty collection": MustNewGeometryCollection(l),
	}
}

func decodeWKB(t *testing.T, b []byte) Geometry {
	t.Helper()
	c := bytecursor.Wrap(b)
	g, err := DefaultRegistry().Decode(c)
	require.NoError(t, err)
	require.Zero(t, c.Remaining())
	return g
}

func TestWKBRoundTrip(t *testing.T) {
	for _, l := range allLayouts {
		for name, g := range sampleGeometries(l) {
			for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
				t.Run(fmt.Sprintf("%s/%s/%s", l, name, order), func(t *testing.T) {
					b, err := WKB(g, order)
					require.NoError(t, err)
					require.Equal(t, orderMarker(order), b[0])
					require.Equal(t, g.TypeCode(), order.Uint32(b[1:5]))

					got := decodeWKB(t, b)
					if diff := cmp.Diff(g, got, geometryComparer); diff != "" {
						t.Errorf("round trip mismatch (-want +got):\n%s", diff)
					}
				})
			}
		}
	}
}

func TestTypeCodes(t *testing.T) {
	for _, l := range allLayouts {
		for _, g := range sampleGeometries(l) {
			require.Equal(t, l.TypeCodeBase(), g.TypeCode()/1000*1000)
			require.Equal(t, l.HasZ(), g.HasZ())
			require.Equal(t, l.HasM(), g.HasM())
			require.True(t, IsCoreTypeName(g.TypeName()))
		}
	}
	require.Equal(t, uint32(1003), NewPolygon(XYZ, nil).TypeCode())
	require.Equal(t, uint32(2001), NewPointEmpty(XYM).TypeCode())
	require.Equal(t, uint32(3007), MustNewGeometryCollection(XYZM).TypeCode())
	require.Equal(t, "MULTILINESTRING", NewMultiLineString(XY, nil).TypeName())
}

func TestEmptyContainersEncodeZeroCount(t *testing.T) {
	tests := []struct {
		name string
		geom Geometry
		want []byte
	}{
		{"linestring", NewLineString(XY, nil), []byte{0, 0, 0, 0, 2, 0, 0, 0, 0}},
		{"polygon", NewPolygon(XY, nil), []byte{0, 0, 0, 0, 3, 0, 0, 0, 0}},
		{"xyz collection", MustNewGeometryCollection(XYZ), []byte{0, 0, 0, 0x03, 0xEF, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := WKB(tt.geom, binary.BigEndian)
			require.NoError(t, err)
			require.Equal(t, tt.want, b)

			got := decodeWKB(t, b)
			require.True(t, got.IsEmpty())
			require.Equal(t, tt.geom.TypeCode(), got.TypeCode())
		})
	}
}

func TestPolygonEmptyExteriorKeepsRings(t *testing.T) {
	tests := []struct {
		name  string
		geom  Geometry
		rings int
	}{
		{"empty exterior only", NewPolygon(XY, [][]Coord{{}}), 1},
		{"empty exterior with hole", NewPolygon(XYZ, [][]Coord{{}, square(0, 0, 1)}), 2},
		{"multipolygon member", NewMultiPolygon(XYM, [][][]Coord{{{}, square(2, 2, 1)}, {square(0, 0, 5)}}), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := WKB(tt.geom, binary.BigEndian)
			require.NoError(t, err)

			got := decodeWKB(t, b)
			if diff := cmp.Diff(tt.geom, got, geometryComparer); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
			if p, ok := got.(*Polygon); ok {
				require.Equal(t, tt.rings, p.NumRings())
			}

			again, err := WKB(got, binary.BigEndian)
			require.NoError(t, err)
			require.Equal(t, b, again)
		})
	}

	b, err := WKB(NewPolygon(XY, [][]Coord{{}}), binary.BigEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 3, 0, 0, 0, 1, 0, 0, 0, 0}, b)
}

func TestEmptyPointIsNaN(t *testing.T) {
	b, err := WKB(NewPointEmpty(XYZ), binary.BigEndian)
	require.NoError(t, err)
	require.Len(t, b, 5+3*8)
	for i := 0; i < 3; i++ {
		v := math.Float64frombits(binary.BigEndian.Uint64(b[5+8*i:]))
		require.True(t, math.IsNaN(v))
	}

	got := decodeWKB(t, b)
	require.True(t, got.IsEmpty())
	require.True(t, got.Envelope().IsEmpty())
}

func TestWKBPointBytes(t *testing.T) {
	b, err := WKB(NewPoint(XY, Coord{X: 1, Y: 2}), binary.BigEndian)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x00,
		0x00, 0x00, 0x00, 0x01,
		0x3F, 0xF0, 0, 0, 0, 0, 0, 0,
		0x40, 0x00, 0, 0, 0, 0, 0, 0,
	}, b)
}

func TestWKBTruncatedPrefixes(t *testing.T) {
	for _, l := range allLayouts {
		for name, g := range sampleGeometries(l) {
			t.Run(fmt.Sprintf("%s/%s", l, name), func(t *testing.T) {
				b, err := WKB(g, binary.LittleEndian)
				require.NoError(t, err)
				for n := 0; n < len(b); n++ {
					_, err := DefaultRegistry().Decode(bytecursor.Wrap(b[:n]))
					require.Truef(t, errors.Is(err, ErrInvalidFormat), "prefix %d: %v", n, err)
				}
			})
		}
	}
}

func TestHugeCountRejected(t *testing.T) {
	b := []byte{0, 0, 0, 0, 2, 0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0}
	_, err := DefaultRegistry().Decode(bytecursor.Wrap(b))
	require.True(t, errors.Is(err, ErrInvalidFormat))
	require.Contains(t, err.Error(), "4294967295 points")
}

func TestDecoderChecksTypeCode(t *testing.T) {
	b, err := WKB(NewLineString(XY, []Coord{pt(0, 0), pt(1, 1)}), binary.BigEndian)
	require.NoError(t, err)

	_, err = ReadPoint(bytecursor.Wrap(b), XY)
	require.True(t, errors.Is(err, ErrInvalidFormat))

	_, err = ReadLineString(bytecursor.Wrap(b), XYZ)
	require.True(t, errors.Is(err, ErrInvalidFormat))

	ls, err := ReadLineString(bytecursor.Wrap(b), XY)
	require.NoError(t, err)
	require.Equal(t, 2, ls.NumCoords())
}

func TestMultiMemberKindMismatch(t *testing.T) {
	c := bytecursor.New(0)
	writePreamble(c, TypeCode(KindMultiPoint, XY))
	c.WriteU32(1)
	require.NoError(t, NewLineString(XY, []Coord{pt(0, 0), pt(1, 1)}).WriteWKB(c))

	_, err := DefaultRegistry().Decode(bytecursor.Wrap(c.Bytes()))
	require.True(t, errors.Is(err, ErrInvalidFormat))
	require.Contains(t, err.Error(), "member at index 0")
}

func TestCollectionDimensionalityAgreement(t *testing.T) {
	c := bytecursor.New(0)
	writePreamble(c, TypeCode(KindGeometryCollection, XY))
	c.WriteU32(2)
	require.NoError(t, NewPoint(XY, pt(1, 1)).WriteWKB(c))
	require.NoError(t, NewPoint(XYZ, pt(1, 1)).WriteWKB(c))

	_, err := DefaultRegistry().Decode(bytecursor.Wrap(c.Bytes()))
	require.True(t, errors.Is(err, ErrInvalidFormat))
	require.Contains(t, err.Error(), "geometry at index 1 is not in dimensionality agreement")

	_, err = NewGeometryCollection(XY, NewPoint(XYZ, pt(1, 1)))
	require.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = NewGeometryCollection(XY, nil)
	require.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestMixedByteOrderMembers(t *testing.T) {
	c := bytecursor.New(0)
	c.SetByteOrder(binary.LittleEndian)
	writePreamble(c, TypeCode(KindGeometryCollection, XY))
	c.WriteU32(2)
	c.SetByteOrder(binary.BigEndian)
	require.NoError(t, NewPoint(XY, pt(1, 2)).WriteWKB(c))
	c.SetByteOrder(binary.LittleEndian)
	require.NoError(t, NewLineString(XY, []Coord{pt(3, 4), pt(5, 6)}).WriteWKB(c))

	got := decodeWKB(t, c.Bytes())
	want := MustNewGeometryCollection(XY, NewPoint(XY, pt(1, 2)), NewLineString(XY, []Coord{pt(3, 4), pt(5, 6)}))
	if diff := cmp.Diff(want, got, geometryComparer); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGettersReturnCopies(t *testing.T) {
	ring := square(0, 0, 1)
	p := NewPolygon(XY, [][]Coord{ring})
	ring[0].X = 100
	require.Equal(t, float64(0), p.ExteriorRing()[0].X)

	rings := p.Rings()
	rings[0][0].X = 100
	require.Equal(t, float64(0), p.Rings()[0][0].X)

	gc := MustNewGeometryCollection(XY, NewPoint(XY, pt(1, 1)))
	members := gc.Geometries()
	members[0] = nil
	require.NotNil(t, gc.Geometry(0))
}

func TestWKBArguments(t *testing.T) {
	_, err := WKB(nil, binary.BigEndian)
	require.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = WKB(NewPoint(XY, pt(1, 1)), nil)
	require.True(t, errors.Is(err, ErrInvalidArgument))
}
