package flatgeobuf

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"

	gpkg "github.com/tingold/orb-gpkg"
)

// fgbGeometryType returns the FlatGeobuf GeometryType for a core geometry.
func fgbGeometryType(g gpkg.Geometry) flattypes.GeometryType {
	switch g.(type) {
	case *gpkg.Point:
		return flattypes.GeometryTypePoint
	case *gpkg.MultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case *gpkg.LineString:
		return flattypes.GeometryTypeLineString
	case *gpkg.MultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case *gpkg.Polygon:
		return flattypes.GeometryTypePolygon
	case *gpkg.MultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	case *gpkg.GeometryCollection:
		return flattypes.GeometryTypeGeometryCollection
	default:
		return flattypes.GeometryTypeUnknown
	}
}

// commonGeometryType is the header geometry type for geoms: their shared
// type, or Unknown when they differ.
func commonGeometryType(geoms []gpkg.Geometry) flattypes.GeometryType {
	geomType := flattypes.GeometryTypeUnknown
	for i, g := range geoms {
		if g == nil {
			continue
		}
		t := fgbGeometryType(g)
		if i > 0 && t != geomType {
			return flattypes.GeometryTypeUnknown
		}
		geomType = t
	}
	return geomType
}

// commonLayout is the file layout for geoms: Z and M are kept only when
// every geometry carries them.
func commonLayout(geoms []gpkg.Geometry) gpkg.Layout {
	hasZ, hasM := true, true
	n := 0
	for _, g := range geoms {
		if g == nil {
			continue
		}
		hasZ = hasZ && g.HasZ()
		hasM = hasM && g.HasM()
		n++
	}
	if n == 0 {
		return gpkg.XY
	}
	return gpkg.LayoutOf(hasZ, hasM)
}

// geometryToFGB converts g to a FlatGeobuf writer.Geometry holding the
// ordinates of layout l. It returns nil for nil or extension geometries.
func geometryToFGB(g gpkg.Geometry, l gpkg.Layout, builder *flatbuffers.Builder) *writer.Geometry {
	if g == nil {
		return nil
	}

	fg := writer.NewGeometry(builder)
	arrays := coordArrays{layout: l}

	switch v := g.(type) {
	case *gpkg.Point:
		fg.SetType(flattypes.GeometryTypePoint)
		arrays.add(v.Coord())

	case *gpkg.MultiPoint:
		fg.SetType(flattypes.GeometryTypeMultiPoint)
		arrays.add(v.Coords()...)

	case *gpkg.LineString:
		fg.SetType(flattypes.GeometryTypeLineString)
		arrays.add(v.Coords()...)

	case *gpkg.MultiLineString:
		fg.SetType(flattypes.GeometryTypeMultiLineString)
		arrays.addParts(v.Lines())

	case *gpkg.Polygon:
		fg.SetType(flattypes.GeometryTypePolygon)
		arrays.addParts(v.Rings())

	case *gpkg.MultiPolygon:
		fg.SetType(flattypes.GeometryTypeMultiPolygon)
		parts := make([]writer.Geometry, 0, v.NumPolygons())
		for _, rings := range v.Polygons() {
			pg := writer.NewGeometry(builder)
			pg.SetType(flattypes.GeometryTypePolygon)
			ringArrays := coordArrays{layout: l}
			ringArrays.addParts(rings)
			ringArrays.setOn(pg)
			parts = append(parts, *pg)
		}
		fg.SetParts(parts)
		return fg

	case *gpkg.GeometryCollection:
		fg.SetType(flattypes.GeometryTypeGeometryCollection)
		parts := make([]writer.Geometry, 0, v.NumGeometries())
		for _, child := range v.Geometries() {
			if cg := geometryToFGB(child, l, builder); cg != nil {
				parts = append(parts, *cg)
			}
		}
		fg.SetParts(parts)
		return fg

	default:
		return nil
	}

	arrays.setOn(fg)
	return fg
}

// coordArrays accumulates the flat ordinate arrays of one FlatGeobuf
// geometry. Z and M are kept only when the layout has them.
type coordArrays struct {
	layout gpkg.Layout
	xy     []float64
	z      []float64
	m      []float64
	ends   []uint32
}

// add appends coordinates. Empty coordinates are written as NaN.
func (a *coordArrays) add(coords ...gpkg.Coord) {
	for _, c := range coords {
		if c.IsEmpty() {
			c = gpkg.EmptyCoord()
		}
		a.xy = append(a.xy, c.X, c.Y)
		if a.layout.HasZ() {
			a.z = append(a.z, c.Z)
		}
		if a.layout.HasM() {
			a.m = append(a.m, c.M)
		}
	}
}

// addParts appends rings or line strings, recording the cumulative end
// index of each part.
func (a *coordArrays) addParts(parts [][]gpkg.Coord) {
	for _, p := range parts {
		a.add(p...)
		a.ends = append(a.ends, uint32(len(a.xy)/2))
	}
}

func (a *coordArrays) setOn(fg *writer.Geometry) {
	fg.SetXY(a.xy)
	if a.ends != nil {
		fg.SetEnds(a.ends)
	}
	if a.layout.HasZ() {
		fg.SetZ(a.z)
	}
	if a.layout.HasM() {
		fg.SetM(a.m)
	}
}

// geometryFromFGB converts a FlatGeobuf geometry to a gpkg.Geometry of
// layout l. fallback is the header geometry type, used when the geometry
// itself carries none.
func geometryFromFGB(fg *flattypes.Geometry, fallback flattypes.GeometryType, l gpkg.Layout) (gpkg.Geometry, error) {
	if fg == nil {
		return nil, ErrNilGeometry
	}

	geomType := fg.Type()
	if geomType == flattypes.GeometryTypeUnknown {
		geomType = fallback
	}

	switch geomType {
	case flattypes.GeometryTypePoint:
		coords := coordsFromXY(fg, l, 0, fg.XyLength()/2)
		if len(coords) == 0 {
			return gpkg.NewPointEmpty(l), nil
		}
		return gpkg.NewPoint(l, coords[0]), nil

	case flattypes.GeometryTypeMultiPoint:
		return gpkg.NewMultiPoint(l, coordsFromXY(fg, l, 0, fg.XyLength()/2)), nil

	case flattypes.GeometryTypeLineString:
		return gpkg.NewLineString(l, coordsFromXY(fg, l, 0, fg.XyLength()/2)), nil

	case flattypes.GeometryTypeMultiLineString:
		lines, err := partsFromXYEnds(fg, l)
		if err != nil {
			return nil, err
		}
		return gpkg.NewMultiLineString(l, lines), nil

	case flattypes.GeometryTypePolygon:
		rings, err := partsFromXYEnds(fg, l)
		if err != nil {
			return nil, err
		}
		return gpkg.NewPolygon(l, rings), nil

	case flattypes.GeometryTypeMultiPolygon:
		return multiPolygonFromParts(fg, l)

	case flattypes.GeometryTypeGeometryCollection:
		return collectionFromParts(fg, l)

	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "%s", flattypes.EnumNamesGeometryType[geomType])
	}
}

// coordsFromXY reads points [start, end) of the ordinate arrays. Z and M
// values missing from a geometry of layout l read as NaN.
func coordsFromXY(fg *flattypes.Geometry, l gpkg.Layout, start, end int) []gpkg.Coord {
	if end <= start {
		return nil
	}
	zLen, mLen := fg.ZLength(), fg.MLength()
	coords := make([]gpkg.Coord, 0, end-start)
	for i := start; i < end; i++ {
		c := gpkg.Coord{X: fg.Xy(2 * i), Y: fg.Xy(2*i + 1)}
		if math.IsNaN(c.X) && math.IsNaN(c.Y) {
			coords = append(coords, gpkg.EmptyCoord())
			continue
		}
		if l.HasZ() {
			c.Z = math.NaN()
			if i < zLen {
				c.Z = fg.Z(i)
			}
		}
		if l.HasM() {
			c.M = math.NaN()
			if i < mLen {
				c.M = fg.M(i)
			}
		}
		coords = append(coords, c)
	}
	return coords
}

// partsFromXYEnds splits the XY array at each end index. Without ends the
// whole array is one part.
func partsFromXYEnds(fg *flattypes.Geometry, l gpkg.Layout) ([][]gpkg.Coord, error) {
	numPoints := fg.XyLength() / 2
	endsLen := fg.EndsLength()

	if numPoints == 0 {
		return nil, nil
	}
	if endsLen == 0 {
		return [][]gpkg.Coord{coordsFromXY(fg, l, 0, numPoints)}, nil
	}

	parts := make([][]gpkg.Coord, 0, endsLen)
	start := 0
	for i := 0; i < endsLen; i++ {
		end := int(fg.Ends(i))
		if end < start || end > numPoints {
			return nil, errors.Wrapf(ErrInvalidData, "end %d at index %d outside [%d, %d]", end, i, start, numPoints)
		}
		parts = append(parts, coordsFromXY(fg, l, start, end))
		start = end
	}
	return parts, nil
}

func multiPolygonFromParts(fg *flattypes.Geometry, l gpkg.Layout) (gpkg.Geometry, error) {
	partsLen := fg.PartsLength()
	if partsLen == 0 {
		// Some writers store a single polygon inline.
		rings, err := partsFromXYEnds(fg, l)
		if err != nil || len(rings) == 0 {
			return gpkg.NewMultiPolygon(l, nil), err
		}
		return gpkg.NewMultiPolygon(l, [][][]gpkg.Coord{rings}), nil
	}

	polygons := make([][][]gpkg.Coord, 0, partsLen)
	for i := 0; i < partsLen; i++ {
		var part flattypes.Geometry
		if !fg.Parts(&part, i) {
			continue
		}
		rings, err := partsFromXYEnds(&part, l)
		if err != nil {
			return nil, errors.Wrapf(err, "polygon %d", i)
		}
		polygons = append(polygons, rings)
	}
	return gpkg.NewMultiPolygon(l, polygons), nil
}

func collectionFromParts(fg *flattypes.Geometry, l gpkg.Layout) (gpkg.Geometry, error) {
	partsLen := fg.PartsLength()
	members := make([]gpkg.Geometry, 0, partsLen)
	for i := 0; i < partsLen; i++ {
		var part flattypes.Geometry
		if !fg.Parts(&part, i) {
			continue
		}
		g, err := geometryFromFGB(&part, flattypes.GeometryTypeUnknown, l)
		if err != nil {
			return nil, errors.Wrapf(err, "geometry %d", i)
		}
		members = append(members, g)
	}

	gc, err := gpkg.NewGeometryCollection(l, members...)
	if err != nil {
		return nil, err
	}
	return gc, nil
}
