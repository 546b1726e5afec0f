package gpkg

import (
	"github.com/cockroachdb/errors"
	"github.com/twpayne/go-geom"
)

func toGeomLayout(l Layout) geom.Layout {
	switch l {
	case XYZ:
		return geom.XYZ
	case XYM:
		return geom.XYM
	case XYZM:
		return geom.XYZM
	default:
		return geom.XY
	}
}

func fromGeomLayout(l geom.Layout) (Layout, error) {
	switch l {
	case geom.XY:
		return XY, nil
	case geom.XYZ:
		return XYZ, nil
	case geom.XYM:
		return XYM, nil
	case geom.XYZM:
		return XYZM, nil
	default:
		return 0, errors.Wrapf(ErrInvalidArgument, "unsupported go-geom layout %v", l)
	}
}

func flatCoord(flat []float64, l Layout, c Coord) []float64 {
	flat = append(flat, c.X, c.Y)
	if l.HasZ() {
		flat = append(flat, c.Z)
	}
	if l.HasM() {
		flat = append(flat, c.M)
	}
	return flat
}

func flatCoords(flat []float64, l Layout, coords []Coord) []float64 {
	for _, c := range coords {
		flat = flatCoord(flat, l, c)
	}
	return flat
}

// flatRings appends rings to flat and returns the ring end offsets.
func flatRings(flat []float64, l Layout, rings [][]Coord) ([]float64, []int) {
	ends := make([]int, 0, len(rings))
	for _, r := range rings {
		flat = flatCoords(flat, l, r)
		ends = append(ends, len(flat))
	}
	return flat, ends
}

func coordsFromFlat(flat []float64, l Layout) []Coord {
	stride := l.Stride()
	coords := make([]Coord, 0, len(flat)/stride)
	for i := 0; i+stride <= len(flat); i += stride {
		c := Coord{X: flat[i], Y: flat[i+1]}
		switch l {
		case XYZ:
			c.Z = flat[i+2]
		case XYM:
			c.M = flat[i+2]
		case XYZM:
			c.Z, c.M = flat[i+2], flat[i+3]
		}
		coords = append(coords, c)
	}
	return coords
}

func ringsFromPolygon(p *geom.Polygon, l Layout) [][]Coord {
	rings := make([][]Coord, p.NumLinearRings())
	for i := range rings {
		rings[i] = coordsFromFlat(p.LinearRing(i).FlatCoords(), l)
	}
	return rings
}

// ToGeomT converts g to the equivalent go-geom value, keeping Z and M.
func ToGeomT(g Geometry) (geom.T, error) {
	switch v := g.(type) {
	case nil:
		return nil, errors.Wrap(ErrInvalidArgument, "geometry may not be nil")
	case *Point:
		l := toGeomLayout(v.layout)
		if v.IsEmpty() {
			return geom.NewPointEmpty(l), nil
		}
		return geom.NewPointFlat(l, flatCoord(nil, v.layout, v.coord)), nil
	case *LineString:
		return geom.NewLineStringFlat(toGeomLayout(v.layout), flatCoords(nil, v.layout, v.coords)), nil
	case *Polygon:
		flat, ends := flatRings(nil, v.layout, v.rings)
		return geom.NewPolygonFlat(toGeomLayout(v.layout), flat, ends), nil
	case *MultiPoint:
		l := toGeomLayout(v.layout)
		mp := geom.NewMultiPoint(l)
		for i, c := range v.coords {
			p := geom.NewPointEmpty(l)
			if !c.IsEmpty() {
				p = geom.NewPointFlat(l, flatCoord(nil, v.layout, c))
			}
			if err := mp.Push(p); err != nil {
				return nil, errors.Wrapf(err, "multi point member %d", i)
			}
		}
		return mp, nil
	case *MultiLineString:
		flat, ends := flatRings(nil, v.layout, v.lines)
		return geom.NewMultiLineStringFlat(toGeomLayout(v.layout), flat, ends), nil
	case *MultiPolygon:
		var flat []float64
		endss := make([][]int, len(v.polygons))
		for i, rings := range v.polygons {
			flat, endss[i] = flatRings(flat, v.layout, rings)
		}
		return geom.NewMultiPolygonFlat(toGeomLayout(v.layout), flat, endss), nil
	case *GeometryCollection:
		gc := geom.NewGeometryCollection()
		if err := gc.SetLayout(toGeomLayout(v.layout)); err != nil {
			return nil, err
		}
		for i, member := range v.geometries {
			t, err := ToGeomT(member)
			if err != nil {
				return nil, errors.Wrapf(err, "geometry collection member %d", i)
			}
			if err := gc.Push(t); err != nil {
				return nil, errors.Wrapf(err, "geometry collection member %d", i)
			}
		}
		return gc, nil
	default:
		return nil, errors.Wrapf(ErrInvalidArgument, "no go-geom representation for %s", g.TypeName())
	}
}

// FromGeomT converts a go-geom value to a Geometry, keeping Z and M.
func FromGeomT(t geom.T) (Geometry, error) {
	if t == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "geometry may not be nil")
	}
	gl := t.Layout()
	if _, ok := t.(*geom.GeometryCollection); ok && gl == geom.NoLayout {
		gl = geom.XY
	}
	l, err := fromGeomLayout(gl)
	if err != nil {
		return nil, err
	}
	switch v := t.(type) {
	case *geom.Point:
		if v.Empty() {
			return NewPointEmpty(l), nil
		}
		return NewPoint(l, coordsFromFlat(v.FlatCoords(), l)[0]), nil
	case *geom.LineString:
		return NewLineString(l, coordsFromFlat(v.FlatCoords(), l)), nil
	case *geom.LinearRing:
		return NewPolygon(l, [][]Coord{coordsFromFlat(v.FlatCoords(), l)}), nil
	case *geom.Polygon:
		return NewPolygon(l, ringsFromPolygon(v, l)), nil
	case *geom.MultiPoint:
		coords := make([]Coord, v.NumPoints())
		for i := range coords {
			p := v.Point(i)
			if p.Empty() {
				coords[i] = EmptyCoord()
				continue
			}
			coords[i] = coordsFromFlat(p.FlatCoords(), l)[0]
		}
		return NewMultiPoint(l, coords), nil
	case *geom.MultiLineString:
		lines := make([][]Coord, v.NumLineStrings())
		for i := range lines {
			lines[i] = coordsFromFlat(v.LineString(i).FlatCoords(), l)
		}
		return NewMultiLineString(l, lines), nil
	case *geom.MultiPolygon:
		polygons := make([][][]Coord, v.NumPolygons())
		for i := range polygons {
			polygons[i] = ringsFromPolygon(v.Polygon(i), l)
		}
		return NewMultiPolygon(l, polygons), nil
	case *geom.GeometryCollection:
		geoms := make([]Geometry, v.NumGeoms())
		for i := range geoms {
			if geoms[i], err = FromGeomT(v.Geom(i)); err != nil {
				return nil, errors.Wrapf(err, "geometry collection member %d", i)
			}
		}
		gc, err := NewGeometryCollection(l, geoms...)
		if err != nil {
			return nil, err
		}
		return gc, nil
	default:
		return nil, errors.Wrapf(ErrInvalidArgument, "unsupported go-geom type %T", t)
	}
}
