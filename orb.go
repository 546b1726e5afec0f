package gpkg

import (
	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
)

// ToOrb converts g to an orb geometry, keeping only X and Y. Multi geometries
// map to their orb counterparts and collections to orb.Collection. An empty
// point has no orb form and is an error.
func ToOrb(g Geometry) (orb.Geometry, error) {
	switch v := g.(type) {
	case nil:
		return nil, errors.Wrap(ErrInvalidArgument, "geometry may not be nil")
	case *Point:
		return toOrbPoint(v.coord)
	case *LineString:
		return toOrbLineString(v.coords), nil
	case *Polygon:
		return toOrbPolygon(v.rings), nil
	case *MultiPoint:
		mp := make(orb.MultiPoint, len(v.coords))
		for i, c := range v.coords {
			p, err := toOrbPoint(c)
			if err != nil {
				return nil, errors.Wrapf(err, "multi point member %d", i)
			}
			mp[i] = p
		}
		return mp, nil
	case *MultiLineString:
		ml := make(orb.MultiLineString, len(v.lines))
		for i, line := range v.lines {
			ml[i] = toOrbLineString(line)
		}
		return ml, nil
	case *MultiPolygon:
		mp := make(orb.MultiPolygon, len(v.polygons))
		for i, rings := range v.polygons {
			mp[i] = toOrbPolygon(rings)
		}
		return mp, nil
	case *GeometryCollection:
		col := make(orb.Collection, len(v.geometries))
		for i, member := range v.geometries {
			og, err := ToOrb(member)
			if err != nil {
				return nil, errors.Wrapf(err, "geometry collection member %d", i)
			}
			col[i] = og
		}
		return col, nil
	default:
		return nil, errors.Wrapf(ErrInvalidArgument, "no orb representation for %s", g.TypeName())
	}
}

func toOrbPoint(c Coord) (orb.Point, error) {
	if c.IsEmpty() {
		return orb.Point{}, errors.Wrap(ErrInvalidArgument, "empty point has no orb representation")
	}
	return orb.Point{c.X, c.Y}, nil
}

func toOrbLineString(coords []Coord) orb.LineString {
	ls := make(orb.LineString, len(coords))
	for i, c := range coords {
		ls[i] = orb.Point{c.X, c.Y}
	}
	return ls
}

func toOrbPolygon(rings [][]Coord) orb.Polygon {
	p := make(orb.Polygon, len(rings))
	for i, r := range rings {
		p[i] = orb.Ring(toOrbLineString(r))
	}
	return p
}

// FromOrb converts an orb geometry to an XY Geometry. orb.Ring and orb.Bound
// become single-ring polygons.
func FromOrb(g orb.Geometry) (Geometry, error) {
	switch v := g.(type) {
	case nil:
		return nil, errors.Wrap(ErrInvalidArgument, "geometry may not be nil")
	case orb.Point:
		return NewPoint(XY, fromOrbPoint(v)), nil
	case orb.MultiPoint:
		return NewMultiPoint(XY, fromOrbPoints(v)), nil
	case orb.LineString:
		return NewLineString(XY, fromOrbPoints(v)), nil
	case orb.MultiLineString:
		lines := make([][]Coord, len(v))
		for i, ls := range v {
			lines[i] = fromOrbPoints(ls)
		}
		return NewMultiLineString(XY, lines), nil
	case orb.Ring:
		return NewPolygon(XY, [][]Coord{fromOrbPoints(v)}), nil
	case orb.Polygon:
		return NewPolygon(XY, fromOrbPolygon(v)), nil
	case orb.MultiPolygon:
		polygons := make([][][]Coord, len(v))
		for i, p := range v {
			polygons[i] = fromOrbPolygon(p)
		}
		return NewMultiPolygon(XY, polygons), nil
	case orb.Bound:
		return NewPolygon(XY, fromOrbPolygon(v.ToPolygon())), nil
	case orb.Collection:
		geoms := make([]Geometry, len(v))
		for i, og := range v {
			member, err := FromOrb(og)
			if err != nil {
				return nil, errors.Wrapf(err, "collection member %d", i)
			}
			geoms[i] = member
		}
		gc, err := NewGeometryCollection(XY, geoms...)
		if err != nil {
			return nil, err
		}
		return gc, nil
	default:
		return nil, errors.Wrapf(ErrInvalidArgument, "unsupported orb geometry %T", g)
	}
}

func fromOrbPoint(p orb.Point) Coord {
	return Coord{X: p[0], Y: p[1]}
}

func fromOrbPoints[P ~[]orb.Point](points P) []Coord {
	coords := make([]Coord, len(points))
	for i, p := range points {
		coords[i] = fromOrbPoint(p)
	}
	return coords
}

func fromOrbPolygon(p orb.Polygon) [][]Coord {
	rings := make([][]Coord, len(p))
	for i, r := range p {
		rings[i] = fromOrbPoints(r)
	}
	return rings
}
