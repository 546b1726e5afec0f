package flatgeobuf

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"

	gpkg "github.com/tingold/orb-gpkg"
)

// Write writes geometries to FlatGeobuf format.
// This is a convenience function for writing geometry-only data without properties.
func Write(w io.Writer, geometries []gpkg.Geometry, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}

	if len(geometries) == 0 {
		return ErrNilGeometry
	}
	for i, g := range geometries {
		if err := checkExportable(g); err != nil {
			return errors.Wrapf(err, "geometry %d", i)
		}
	}

	l := commonLayout(geometries)
	gen := &featureGenerator{geometries: geometries, layout: l}
	return writeWithGenerator(w, gen, commonGeometryType(geometries), l, newSchema(nil, ""), opts)
}

// WriteFeatures writes features to FlatGeobuf format. Attribute columns are
// inferred from all features; the feature id is stored in opts.IDColumn.
func WriteFeatures(w io.Writer, features []*gpkg.Feature, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}

	if len(features) == 0 {
		return ErrNilGeometry
	}

	s := inferSchema(features, opts.idColumn())

	geometries := make([]gpkg.Geometry, 0, len(features))
	properties := make([][]byte, 0, len(features))
	for i, f := range features {
		if f == nil {
			return errors.Wrapf(ErrNilGeometry, "feature %d", i)
		}
		if err := checkExportable(f.Geometry); err != nil {
			return errors.Wrapf(err, "feature %d", f.ID)
		}
		props, err := encodeProperties(f.ID, f.Attributes, s)
		if err != nil {
			return errors.Wrapf(err, "feature %d", f.ID)
		}
		geometries = append(geometries, f.Geometry)
		properties = append(properties, props)
	}

	l := commonLayout(geometries)
	gen := &featureGenerator{geometries: geometries, properties: properties, layout: l}
	return writeWithGenerator(w, gen, commonGeometryType(geometries), l, s, opts)
}

// WriteFeature writes a single feature to FlatGeobuf format.
func WriteFeature(w io.Writer, f *gpkg.Feature, opts *Options) error {
	if f == nil {
		return ErrNilGeometry
	}
	return WriteFeatures(w, []*gpkg.Feature{f}, opts)
}

// WriteBlobs decodes GeoPackage geometry blobs and writes them as features
// numbered from 1. When opts has no CRS, the srs_id of the first blob
// selects one.
func WriteBlobs(w io.Writer, blobs [][]byte, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}

	features := make([]*gpkg.Feature, 0, len(blobs))
	var srsID int32
	for i, blob := range blobs {
		h, g, err := gpkg.Decode(blob)
		if err != nil {
			return errors.Wrapf(err, "blob %d", i)
		}
		if i == 0 {
			srsID = h.SRSID()
		}
		features = append(features, &gpkg.Feature{ID: int64(i + 1), Geometry: g})
	}

	if opts.CRS == nil {
		withCRS := *opts
		withCRS.CRS = CRSFromSRSID(srsID)
		opts = &withCRS
	}
	return WriteFeatures(w, features, opts)
}

// checkExportable rejects geometries the format cannot hold: nil,
// extension types, and empty geometries, which have no bounding box to
// index.
func checkExportable(g gpkg.Geometry) error {
	switch {
	case g == nil:
		return ErrNilGeometry
	case fgbGeometryType(g) == flattypes.GeometryTypeUnknown:
		return errors.Wrapf(ErrUnsupportedType, "%s", g.TypeName())
	case g.IsEmpty():
		return errors.Wrapf(ErrUnsupportedType, "empty %s", g.TypeName())
	}
	return nil
}

// writeWithGenerator handles the common writing logic.
func writeWithGenerator(
	w io.Writer,
	gen writer.FeatureGenerator,
	geomType flattypes.GeometryType,
	l gpkg.Layout,
	s *schema,
	opts *Options,
) error {
	builder := flatbuffers.NewBuilder(4096)

	header := writer.NewHeader(builder)
	header.SetGeometryType(geomType)
	header.SetHasZ(l.HasZ())
	header.SetHasM(l.HasM())

	if opts.Name != "" {
		header.SetName(opts.Name)
	}
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}

	if columns := s.writerColumns(builder); len(columns) > 0 {
		header.SetColumns(columns)
	}

	if opts.CRS != nil {
		crs := writer.NewCrs(builder)
		crs.SetOrg("EPSG")
		if opts.CRS.Code > 0 {
			crs.SetCode(int32(opts.CRS.Code))
		}
		if opts.CRS.Name != "" {
			crs.SetName(opts.CRS.Name)
		}
		if opts.CRS.Description != "" {
			crs.SetDescription(opts.CRS.Description)
		} else if opts.CRS.WKT != "" {
			crs.SetDescription(opts.CRS.WKT)
		}
		header.SetCrs(crs)
	}

	fgbWriter := writer.NewWriter(header, opts.IncludeIndex, gen, nil)

	_, err := fgbWriter.Write(w)
	return errors.Wrap(err, "write flatgeobuf")
}

// featureGenerator yields one feature per geometry, written in layout.
// properties, when set, holds the pre-encoded property buffer of each
// geometry.
type featureGenerator struct {
	geometries []gpkg.Geometry
	properties [][]byte
	layout     gpkg.Layout
	index      int
}

func (g *featureGenerator) Generate() *writer.Feature {
	if g.index >= len(g.geometries) {
		return nil
	}

	i := g.index
	g.index++

	builder := flatbuffers.NewBuilder(1024)
	fgbGeom := geometryToFGB(g.geometries[i], g.layout, builder)
	if fgbGeom == nil {
		return g.Generate() // Skip unsupported geometries
	}

	feature := writer.NewFeature(builder)
	feature.SetGeometry(fgbGeom)

	if i < len(g.properties) && len(g.properties[i]) > 0 {
		feature.SetProperties(g.properties[i])
	}

	return feature
}
