package flatgeobuf

import (
	"github.com/cockroachdb/errors"
	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"

	gpkg "github.com/tingold/orb-gpkg"
)

// Reader provides read access to a FlatGeobuf file.
type Reader struct {
	fgb    *flatgeobuf.FlatGeoBuf
	schema *schema
	layout gpkg.Layout
}

// NewReader creates a reader from a file path.
// The file is memory-mapped for efficient access.
func NewReader(path string) (*Reader, error) {
	fgb, err := flatgeobuf.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return newReader(fgb)
}

// NewReaderFromData creates a reader from byte data.
func NewReaderFromData(data []byte) (*Reader, error) {
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidData)
	}
	return newReader(fgb)
}

func newReader(fgb *flatgeobuf.FlatGeoBuf) (*Reader, error) {
	h := fgb.Header()
	if h == nil {
		return nil, errors.Wrap(ErrInvalidData, "missing header")
	}
	return &Reader{
		fgb:    fgb,
		schema: schemaFromHeader(h, DefaultIDColumn),
		layout: gpkg.LayoutOf(h.HasZ(), h.HasM()),
	}, nil
}

// Header returns metadata about the FlatGeobuf file.
func (r *Reader) Header() *Header {
	if r.fgb == nil {
		return nil
	}
	h := r.fgb.Header()
	if h == nil {
		return nil
	}

	header := &Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		GeometryType:  flattypes.EnumNamesGeometryType[h.GeometryType()],
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
		HasZ:          h.HasZ(),
		HasM:          h.HasM(),
		Envelope:      headerEnvelope(h),
	}

	var crs flattypes.Crs
	if h.Crs(&crs) != nil {
		header.CRS = &CRS{
			Code:        int(crs.Code()),
			Name:        string(crs.Name()),
			Description: string(crs.Description()),
		}
	}

	colLen := h.ColumnsLength()
	if colLen > 0 {
		header.Columns = make([]ColumnInfo, 0, colLen)
		for i := 0; i < colLen; i++ {
			var col flattypes.Column
			if h.Columns(&col, i) {
				header.Columns = append(header.Columns, ColumnInfo{
					Name:        string(col.Name()),
					Type:        flattypes.EnumNamesColumnType[col.Type()],
					Title:       string(col.Title()),
					Description: string(col.Description()),
					Nullable:    col.Nullable(),
				})
			}
		}
	}

	return header
}

// headerEnvelope converts the [minX, minY, maxX, maxY] header bbox.
func headerEnvelope(h *flattypes.Header) gpkg.Envelope {
	env := gpkg.EmptyEnvelope(gpkg.XY)
	if h.EnvelopeLength() >= 4 {
		env.MinX, env.MinY = h.Envelope(0), h.Envelope(1)
		env.MaxX, env.MaxY = h.Envelope(2), h.Envelope(3)
	}
	return env
}

// ReadAll reads every feature. Only indexed files can be iterated; others
// return ErrNoIndex.
func (r *Reader) ReadAll() ([]*gpkg.Feature, error) {
	if r.fgb == nil {
		return nil, ErrClosed
	}
	h := r.fgb.Header()

	// Unindexed files are written with a zero feature count, so the index
	// check must come first.
	if h.IndexNodeSize() == 0 {
		return nil, errors.Wrap(ErrNoIndex, "sequential reads are not supported")
	}
	if h.FeaturesCount() == 0 {
		return nil, nil
	}

	env := headerEnvelope(h)
	if env.IsEmpty() {
		return nil, errors.Wrap(ErrInvalidData, "indexed file without envelope")
	}
	return r.search(h, env)
}

// ReadGeometries reads all geometries without properties.
func (r *Reader) ReadGeometries() ([]gpkg.Geometry, error) {
	features, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return geometriesOf(features), nil
}

// Search performs a spatial query using the built-in index.
// Returns features whose bounding boxes intersect env.
func (r *Reader) Search(env gpkg.Envelope) ([]*gpkg.Feature, error) {
	if r.fgb == nil {
		return nil, ErrClosed
	}
	h := r.fgb.Header()

	if h.IndexNodeSize() == 0 {
		return nil, ErrNoIndex
	}
	if env.IsEmpty() {
		return nil, nil
	}
	return r.search(h, env)
}

// SearchGeometries performs a spatial query returning only geometries.
func (r *Reader) SearchGeometries(env gpkg.Envelope) ([]gpkg.Geometry, error) {
	features, err := r.Search(env)
	if err != nil {
		return nil, err
	}
	return geometriesOf(features), nil
}

func (r *Reader) search(h *flattypes.Header, env gpkg.Envelope) ([]*gpkg.Feature, error) {
	found, err := r.fgb.Search(env.MinX, env.MinY, env.MaxX, env.MaxY)
	if err != nil {
		return nil, errors.Wrap(err, "search index")
	}

	features := make([]*gpkg.Feature, 0, len(found))
	for i, fgbFeature := range found {
		f, err := r.convertFeature(fgbFeature, h.GeometryType())
		if err != nil {
			return nil, errors.Wrapf(err, "feature %d", i)
		}
		if f == nil {
			continue
		}
		if !f.hasID {
			f.ID = int64(i + 1)
		}
		features = append(features, f.Feature)
	}

	return features, nil
}

// Close releases resources associated with the reader.
// This is important for memory-mapped files.
func (r *Reader) Close() error {
	// The FlatGeoBuf type doesn't expose a public Close method,
	// but the finalizer will clean up when garbage collected.
	r.fgb = nil
	return nil
}

type readFeature struct {
	*gpkg.Feature
	hasID bool
}

// convertFeature converts a FlatGeobuf feature. Features without a
// geometry yield nil.
func (r *Reader) convertFeature(fgbFeature *flattypes.Feature, headerType flattypes.GeometryType) (*readFeature, error) {
	if fgbFeature == nil {
		return nil, nil
	}

	var geomObj flattypes.Geometry
	fg := fgbFeature.Geometry(&geomObj)
	if fg == nil {
		return nil, nil
	}

	g, err := geometryFromFGB(fg, headerType, r.layout)
	if err != nil {
		return nil, err
	}

	f := &readFeature{Feature: &gpkg.Feature{Geometry: g}}

	propsLen := fgbFeature.PropertiesLength()
	if propsLen > 0 && len(r.schema.columns) > 0 {
		data := make([]byte, propsLen)
		for i := 0; i < propsLen; i++ {
			data[i] = byte(fgbFeature.Properties(i))
		}
		id, hasID, attrs, err := decodeProperties(data, r.schema)
		if err != nil {
			return nil, err
		}
		f.ID, f.hasID, f.Attributes = id, hasID, attrs
	}

	return f, nil
}

func geometriesOf(features []*gpkg.Feature) []gpkg.Geometry {
	geometries := make([]gpkg.Geometry, 0, len(features))
	for _, f := range features {
		if f.Geometry != nil {
			geometries = append(geometries, f.Geometry)
		}
	}
	return geometries
}
