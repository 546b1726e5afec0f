package gpkg

import (
	"github.com/paulmach/orb/geojson"
)

// Feature is a row of a GeoPackage feature table: its primary key, its
// decoded geometry and the remaining column values.
type Feature struct {
	ID         int64
	Geometry   Geometry
	Attributes map[string]any
}

// NewFeatureFromBlob decodes blob and returns the feature with the given id
// and attributes.
func NewFeatureFromBlob(id int64, blob []byte, attributes map[string]any) (*Feature, error) {
	_, g, err := Decode(blob)
	if err != nil {
		return nil, err
	}
	return &Feature{ID: id, Geometry: g, Attributes: attributes}, nil
}

// GeoJSON converts f to a GeoJSON feature, projecting the geometry to XY.
func (f *Feature) GeoJSON() (*geojson.Feature, error) {
	og, err := ToOrb(f.Geometry)
	if err != nil {
		return nil, err
	}
	gf := geojson.NewFeature(og)
	gf.ID = f.ID
	for k, v := range f.Attributes {
		gf.Properties[k] = v
	}
	return gf, nil
}
