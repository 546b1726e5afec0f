package flatgeobuf

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"

	gpkg "github.com/tingold/orb-gpkg"
)

func TestWrite_Points(t *testing.T) {
	geometries := []gpkg.Geometry{
		gpkg.NewPoint(gpkg.XY, c(1, 2)),
		gpkg.NewPoint(gpkg.XYZ, gpkg.Coord{X: 3, Y: 4, Z: 5}),
		gpkg.NewPoint(gpkg.XYM, gpkg.Coord{X: 5, Y: 6, M: 7}),
	}

	var buf bytes.Buffer
	err := Write(&buf, geometries, nil)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Check magic bytes
	data := buf.Bytes()
	if len(data) < 8 {
		t.Fatal("output too short")
	}

	expectedMagic := []byte{0x66, 0x67, 0x62, 0x03, 0x66, 0x67, 0x62, 0x00}
	for i, b := range expectedMagic {
		if data[i] != b {
			t.Errorf("magic byte %d: expected 0x%02x, got 0x%02x", i, b, data[i])
		}
	}
}

func TestWrite_AllTypes(t *testing.T) {
	for name, g := range sampleGeometries() {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, []gpkg.Geometry{g}, nil); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if buf.Len() == 0 {
				t.Error("expected non-empty output")
			}
		})
	}
}

func TestWrite_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		geometries []gpkg.Geometry
		expected   error
	}{
		{"no geometries", []gpkg.Geometry{}, ErrNilGeometry},
		{"nil geometry", []gpkg.Geometry{gpkg.NewPoint(gpkg.XY, c(1, 2)), nil}, ErrNilGeometry},
		{"extension type", []gpkg.Geometry{newCircle()}, ErrUnsupportedType},
		{"empty point", []gpkg.Geometry{gpkg.NewPointEmpty(gpkg.XY)}, ErrUnsupportedType},
		{"empty collection", []gpkg.Geometry{gpkg.MustNewGeometryCollection(gpkg.XY)}, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Write(&bytes.Buffer{}, tt.geometries, nil)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestWrite_WithOptions(t *testing.T) {
	geometries := []gpkg.Geometry{
		gpkg.NewPoint(gpkg.XY, c(1, 2)),
	}

	opts := &Options{
		Name:         "test_layer",
		Description:  "A test layer",
		IncludeIndex: true,
		CRS:          WGS84(),
	}

	var buf bytes.Buffer
	err := Write(&buf, geometries, opts)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if buf.Len() == 0 {
		t.Error("expected non-empty output")
	}
}

func TestWrite_NoIndex(t *testing.T) {
	geometries := []gpkg.Geometry{
		gpkg.NewPoint(gpkg.XY, c(1, 2)),
		gpkg.NewPoint(gpkg.XY, c(3, 4)),
	}

	var withIndex, withoutIndex bytes.Buffer
	if err := Write(&withIndex, geometries, &Options{IncludeIndex: true}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := Write(&withoutIndex, geometries, &Options{IncludeIndex: false}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if withoutIndex.Len() >= withIndex.Len() {
		t.Errorf("expected unindexed output (%d bytes) to be smaller than indexed (%d bytes)",
			withoutIndex.Len(), withIndex.Len())
	}
}

func TestWriteFeatures_WithAttributes(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFeatures(&buf, testFeatures(), nil)
	if err != nil {
		t.Fatalf("WriteFeatures failed: %v", err)
	}

	if buf.Len() == 0 {
		t.Error("expected non-empty output")
	}
}

func TestWriteFeatures_Rejected(t *testing.T) {
	if err := WriteFeatures(&bytes.Buffer{}, nil, nil); !errors.Is(err, ErrNilGeometry) {
		t.Errorf("expected ErrNilGeometry, got %v", err)
	}

	features := []*gpkg.Feature{{ID: 1, Geometry: gpkg.NewPoint(gpkg.XY, c(1, 2))}, nil}
	if err := WriteFeatures(&bytes.Buffer{}, features, nil); !errors.Is(err, ErrNilGeometry) {
		t.Errorf("expected ErrNilGeometry, got %v", err)
	}

	if err := WriteFeature(&bytes.Buffer{}, nil, nil); !errors.Is(err, ErrNilGeometry) {
		t.Errorf("expected ErrNilGeometry, got %v", err)
	}
}

func TestWriteBlobs_InvalidBlob(t *testing.T) {
	err := WriteBlobs(&bytes.Buffer{}, [][]byte{[]byte("GP")}, nil)
	if !errors.Is(err, gpkg.ErrInvalidFormat) {
		t.Errorf("expected gpkg.ErrInvalidFormat, got %v", err)
	}
}

func TestCRSFromSRSID(t *testing.T) {
	if crs := CRSFromSRSID(4326); crs == nil || crs.Name != "WGS 84" {
		t.Errorf("expected WGS 84, got %+v", crs)
	}
	if crs := CRSFromSRSID(3857); crs == nil || crs.Code != 3857 {
		t.Errorf("expected EPSG:3857, got %+v", crs)
	}
	for _, id := range []int32{0, -1} {
		if crs := CRSFromSRSID(id); crs != nil {
			t.Errorf("expected nil CRS for srs_id %d, got %+v", id, crs)
		}
	}
}
