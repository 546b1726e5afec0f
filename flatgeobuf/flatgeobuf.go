// Package flatgeobuf exports GeoPackage features and geometries to the
// FlatGeobuf format and reads them back. Coordinates are projected to XY;
// Z and M ordinates are dropped on export.
package flatgeobuf

import (
	"github.com/cockroachdb/errors"

	gpkg "github.com/tingold/orb-gpkg"
)

// Common errors returned by this package.
var (
	ErrNilGeometry     = errors.New("flatgeobuf: nil geometry")
	ErrUnsupportedType = errors.New("flatgeobuf: unsupported geometry type")
	ErrInvalidData     = errors.New("flatgeobuf: invalid data")
	ErrNoIndex         = errors.New("flatgeobuf: file has no spatial index")
	ErrInvalidColumn   = errors.New("flatgeobuf: invalid column type")
	ErrClosed          = errors.New("flatgeobuf: reader closed")
)

// DefaultIDColumn is the column that carries gpkg.Feature.ID.
const DefaultIDColumn = "fid"

// CRS represents a coordinate reference system.
type CRS struct {
	Code        int    // EPSG code (e.g., 4326 for WGS84)
	Name        string // CRS name
	Description string // CRS description
	WKT         string // Well-Known Text representation
}

// WGS84 returns the standard WGS84 CRS (EPSG:4326).
func WGS84() *CRS {
	return &CRS{
		Code: 4326,
		Name: "WGS 84",
	}
}

// CRSFromSRSID maps a GeoPackage srs_id to a CRS. The GeoPackage reserved
// ids 0 (undefined geographic) and -1 (undefined Cartesian) have no EPSG
// equivalent and yield nil.
func CRSFromSRSID(srsID int32) *CRS {
	switch {
	case srsID == 4326:
		return WGS84()
	case srsID > 0:
		return &CRS{Code: int(srsID)}
	default:
		return nil
	}
}

// Options configures FlatGeobuf writing.
type Options struct {
	Name         string // Layer name
	Description  string // Layer description
	IncludeIndex bool   // Include spatial index (default: true)
	CRS          *CRS   // Coordinate reference system (optional)

	// IDColumn names the Long column that stores feature ids. Empty means
	// DefaultIDColumn; "-" disables it.
	IDColumn string
}

// DefaultOptions returns default options for writing FlatGeobuf files.
func DefaultOptions() *Options {
	return &Options{
		IncludeIndex: true,
		IDColumn:     DefaultIDColumn,
	}
}

func (o *Options) idColumn() string {
	switch o.IDColumn {
	case "":
		return DefaultIDColumn
	case "-":
		return ""
	default:
		return o.IDColumn
	}
}

// ColumnInfo describes a property column in a FlatGeobuf file.
type ColumnInfo struct {
	Name        string // Column name
	Type        string // Column type ("Bool", "Int", "Long", "Double", "String", "Json", etc.)
	Title       string // Column title (human-readable)
	Description string // Column description
	Nullable    bool   // Whether the column can contain null values
}

// Header contains metadata about a FlatGeobuf file.
type Header struct {
	Name          string        // Layer name
	Description   string        // Layer description
	GeometryType  string        // Geometry type ("Point", "Polygon", "Unknown", etc.)
	FeaturesCount uint64        // Number of features in the file
	Envelope      gpkg.Envelope // XY bounding box, empty when the file has none
	CRS           *CRS          // Coordinate reference system
	HasIndex      bool          // Whether the file has a spatial index
	HasZ          bool          // Whether geometries carry Z values
	HasM          bool          // Whether geometries carry M values
	Columns       []ColumnInfo  // Property column schema
}
