package gpkg

import (
	"database/sql/driver"

	"github.com/cockroachdb/errors"
)

// Blob adapts a geometry column value for database/sql. Scan decodes a
// GeoPackage geometry BLOB with the default codec; Value encodes Geometry
// with SRSID.
type Blob struct {
	Geometry Geometry
	SRSID    int32
	Header   *BinaryHeader // set by Scan
}

// Scan implements sql.Scanner. NULL leaves Geometry and Header nil.
func (b *Blob) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		b.Geometry, b.Header, b.SRSID = nil, nil, 0
		return nil
	case []byte:
		h, g, err := Decode(v)
		if err != nil {
			return err
		}
		b.Geometry, b.Header, b.SRSID = g, h, h.SRSID()
		return nil
	case string:
		return b.Scan([]byte(v))
	default:
		return errors.Wrapf(ErrInvalidArgument, "cannot scan %T into a geometry blob", src)
	}
}

// Value implements driver.Valuer. A nil Geometry is stored as NULL.
func (b Blob) Value() (driver.Value, error) {
	if b.Geometry == nil {
		return nil, nil
	}
	return Encode(b.Geometry, b.SRSID)
}
