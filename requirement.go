package gpkg

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ValueRequirement governs whether a geometry column may or must hold Z or M
// values.
type ValueRequirement int

const (
	Prohibited ValueRequirement = iota
	Mandatory
	Optional
)

// ParseValueRequirement converts the integer stored in gpkg_geometry_columns.
func ParseValueRequirement(v int) (ValueRequirement, error) {
	switch ValueRequirement(v) {
	case Prohibited, Mandatory, Optional:
		return ValueRequirement(v), nil
	default:
		return 0, errors.Wrapf(ErrInvalidArgument, "value requirement must be 0, 1 or 2, got %d", v)
	}
}

func (r ValueRequirement) String() string {
	switch r {
	case Prohibited:
		return "Prohibited"
	case Mandatory:
		return "Mandatory"
	case Optional:
		return "Optional"
	default:
		return fmt.Sprintf("ValueRequirement(%d)", int(r))
	}
}

func (r ValueRequirement) allows(present bool) bool {
	switch r {
	case Prohibited:
		return !present
	case Mandatory:
		return present
	default:
		return true
	}
}

// GeometryColumn describes a row of gpkg_geometry_columns.
type GeometryColumn struct {
	TableName    string
	ColumnName   string
	GeometryType string // e.g. "POINT", or "GEOMETRY" for any type
	SRSID        int32
	Z            ValueRequirement
	M            ValueRequirement
}

// VerifyValueRequirements fails when g's Z or M presence violates the
// column's requirements.
func VerifyValueRequirements(col GeometryColumn, g Geometry) error {
	if g == nil {
		return errors.Wrap(ErrInvalidArgument, "geometry may not be nil")
	}
	if !col.Z.allows(g.HasZ()) || !col.M.allows(g.HasM()) {
		return errors.Wrapf(ErrInvalidArgument,
			"Geometry is incompatible with the requirements Z %s, M %s", col.Z, col.M)
	}
	return nil
}

// Verify checks g against the column's value requirements and geometry type.
// A column of type GEOMETRY accepts every type.
func (col GeometryColumn) Verify(g Geometry) error {
	if err := VerifyValueRequirements(col, g); err != nil {
		return err
	}
	if strings.EqualFold(col.GeometryType, KindGeometry.String()) {
		return nil
	}
	if !strings.EqualFold(col.GeometryType, g.TypeName()) {
		return errors.Wrapf(ErrInvalidArgument,
			"geometry type %s does not match column %s.%s of type %s",
			g.TypeName(), col.TableName, col.ColumnName, col.GeometryType)
	}
	return nil
}
