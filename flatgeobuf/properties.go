package flatgeobuf

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"

	gpkg "github.com/tingold/orb-gpkg"
	"github.com/tingold/orb-gpkg/bytecursor"
)

type column struct {
	name string
	typ  flattypes.ColumnType
}

// schema is the ordered column list of a file. Property buffers refer to
// columns by their position in it.
type schema struct {
	columns  []column
	index    map[string]int
	idColumn string
}

func newSchema(columns []column, idColumn string) *schema {
	s := &schema{columns: columns, index: make(map[string]int, len(columns)), idColumn: idColumn}
	for i, c := range columns {
		s.index[c.name] = i
	}
	return s
}

// inferSchema examines every attribute of every feature and picks the
// narrowest column type that holds all of its values. The id column comes
// first, the rest are sorted by name.
func inferSchema(features []*gpkg.Feature, idColumn string) *schema {
	types := make(map[string]flattypes.ColumnType)
	typed := make(map[string]bool)

	for _, f := range features {
		if f == nil {
			continue
		}
		for name, value := range f.Attributes {
			if name == idColumn {
				continue
			}
			if _, ok := types[name]; !ok {
				types[name] = flattypes.ColumnTypeString
			}
			if value == nil {
				continue
			}
			inferred := inferColumnType(value)
			if typed[name] {
				types[name] = promoteColumnType(types[name], inferred)
			} else {
				types[name] = inferred
				typed[name] = true
			}
		}
	}

	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]column, 0, len(names)+1)
	if idColumn != "" {
		columns = append(columns, column{name: idColumn, typ: flattypes.ColumnTypeLong})
	}
	for _, name := range names {
		columns = append(columns, column{name: name, typ: types[name]})
	}
	return newSchema(columns, idColumn)
}

// schemaFromHeader reads the column list of a file header.
func schemaFromHeader(h *flattypes.Header, idColumn string) *schema {
	n := h.ColumnsLength()
	columns := make([]column, 0, n)
	for i := 0; i < n; i++ {
		var col flattypes.Column
		if h.Columns(&col, i) {
			columns = append(columns, column{name: string(col.Name()), typ: col.Type()})
		}
	}

	s := newSchema(columns, "")
	if i, ok := s.index[idColumn]; ok && isIntegerColumn(columns[i].typ) {
		s.idColumn = idColumn
	}
	return s
}

// writerColumns builds the header column tables for s.
func (s *schema) writerColumns(builder *flatbuffers.Builder) []*writer.Column {
	if len(s.columns) == 0 {
		return nil
	}
	columns := make([]*writer.Column, 0, len(s.columns))
	for _, c := range s.columns {
		col := writer.NewColumn(builder)
		col.SetName(c.name)
		col.SetTitle(c.name) // Set title to match name for JS library compatibility
		col.SetType(c.typ)
		col.SetNullable(c.name != s.idColumn)
		columns = append(columns, col)
	}
	return columns
}

// inferColumnType determines the FlatGeobuf column type for a Go value.
func inferColumnType(value any) flattypes.ColumnType {
	if value == nil {
		return flattypes.ColumnTypeString // Default to string for nil
	}

	switch v := value.(type) {
	case bool:
		return flattypes.ColumnTypeBool
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return flattypes.ColumnTypeInt
		}
		return flattypes.ColumnTypeLong
	case int8, int16, int32:
		return flattypes.ColumnTypeInt
	case int64:
		return flattypes.ColumnTypeLong
	case uint, uint8, uint16, uint32:
		return flattypes.ColumnTypeUInt
	case uint64:
		return flattypes.ColumnTypeULong
	case float32:
		return flattypes.ColumnTypeFloat
	case float64:
		return flattypes.ColumnTypeDouble
	case string:
		return flattypes.ColumnTypeString
	case []byte:
		return flattypes.ColumnTypeBinary
	case json.Number:
		// Try to parse as int first, then float
		if _, err := v.Int64(); err == nil {
			return flattypes.ColumnTypeLong
		}
		return flattypes.ColumnTypeDouble
	default:
		return flattypes.ColumnTypeJson
	}
}

var numericRank = map[flattypes.ColumnType]int{
	flattypes.ColumnTypeBool:   0,
	flattypes.ColumnTypeByte:   1,
	flattypes.ColumnTypeUByte:  2,
	flattypes.ColumnTypeShort:  3,
	flattypes.ColumnTypeUShort: 4,
	flattypes.ColumnTypeInt:    5,
	flattypes.ColumnTypeUInt:   6,
	flattypes.ColumnTypeLong:   7,
	flattypes.ColumnTypeULong:  8,
	flattypes.ColumnTypeFloat:  9,
	flattypes.ColumnTypeDouble: 10,
}

func isUnsigned(t flattypes.ColumnType) bool {
	switch t {
	case flattypes.ColumnTypeUByte, flattypes.ColumnTypeUShort, flattypes.ColumnTypeUInt, flattypes.ColumnTypeULong:
		return true
	}
	return false
}

func isIntegerColumn(t flattypes.ColumnType) bool {
	switch t {
	case flattypes.ColumnTypeByte, flattypes.ColumnTypeShort, flattypes.ColumnTypeInt, flattypes.ColumnTypeLong:
		return true
	}
	return isUnsigned(t)
}

// promoteColumnType returns the more general type when there's a conflict.
func promoteColumnType(a, b flattypes.ColumnType) flattypes.ColumnType {
	if a == b {
		return a
	}

	// If either is JSON, use JSON
	if a == flattypes.ColumnTypeJson || b == flattypes.ColumnTypeJson {
		return flattypes.ColumnTypeJson
	}

	// If either is String, use String
	if a == flattypes.ColumnTypeString || b == flattypes.ColumnTypeString {
		return flattypes.ColumnTypeString
	}

	rankA, okA := numericRank[a]
	rankB, okB := numericRank[b]
	if !okA || !okB {
		return flattypes.ColumnTypeJson
	}

	// Negative values do not fit an unsigned column.
	if isIntegerColumn(a) && isIntegerColumn(b) && isUnsigned(a) != isUnsigned(b) {
		if a == flattypes.ColumnTypeULong || b == flattypes.ColumnTypeULong {
			return flattypes.ColumnTypeDouble
		}
		return flattypes.ColumnTypeLong
	}

	if rankA > rankB {
		return a
	}
	return b
}

// encodeProperties encodes a feature's id and attributes. Each present
// value is written as its little-endian uint16 column index followed by the
// value; nil and missing attributes are omitted.
func encodeProperties(id int64, attrs map[string]any, s *schema) ([]byte, error) {
	if len(s.columns) == 0 {
		return nil, nil
	}

	c := bytecursor.New(64)
	c.SetByteOrder(binary.LittleEndian)

	for i, col := range s.columns {
		var value any
		if col.name == s.idColumn {
			value = id
		} else {
			value = attrs[col.name]
		}
		if value == nil {
			continue
		}

		c.WriteI16(int16(uint16(i)))
		if err := writePropertyValue(c, value, col.typ); err != nil {
			return nil, errors.Wrapf(err, "column %q", col.name)
		}
	}

	return c.Bytes(), nil
}

// writePropertyValue writes value in the encoding of colType.
func writePropertyValue(c *bytecursor.Cursor, value any, colType flattypes.ColumnType) error {
	mismatch := func() error {
		return errors.Wrapf(ErrInvalidColumn, "cannot store %T as %s", value, flattypes.EnumNamesColumnType[colType])
	}

	switch colType {
	case flattypes.ColumnTypeBool:
		v, ok := value.(bool)
		if !ok {
			return mismatch()
		}
		if v {
			c.WriteU8(1)
		} else {
			c.WriteU8(0)
		}

	case flattypes.ColumnTypeByte, flattypes.ColumnTypeUByte:
		v, ok := toInt64(value)
		if !ok {
			return mismatch()
		}
		c.WriteU8(uint8(v))

	case flattypes.ColumnTypeShort, flattypes.ColumnTypeUShort:
		v, ok := toInt64(value)
		if !ok {
			return mismatch()
		}
		c.WriteI16(int16(v))

	case flattypes.ColumnTypeInt:
		v, ok := toInt64(value)
		if !ok {
			return mismatch()
		}
		c.WriteI32(int32(v))

	case flattypes.ColumnTypeUInt:
		v, ok := toUint64(value)
		if !ok {
			return mismatch()
		}
		c.WriteU32(uint32(v))

	case flattypes.ColumnTypeLong:
		v, ok := toInt64(value)
		if !ok {
			return mismatch()
		}
		c.WriteI64(v)

	case flattypes.ColumnTypeULong:
		v, ok := toUint64(value)
		if !ok {
			return mismatch()
		}
		c.WriteI64(int64(v))

	case flattypes.ColumnTypeFloat:
		v, ok := toFloat64(value)
		if !ok {
			return mismatch()
		}
		c.WriteF32(float32(v))

	case flattypes.ColumnTypeDouble:
		v, ok := toFloat64(value)
		if !ok {
			return mismatch()
		}
		c.WriteF64(v)

	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime:
		writeSized(c, []byte(toString(value)))

	case flattypes.ColumnTypeJson:
		b, err := json.Marshal(value)
		if err != nil {
			return errors.Wrap(err, "marshal json property")
		}
		writeSized(c, b)

	case flattypes.ColumnTypeBinary:
		b, ok := value.([]byte)
		if !ok {
			return mismatch()
		}
		writeSized(c, b)

	default:
		return mismatch()
	}
	return nil
}

func writeSized(c *bytecursor.Cursor, b []byte) {
	c.WriteU32(uint32(len(b)))
	c.WriteBytes(b)
}

// decodeProperties decodes a property buffer. The id column, when s has
// one, is returned separately.
func decodeProperties(data []byte, s *schema) (id int64, hasID bool, attrs map[string]any, err error) {
	if len(data) == 0 {
		return 0, false, nil, nil
	}

	c := bytecursor.Wrap(data)
	c.SetByteOrder(binary.LittleEndian)
	attrs = make(map[string]any)

	for c.Remaining() > 0 {
		raw, err := c.ReadI16()
		if err != nil {
			return 0, false, nil, errors.Mark(err, ErrInvalidData)
		}
		i := int(uint16(raw))
		if i >= len(s.columns) {
			return 0, false, nil, errors.Wrapf(ErrInvalidData, "column index %d, file has %d columns", i, len(s.columns))
		}
		col := s.columns[i]

		value, err := readPropertyValue(c, col.typ)
		if err != nil {
			return 0, false, nil, errors.Wrapf(errors.Mark(err, ErrInvalidData), "column %q", col.name)
		}

		if col.name == s.idColumn {
			if v, ok := toInt64(value); ok {
				id, hasID = v, true
				continue
			}
		}
		attrs[col.name] = value
	}

	return id, hasID, attrs, nil
}

// readPropertyValue reads one value in the encoding of colType.
func readPropertyValue(c *bytecursor.Cursor, colType flattypes.ColumnType) (any, error) {
	switch colType {
	case flattypes.ColumnTypeBool:
		v, err := c.ReadU8()
		return v != 0, err

	case flattypes.ColumnTypeByte:
		v, err := c.ReadU8()
		return int8(v), err

	case flattypes.ColumnTypeUByte:
		return c.ReadU8()

	case flattypes.ColumnTypeShort:
		return c.ReadI16()

	case flattypes.ColumnTypeUShort:
		v, err := c.ReadI16()
		return uint16(v), err

	case flattypes.ColumnTypeInt:
		return c.ReadI32()

	case flattypes.ColumnTypeUInt:
		return c.ReadU32()

	case flattypes.ColumnTypeLong:
		return c.ReadI64()

	case flattypes.ColumnTypeULong:
		v, err := c.ReadI64()
		return uint64(v), err

	case flattypes.ColumnTypeFloat:
		return c.ReadF32()

	case flattypes.ColumnTypeDouble:
		return c.ReadF64()

	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime:
		b, err := readSized(c)
		return string(b), err

	case flattypes.ColumnTypeJson:
		b, err := readSized(c)
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return string(b), nil
		}
		return v, nil

	case flattypes.ColumnTypeBinary:
		return readSized(c)

	default:
		return nil, errors.Wrapf(ErrInvalidColumn, "column type %d", colType)
	}
}

func readSized(c *bytecursor.Cursor) ([]byte, error) {
	n, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	if int64(n) > int64(c.Remaining()) {
		return nil, errors.Wrapf(bytecursor.ErrOutOfBounds, "value of %d bytes, %d remaining", n, c.Remaining())
	}
	return c.ReadBytes(int(n))
}

// Type conversion helpers

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float32:
		return int64(val), true
	case float64:
		return int64(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, true
		}
		if f, err := val.Float64(); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch val := v.(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case uint:
		return uint64(val), true
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	case int, int8, int16, int32, int64:
		if i, _ := toInt64(val); i >= 0 {
			return uint64(i), true
		}
	case float64:
		if val >= 0 {
			return uint64(val), true
		}
	case json.Number:
		if i, err := val.Int64(); err == nil && i >= 0 {
			return uint64(i), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		return 0, false
	default:
		if i, ok := toInt64(val); ok {
			return float64(i), true
		}
	}
	return 0, false
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		// For other types, use JSON encoding
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
