package flatgeobuf

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	flatbuffers "github.com/google/flatbuffers/go"

	gpkg "github.com/tingold/orb-gpkg"
)

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected flattypes.ColumnType
	}{
		{"nil", nil, flattypes.ColumnTypeString},
		{"bool true", true, flattypes.ColumnTypeBool},
		{"bool false", false, flattypes.ColumnTypeBool},
		{"int", 42, flattypes.ColumnTypeInt},
		{"large int", 9999999999, flattypes.ColumnTypeLong},
		{"int64", int64(9999999999), flattypes.ColumnTypeLong},
		{"uint16", uint16(7), flattypes.ColumnTypeUInt},
		{"float32", float32(3.14), flattypes.ColumnTypeFloat},
		{"float64", 3.14159, flattypes.ColumnTypeDouble},
		{"string", "hello", flattypes.ColumnTypeString},
		{"bytes", []byte{1, 2}, flattypes.ColumnTypeBinary},
		{"map", map[string]any{"key": "value"}, flattypes.ColumnTypeJson},
		{"slice", []any{1, 2, 3}, flattypes.ColumnTypeJson},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := inferColumnType(tt.value)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestInferColumnType_JsonNumber(t *testing.T) {
	if result := inferColumnType(json.Number("42")); result != flattypes.ColumnTypeLong {
		t.Errorf("expected Long for integer json.Number, got %v", result)
	}
	if result := inferColumnType(json.Number("3.14")); result != flattypes.ColumnTypeDouble {
		t.Errorf("expected Double for float json.Number, got %v", result)
	}
}

func TestPromoteColumnType(t *testing.T) {
	tests := []struct {
		name     string
		a, b     flattypes.ColumnType
		expected flattypes.ColumnType
	}{
		{"same type", flattypes.ColumnTypeInt, flattypes.ColumnTypeInt, flattypes.ColumnTypeInt},
		{"int to long", flattypes.ColumnTypeInt, flattypes.ColumnTypeLong, flattypes.ColumnTypeLong},
		{"int to double", flattypes.ColumnTypeInt, flattypes.ColumnTypeDouble, flattypes.ColumnTypeDouble},
		{"bool to int", flattypes.ColumnTypeBool, flattypes.ColumnTypeInt, flattypes.ColumnTypeInt},
		{"signed and unsigned", flattypes.ColumnTypeInt, flattypes.ColumnTypeUInt, flattypes.ColumnTypeLong},
		{"signed and ulong", flattypes.ColumnTypeLong, flattypes.ColumnTypeULong, flattypes.ColumnTypeDouble},
		{"any to json", flattypes.ColumnTypeInt, flattypes.ColumnTypeJson, flattypes.ColumnTypeJson},
		{"any to string", flattypes.ColumnTypeInt, flattypes.ColumnTypeString, flattypes.ColumnTypeString},
		{"binary and number", flattypes.ColumnTypeBinary, flattypes.ColumnTypeInt, flattypes.ColumnTypeJson},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := promoteColumnType(tt.a, tt.b)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func testFeatures() []*gpkg.Feature {
	return []*gpkg.Feature{
		{
			ID:       1,
			Geometry: gpkg.NewPoint(gpkg.XY, c(1, 2)),
			Attributes: map[string]any{
				"name":   "test",
				"value":  42,
				"active": true,
			},
		},
		{
			ID:       2,
			Geometry: gpkg.NewPoint(gpkg.XY, c(3, 4)),
			Attributes: map[string]any{
				"name":  "test2",
				"value": 3.5,
				"score": nil,
			},
		},
	}
}

func TestInferSchema(t *testing.T) {
	s := inferSchema(testFeatures(), DefaultIDColumn)

	expected := []column{
		{DefaultIDColumn, flattypes.ColumnTypeLong},
		{"active", flattypes.ColumnTypeBool},
		{"name", flattypes.ColumnTypeString},
		{"score", flattypes.ColumnTypeString},
		{"value", flattypes.ColumnTypeDouble},
	}
	if !reflect.DeepEqual(s.columns, expected) {
		t.Errorf("expected columns %v, got %v", expected, s.columns)
	}
	if s.index["name"] != 2 {
		t.Errorf("expected name at index 2, got %d", s.index["name"])
	}

	columns := s.writerColumns(flatbuffers.NewBuilder(256))
	if len(columns) != len(expected) {
		t.Errorf("expected %d writer columns, got %d", len(expected), len(columns))
	}
}

func TestInferSchema_WithoutID(t *testing.T) {
	s := inferSchema(testFeatures(), "")
	if len(s.columns) != 4 {
		t.Errorf("expected 4 columns, got %d", len(s.columns))
	}
	if s.columns[0].name != "active" {
		t.Errorf("expected first column 'active', got %q", s.columns[0].name)
	}

	empty := inferSchema(nil, "")
	if len(empty.columns) != 0 || empty.writerColumns(flatbuffers.NewBuilder(64)) != nil {
		t.Error("expected no columns for no features")
	}
}

func TestPropertiesRoundTrip(t *testing.T) {
	s := newSchema([]column{
		{"fid", flattypes.ColumnTypeLong},
		{"flag", flattypes.ColumnTypeBool},
		{"tiny", flattypes.ColumnTypeByte},
		{"short", flattypes.ColumnTypeUShort},
		{"count", flattypes.ColumnTypeInt},
		{"big", flattypes.ColumnTypeULong},
		{"ratio", flattypes.ColumnTypeFloat},
		{"value", flattypes.ColumnTypeDouble},
		{"name", flattypes.ColumnTypeString},
		{"meta", flattypes.ColumnTypeJson},
		{"raw", flattypes.ColumnTypeBinary},
		{"missing", flattypes.ColumnTypeString},
	}, "fid")

	attrs := map[string]any{
		"flag":  true,
		"tiny":  -3,
		"short": 65000,
		"count": -42,
		"big":   uint64(1 << 63),
		"ratio": 0.5,
		"value": 10, // widened to the column type
		"name":  "Ünïcode",
		"meta":  map[string]any{"tags": []any{"a", "b"}},
		"raw":   []byte{0, 1, 2},
	}

	data, err := encodeProperties(77, attrs, s)
	if err != nil {
		t.Fatalf("encodeProperties failed: %v", err)
	}

	id, hasID, got, err := decodeProperties(data, s)
	if err != nil {
		t.Fatalf("decodeProperties failed: %v", err)
	}
	if !hasID || id != 77 {
		t.Errorf("expected id 77, got %d (present %v)", id, hasID)
	}

	expected := map[string]any{
		"flag":  true,
		"tiny":  int8(-3),
		"short": uint16(65000),
		"count": int32(-42),
		"big":   uint64(1 << 63),
		"ratio": float32(0.5),
		"value": float64(10),
		"name":  "Ünïcode",
		"meta":  map[string]any{"tags": []any{"a", "b"}},
		"raw":   []byte{0, 1, 2},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestEncodeProperties_Mismatch(t *testing.T) {
	s := newSchema([]column{{"flag", flattypes.ColumnTypeBool}}, "")

	_, err := encodeProperties(0, map[string]any{"flag": "yes"}, s)
	if !errors.Is(err, ErrInvalidColumn) {
		t.Errorf("expected ErrInvalidColumn, got %v", err)
	}
}

func TestDecodeProperties_Invalid(t *testing.T) {
	s := newSchema([]column{{"name", flattypes.ColumnTypeString}}, "")

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated index", []byte{0}},
		{"unknown column", []byte{5, 0}},
		{"truncated length", []byte{0, 0, 3, 0}},
		{"length past end", []byte{0, 0, 9, 0, 0, 0, 'a'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := decodeProperties(tt.data, s)
			if !errors.Is(err, ErrInvalidData) {
				t.Errorf("expected ErrInvalidData, got %v", err)
			}
		})
	}
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected int64
		ok       bool
	}{
		{"int", 42, 42, true},
		{"int64", int64(100), 100, true},
		{"float64", 3.9, 3, true},
		{"bool", true, 1, true},
		{"string", "hello", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := toInt64(tt.value)
			if ok != tt.ok {
				t.Errorf("expected ok=%v, got ok=%v", tt.ok, ok)
			}
			if ok && result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestToUint64(t *testing.T) {
	if _, ok := toUint64(-1); ok {
		t.Error("expected negative int to be rejected")
	}
	if v, ok := toUint64(int32(5)); !ok || v != 5 {
		t.Errorf("expected 5, got %d (ok=%v)", v, ok)
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected float64
		ok       bool
	}{
		{"float64", 3.14, 3.14, true},
		{"float32", float32(2.5), 2.5, true},
		{"int", 42, 42.0, true},
		{"int16", int16(-2), -2.0, true},
		{"string", "hello", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := toFloat64(tt.value)
			if ok != tt.ok {
				t.Errorf("expected ok=%v, got ok=%v", tt.ok, ok)
			}
			if ok && result != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

func TestToString(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"string", "hello", "hello"},
		{"bytes", []byte("world"), "world"},
		{"int", 42, "42"},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := toString(tt.value)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}
