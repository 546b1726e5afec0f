package gpkg

import (
	"io"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/tingold/orb-gpkg/bytecursor"
)

// Factory decodes one geometry from the cursor's read position, which is at
// the WKB byte order marker.
type Factory func(c *bytecursor.Cursor) (Geometry, error)

// Registry maps full WKB type codes (dimensionality base + kind) to the
// factories that decode them.
//
// A Registry is safe for concurrent use. Registration is meant to happen at
// setup time; a registration racing with decodes affects only the decodes
// that look the code up after it.
type Registry struct {
	mu        sync.RWMutex
	factories map[uint32]Factory
	logger    *slog.Logger
}

// NewRegistry returns a registry holding factories for all 32 core type codes.
// Code 0 in every layout names the abstract Geometry type and always fails.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[uint32]Factory, 32),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, l := range []Layout{XY, XYZ, XYM, XYZM} {
		l := l
		r.factories[TypeCode(KindGeometry, l)] = func(*bytecursor.Cursor) (Geometry, error) {
			return nil, errors.Wrapf(ErrInvalidFormat,
				"cannot instantiate abstract geometry type (code %d)", TypeCode(KindGeometry, l))
		}
		r.factories[TypeCode(KindPoint, l)] = func(c *bytecursor.Cursor) (Geometry, error) {
			return ReadPoint(c, l)
		}
		r.factories[TypeCode(KindLineString, l)] = func(c *bytecursor.Cursor) (Geometry, error) {
			return ReadLineString(c, l)
		}
		r.factories[TypeCode(KindPolygon, l)] = func(c *bytecursor.Cursor) (Geometry, error) {
			return ReadPolygon(c, l)
		}
		r.factories[TypeCode(KindMultiPoint, l)] = func(c *bytecursor.Cursor) (Geometry, error) {
			return ReadMultiPoint(c, l, r.Decode)
		}
		r.factories[TypeCode(KindMultiLineString, l)] = func(c *bytecursor.Cursor) (Geometry, error) {
			return ReadMultiLineString(c, l, r.Decode)
		}
		r.factories[TypeCode(KindMultiPolygon, l)] = func(c *bytecursor.Cursor) (Geometry, error) {
			return ReadMultiPolygon(c, l, r.Decode)
		}
		r.factories[TypeCode(KindGeometryCollection, l)] = func(c *bytecursor.Cursor) (Geometry, error) {
			return ReadGeometryCollection(c, l, r.Decode)
		}
	}
	return r
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry used when Options.Registry is nil.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// SetLogger sets the logger for registration events. A nil logger discards.
func (r *Registry) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Register adds or replaces the factory for code. code must fit in an
// unsigned 32-bit integer. The last registration for a code wins.
func (r *Registry) Register(code int64, f Factory) error {
	if code < 0 || code > math.MaxUint32 {
		return errors.Wrapf(ErrInvalidArgument, "geometry type code %d is outside the range of an unsigned 32-bit integer", code)
	}
	if f == nil {
		return errors.Wrap(ErrInvalidArgument, "geometry factory may not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.factories[uint32(code)]
	r.factories[uint32(code)] = f
	if replaced {
		r.logger.Debug("geometry factory replaced", slog.Int64("code", code))
	}
	return nil
}

// Lookup returns the factory registered for code.
func (r *Registry) Lookup(code uint32) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[code]
	return f, ok
}

// Codes returns the registered type codes in ascending order.
func (r *Registry) Codes() []uint32 {
	r.mu.RLock()
	codes := make([]uint32, 0, len(r.factories))
	for code := range r.factories {
		codes = append(codes, code)
	}
	r.mu.RUnlock()
	slices.Sort(codes)
	return codes
}

func (r *Registry) codeList() string {
	codes := r.Codes()
	s := make([]string, len(codes))
	for i, code := range codes {
		s[i] = strconv.FormatUint(uint64(code), 10)
	}
	return strings.Join(s, ", ")
}

// Decode reads the WKB preamble at the cursor's position, looks up the type
// code and hands the cursor, rewound to the preamble, to the matching factory.
func (r *Registry) Decode(c *bytecursor.Cursor) (Geometry, error) {
	if c.Remaining() < PreambleSize {
		return nil, errors.Wrapf(ErrInvalidFormat,
			"well-known binary needs at least %d bytes, %d remaining", PreambleSize, c.Remaining())
	}
	c.Mark()
	code, err := readPreamble(c)
	if err != nil {
		return nil, err
	}
	f, ok := r.Lookup(code)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidFormat,
			"unrecognized geometry type code %d; recognized codes: %s", code, r.codeList())
	}
	c.Reset()

	g, err := f(c)
	if err != nil {
		return nil, formatError(err)
	}
	return g, nil
}
