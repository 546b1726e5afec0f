package gpkg

import (
	"context"
	"runtime"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tingold/orb-gpkg/bytecursor"
)

// Codec converts between Geometry values and GeoPackage geometry BLOBs.
// A Codec is safe for concurrent use.
type Codec struct {
	opts Options
}

// NewCodec returns a codec using opts. A nil opts uses DefaultOptions.
func NewCodec(opts *Options) *Codec {
	return &Codec{opts: opts.withDefaults()}
}

var defaultCodec = NewCodec(nil)

// Registry returns the registry the codec decodes with.
func (c *Codec) Registry() *Registry {
	if c.opts.Registry != nil {
		return c.opts.Registry
	}
	return DefaultRegistry()
}

// Decode parses a GeoPackage geometry BLOB into its header and geometry.
// Extended payloads are decoded through the registry like standard ones.
func (c *Codec) Decode(blob []byte) (*BinaryHeader, Geometry, error) {
	cur := bytecursor.Wrap(blob)
	h, err := ReadBinaryHeader(cur)
	if err != nil {
		return nil, nil, err
	}
	g, err := c.Registry().Decode(cur)
	if err != nil {
		return nil, nil, err
	}
	return h, g, nil
}

// Encode writes g as a GeoPackage geometry BLOB with the given SRS id. The
// header is derived from g; the WKB payload follows in Options.WKBByteOrder.
func (c *Codec) Encode(g Geometry, srsID int32) ([]byte, error) {
	if err := checkByteOrder(c.opts.WKBByteOrder); err != nil {
		return nil, err
	}
	h, err := headerFor(g, srsID, c.opts.HeaderByteOrder, c.opts.OmitEnvelope)
	if err != nil {
		return nil, err
	}
	cur := bytecursor.New(0)
	h.WriteBytes(cur)
	cur.SetByteOrder(c.opts.WKBByteOrder)
	if err := g.WriteWKB(cur); err != nil {
		return nil, err
	}
	return cur.Bytes(), nil
}

// DecodeAll decodes blobs concurrently. The result is in input order. The
// first failure cancels the remaining work and is returned.
func (c *Codec) DecodeAll(ctx context.Context, blobs [][]byte) ([]Geometry, error) {
	out := make([]Geometry, len(blobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, blob := range blobs {
		i, blob := i, blob
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, geom, err := c.Decode(blob)
			if err != nil {
				return errors.Wrapf(err, "blob %d", i)
			}
			out[i] = geom
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeAll encodes geoms concurrently with a shared SRS id. The result is in
// input order.
func (c *Codec) EncodeAll(ctx context.Context, geoms []Geometry, srsID int32) ([][]byte, error) {
	out := make([][]byte, len(geoms))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, geom := range geoms {
		i, geom := i, geom
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			blob, err := c.Encode(geom, srsID)
			if err != nil {
				return errors.Wrapf(err, "geometry %d", i)
			}
			out[i] = blob
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode parses blob with the default codec.
func Decode(blob []byte) (*BinaryHeader, Geometry, error) {
	return defaultCodec.Decode(blob)
}

// Encode writes g with the default codec: big-endian header and WKB with an
// envelope.
func Encode(g Geometry, srsID int32) ([]byte, error) {
	return defaultCodec.Encode(g, srsID)
}
