package builder

import (
	"bytes"
	"context"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/geospine/entwine/source"
)

// Finalize drains the pool, flushes and saves the current state, then rewrites every
// persisted key into export, optionally gzip-compressing each one. The export
// directory is left immutable and independent of the (still-writable) build directory
// (original_source's Builder::finalize).
//
// exportBaseDepth is accepted for parity with the config document's output.baseDepth
// but does not currently change the export layout: the flat, per-key Driver
// abstraction this core is built on has no notion of splicing the base tier's chunk
// into a separately-addressed document the way a literal contiguous file would.
func (b *Builder) Finalize(ctx context.Context, export source.Driver, exportBaseDepth uint64, compress bool) error {
	_ = exportBaseDepth

	if err := b.Save(ctx); err != nil {
		return err
	}

	lister, ok := b.driver.(source.Lister)
	if !ok {
		return errors.New("builder: finalize requires a driver that supports listing its keys")
	}
	keys, err := lister.List(ctx, "")
	if err != nil {
		return errors.Wrap(err, "listing build keys")
	}

	for _, key := range keys {
		data, err := b.driver.Get(ctx, key)
		if err != nil {
			return errors.Wrapf(err, "reading %q for export", key)
		}
		if compress {
			data, err = gzipCompress(data)
			if err != nil {
				return errors.Wrapf(err, "compressing %q", key)
			}
		}
		if err := export.Put(ctx, exportKey(key, compress), data); err != nil {
			return errors.Wrapf(err, "writing exported %q", key)
		}
	}

	b.logger.Infow("finalize complete", "keys", len(keys), "compressed", compress)
	return nil
}

func exportKey(key string, compress bool) string {
	if compress {
		return key + ".gz"
	}
	return key
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// gzipDecompress reverses gzipCompress. Its only caller is finalize_test.go, which
// checks a compressed export against the build's original bytes.
func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
