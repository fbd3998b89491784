package source

import (
	"path/filepath"

	"github.com/edaniels/lidario"
	"github.com/pkg/errors"

	"github.com/geospine/entwine/point"
)

// lasReader implements PointReader over an LAS point cloud file, grounded in the
// teacher's own lidario-backed LAS decode loop.
type lasReader struct {
	file *lidario.LasFile
	next int
}

func openLAS(path string) (PointReader, error) {
	if ext := filepath.Ext(path); ext != ".las" {
		return nil, errors.Errorf("source: do not know how to read file %q", path)
	}
	lf, err := lidario.NewLasFile(path, "r")
	if err != nil {
		return nil, errors.Wrapf(err, "opening LAS file %q", path)
	}
	return &lasReader{file: lf}, nil
}

// Next implements PointReader.
func (r *lasReader) Next() (point.Values, bool, error) {
	if r.next >= r.file.Header.NumberPoints {
		return nil, true, nil
	}
	p, err := r.file.LasPoint(r.next)
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading LAS point %d", r.next)
	}
	r.next++

	data := p.PointData()
	vals := point.Values{
		point.DimX: data.X,
		point.DimY: data.Y,
		point.DimZ: data.Z,
	}
	return vals, false, nil
}

// Close implements PointReader.
func (r *lasReader) Close() error {
	return r.file.Close()
}
