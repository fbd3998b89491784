package source

import (
	"github.com/geospine/entwine/point"
)

// PointReader streams points out of one input file in a source-format-specific way,
// keeping the core's insertion path oblivious to LAS, PCD, or any future format
// (spec.md's "reader collaborator" boundary).
type PointReader interface {
	// Next reads the next point's values, or reports done=true once the file is
	// exhausted.
	Next() (vals point.Values, done bool, err error)
	// Close releases the underlying file handle.
	Close() error
}

// OpenReader dispatches to a format-specific PointReader based on path's extension.
func OpenReader(path string) (PointReader, error) {
	return openLAS(path)
}
