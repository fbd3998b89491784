package source

import (
	"context"
	"os"
	"path/filepath"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// LocalDriver is a Driver backed by a directory on the local filesystem; keys are
// relative paths joined onto root.
type LocalDriver struct {
	root string
}

// NewLocalDriver returns a Driver rooted at dir, creating it if it does not exist.
func NewLocalDriver(dir string) (*LocalDriver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating local driver root %q", dir)
	}
	return &LocalDriver{root: dir}, nil
}

func (d *LocalDriver) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

// Get implements Driver. Flat and tail chunk files are read through a memory
// mapping rather than a buffered ReadFile, since the flat tier in particular is one
// file per tree node and this driver is the only one where that file is ever local
// enough to map.
func (d *LocalDriver) Get(_ context.Context, key string) ([]byte, error) {
	f, err := os.Open(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "opening %q", key)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %q", key)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %q", key)
	}
	defer m.Unmap()

	data := make([]byte, len(m))
	copy(data, m)
	return data, nil
}

// Put implements Driver.
func (d *LocalDriver) Put(_ context.Context, key string, data []byte) error {
	path := d.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent directory for %q", key)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %q", key)
	}
	// Rename is atomic on the same filesystem, so a reader never observes a
	// partially-written file (spec.md §7's "atomic metadata rewrite").
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "finalizing %q", key)
	}
	return nil
}

// Exists implements Driver.
func (d *LocalDriver) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(d.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "stat %q", key)
}

// List implements Lister, walking the local directory tree under prefix and returning
// slash-separated keys relative to the driver's root.
func (d *LocalDriver) List(_ context.Context, prefix string) ([]string, error) {
	root := d.path(prefix)
	var keys []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(p) == ".tmp" {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %q", prefix)
	}
	return keys, nil
}
