package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/geospine/entwine/source"
)

// openDriver picks a source.Driver implementation from path's scheme, matching the
// original kernel's arbiter map (fs/gs/az prefixes all route through the same Driver
// boundary the core is written against).
func openDriver(ctx context.Context, path string, creds source.Credentials) (source.Driver, error) {
	switch {
	case strings.HasPrefix(path, "gs://"):
		rest := strings.TrimPrefix(path, "gs://")
		bucket, prefix, _ := strings.Cut(rest, "/")
		driver, err := source.NewGCSDriver(ctx, bucket, prefix, creds)
		if err != nil {
			return nil, errors.Wrap(err, "opening gcs driver")
		}
		return driver, nil
	case strings.HasPrefix(path, "az://"):
		rest := strings.TrimPrefix(path, "az://")
		container, _, _ := strings.Cut(rest, "/")
		driver, err := source.NewAzureDriver(creds.Hidden, container)
		if err != nil {
			return nil, errors.Wrap(err, "opening azure driver")
		}
		return driver, nil
	default:
		driver, err := source.NewLocalDriver(path)
		if err != nil {
			return nil, errors.Wrap(err, "opening local driver")
		}
		return driver, nil
	}
}
