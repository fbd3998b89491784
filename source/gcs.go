package source

import (
	"context"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSDriver is a Driver backed by a Google Cloud Storage bucket, grounded in the same
// client shape weaviate's storage-gcs module uses (bucket handle + object reader/writer).
type GCSDriver struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSDriver returns a Driver against bucket, prefixing every key with prefix (which
// may be empty). creds carries an optional service-account JSON document; when empty,
// the client falls back to ambient application-default credentials.
func NewGCSDriver(ctx context.Context, bucket, prefix string, creds Credentials) (*GCSDriver, error) {
	var opts []option.ClientOption
	if creds.Hidden != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds.Hidden)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating GCS client")
	}
	return &GCSDriver{client: client, bucket: bucket, prefix: prefix}, nil
}

func (d *GCSDriver) object(key string) string {
	if d.prefix == "" {
		return key
	}
	return d.prefix + "/" + key
}

// Get implements Driver.
func (d *GCSDriver) Get(ctx context.Context, key string) ([]byte, error) {
	obj := d.client.Bucket(d.bucket).Object(d.object(key))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "opening gcs object %q", key)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrapf(err, "reading gcs object %q", key)
	}
	return data, nil
}

// Put implements Driver.
func (d *GCSDriver) Put(ctx context.Context, key string, data []byte) error {
	obj := d.client.Bucket(d.bucket).Object(d.object(key))
	writer := obj.NewWriter(ctx)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return errors.Wrapf(err, "writing gcs object %q", key)
	}
	if err := writer.Close(); err != nil {
		return errors.Wrapf(err, "finalizing gcs object %q", key)
	}
	return nil
}

// Exists implements Driver.
func (d *GCSDriver) Exists(ctx context.Context, key string) (bool, error) {
	_, err := d.client.Bucket(d.bucket).Object(d.object(key)).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "checking gcs object %q", key)
}

// List implements Lister, enumerating every key under prefix with the driver's own
// prefix trimmed off; builder.Finalize uses it to walk a build for export.
func (d *GCSDriver) List(ctx context.Context, prefix string) ([]string, error) {
	it := d.client.Bucket(d.bucket).Objects(ctx, &storage.Query{Prefix: d.object(prefix)})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "listing gcs objects")
		}
		name := attrs.Name
		if d.prefix != "" {
			name = strings.TrimPrefix(name, d.prefix+"/")
		}
		keys = append(keys, name)
	}
	return keys, nil
}
