package source

import (
	"context"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/pkg/errors"
)

// AzureDriver is a Driver backed by an Azure Blob Storage container, grounded in the
// azblob.Client connection-string constructor weaviate's backup test helper uses.
type AzureDriver struct {
	client    *azblob.Client
	container string
}

// NewAzureDriver returns a Driver against container, authenticating with
// connectionString exactly as given (the CLI passes the credentials file's Hidden
// field).
func NewAzureDriver(connectionString, container string) (*AzureDriver, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating azure blob client")
	}
	return &AzureDriver{client: client, container: container}, nil
}

// Get implements Driver.
func (d *AzureDriver) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := d.client.DownloadStream(ctx, d.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "downloading blob %q", key)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading blob %q", key)
	}
	return data, nil
}

// Put implements Driver.
func (d *AzureDriver) Put(ctx context.Context, key string, data []byte) error {
	_, err := d.client.UploadBuffer(ctx, d.container, key, data, nil)
	if err != nil {
		return errors.Wrapf(err, "uploading blob %q", key)
	}
	return nil
}

// Exists implements Driver.
func (d *AzureDriver) Exists(ctx context.Context, key string) (bool, error) {
	pager := d.client.NewListBlobsFlatPager(d.container, &azblob.ListBlobsFlatOptions{
		Prefix: &key,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return false, errors.Wrapf(err, "listing blobs for %q", key)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil && *item.Name == key {
				return true, nil
			}
		}
	}
	return false, nil
}

// List implements Lister.
func (d *AzureDriver) List(ctx context.Context, prefix string) ([]string, error) {
	pager := d.client.NewListBlobsFlatPager(d.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	var keys []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "listing blobs under %q", prefix)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return keys, nil
}
