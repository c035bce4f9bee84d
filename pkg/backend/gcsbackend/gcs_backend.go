// Package gcsbackend adapts a GCS bucket to the backend.Backend interface.
package gcsbackend

import (
	"context"
	"errors"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/blob"
	"github.com/zerkella/blobmux/pkg/util"
)

// Backend stores blobs as objects in a single GCS bucket, keyed by
// keyPrefix+key.
type Backend struct {
	client    *storage.Client
	bucket    string
	keyPrefix string
}

// New creates a Backend over bucketName, authenticating with authFile's
// service account JSON, or with the ambient default credentials if
// authFile is empty.
func New(ctx context.Context, bucketName, keyPrefix, authFile string) (*Backend, error) {
	var creds *google.Credentials
	if authFile == "" {
		c, err := google.FindDefaultCredentials(ctx, storage.ScopeReadWrite)
		if err != nil {
			return nil, util.StatusWrap(err, "gcs: find default credentials")
		}
		creds = c
	} else {
		data, err := os.ReadFile(authFile)
		if err != nil {
			return nil, util.StatusWrap(err, "gcs: read auth file")
		}
		c, err := google.CredentialsFromJSON(ctx, data, storage.ScopeReadWrite)
		if err != nil {
			return nil, util.StatusWrap(err, "gcs: parse auth file")
		}
		creds = c
	}
	client, err := storage.NewClient(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, util.StatusWrap(err, "gcs: new client")
	}
	return &Backend{client: client, bucket: bucketName, keyPrefix: keyPrefix}, nil
}

func (b *Backend) object(key string) *storage.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(b.keyPrefix + key)
}

// Get implements backend.Backend.
func (b *Backend) Get(ctx context.Context, key string) (blob.GetData, bool, error) {
	o := b.object(key)
	attrs, err := o.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return blob.GetData{}, false, nil
	}
	if err != nil {
		return blob.GetData{}, false, util.StatusWrap(err, "gcs get: attrs")
	}
	r, err := o.NewReader(ctx)
	if err != nil {
		return blob.GetData{}, false, util.StatusWrap(err, "gcs get: new reader")
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return blob.GetData{}, false, util.StatusWrap(err, "gcs get: read body")
	}
	return blob.NewGetDataWithCTime(data, attrs.Created), true, nil
}

// Put implements backend.Backend.
func (b *Backend) Put(ctx context.Context, key string, value blob.Blob) error {
	w := b.object(key).NewWriter(ctx)
	if _, err := w.Write(value); err != nil {
		w.Close()
		return util.StatusWrap(err, "gcs put: write")
	}
	if err := w.Close(); err != nil {
		return util.StatusWrap(err, "gcs put: close")
	}
	return nil
}

// IsPresent implements backend.Backend.
func (b *Backend) IsPresent(ctx context.Context, key string) (bool, error) {
	_, err := b.object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, util.StatusWrap(err, "gcs is_present: attrs")
	}
	return true, nil
}

var _ backend.Backend = (*Backend)(nil)
