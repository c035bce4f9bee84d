// Package backend declares the capability every underlying blob store must
// satisfy to be multiplexed, and ships a BLAKE3-hashing in-memory
// implementation used by the multiplexer's own tests and by cmd/blobmuxd's
// local demo mode. Production backends (S3, GCS, disk, ...) are external
// collaborators; see pkg/backend/s3backend and pkg/backend/gcsbackend for
// thin adapters over real object stores.
package backend

import (
	"context"
	"fmt"

	"github.com/zerkella/blobmux/pkg/blob"
)

// ID is a small opaque integer identifying a backend within a multiplex.
// Backend IDs must be unique within a single Configuration.
type ID int32

func (id ID) String() string {
	return fmt.Sprintf("backend-%d", int32(id))
}

// Backend is the external capability a blob store must expose: get, put
// and presence-check on string keys. Implementations are expected to be
// safe for concurrent use, since the multiplexer calls all configured
// backends in parallel.
type Backend interface {
	// Get returns the value stored under key, or (GetData{}, false, nil)
	// if the backend holds no such key.
	Get(ctx context.Context, key string) (blob.GetData, bool, error)

	// Put stores value under key.
	Put(ctx context.Context, key string, value blob.Blob) error

	// IsPresent reports whether the backend holds a value for key,
	// without transferring its bytes.
	IsPresent(ctx context.Context, key string) (bool, error)
}
