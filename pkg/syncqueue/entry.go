// Package syncqueue implements the append-only write-intent log spec.md §4.5
// and §6 describe: one row per successful per-backend put, read by an
// out-of-band self-healer (not part of this repository) to repair lagging
// replicas.
package syncqueue

import (
	"time"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/muxid"
)

// Entry is one row of the sync queue: a record that backend BackendID
// within MultiplexID was (or should be) written with BlobstoreKey as part
// of the logical put identified by OperationKey.
//
// ID is assigned by the Store on insert; Del requires it to be set.
type Entry struct {
	BlobstoreKey string
	BackendID    backend.ID
	MultiplexID  muxid.MultiplexID
	Timestamp    time.Time
	OperationKey muxid.OperationKey
	ID           *int64
}

// AddTimestampNanos renders Timestamp the way the schema in spec.md §6
// stores it: epoch nanoseconds.
func (e Entry) AddTimestampNanos() int64 {
	return e.Timestamp.UnixNano()
}
