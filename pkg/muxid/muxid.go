// Package muxid holds the two identifier types shared by the multiplexer,
// the sync queue and the put handler: MultiplexID, which scopes sync-queue
// rows to a logical multiplex, and OperationKey, the fresh UUID that
// correlates every per-backend sync-queue row produced by one logical put.
// It has no dependency on pkg/mux, pkg/syncqueue or pkg/puthandler, which
// all import it, so it exists to break what would otherwise be an import
// cycle between them.
package muxid

import (
	"github.com/google/uuid"

	"github.com/zerkella/blobmux/pkg/util"
)

// MultiplexID is an opaque integer identifying the logical multiplex a
// sync-queue row belongs to. Distinct multiplexes share one queue table.
type MultiplexID int32

// OperationKey is a 128-bit UUID tagging every per-backend sync-queue row
// produced by a single logical put, letting the self-healer group sibling
// replicas of one write.
type OperationKey uuid.UUID

// NilOperationKey is the zero value, mirroring the original implementation's
// OperationKey::is_null check: it is never a valid key for a put that
// actually happened, and is used as an internal assertion inside the
// default put handler.
var NilOperationKey OperationKey

// IsNil reports whether k is the zero UUID.
func (k OperationKey) IsNil() bool {
	return k == NilOperationKey
}

// String renders the key in canonical UUID form.
func (k OperationKey) String() string {
	return uuid.UUID(k).String()
}

// Bytes returns the key's 16 raw bytes, matching the blob(16) column in the
// sync queue schema.
func (k OperationKey) Bytes() []byte {
	u := uuid.UUID(k)
	return u[:]
}

// NewOperationKey generates a fresh OperationKey using gen, which defaults
// to uuid.NewRandom outside of tests.
func NewOperationKey(gen util.UUIDGenerator) (OperationKey, error) {
	id, err := gen()
	if err != nil {
		return NilOperationKey, err
	}
	return OperationKey(id), nil
}
