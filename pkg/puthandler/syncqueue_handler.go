package puthandler

import (
	"context"
	"fmt"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/clock"
	"github.com/zerkella/blobmux/pkg/muxid"
	"github.com/zerkella/blobmux/pkg/syncqueue"
)

// SyncQueueHandler is the default Handler: it appends one syncqueue.Entry
// per successful per-backend put, stamped with the multiplexer's clock.
type SyncQueueHandler struct {
	Queue syncqueue.Queue
	Clock clock.Clock
}

// NewSyncQueueHandler builds a SyncQueueHandler writing into queue,
// stamping entries using c.
func NewSyncQueueHandler(queue syncqueue.Queue, c clock.Clock) *SyncQueueHandler {
	return &SyncQueueHandler{Queue: queue, Clock: c}
}

// OnPut implements Handler.
func (h *SyncQueueHandler) OnPut(ctx context.Context, backendID backend.ID, multiplexID muxid.MultiplexID, operationKey muxid.OperationKey, key string) error {
	if operationKey.IsNil() {
		// A nil operation key would silently orphan this row from its
		// siblings, defeating the closed-set Iter contract; the
		// multiplexer must always mint a fresh key before calling Put.
		return fmt.Errorf("puthandler: refusing to record entry for key %q with nil operation key", key)
	}
	entry := syncqueue.Entry{
		BlobstoreKey: key,
		BackendID:    backendID,
		MultiplexID:  multiplexID,
		Timestamp:    h.Clock.Now(),
		OperationKey: operationKey,
	}
	return h.Queue.Add(ctx, entry)
}

var _ Handler = (*SyncQueueHandler)(nil)
