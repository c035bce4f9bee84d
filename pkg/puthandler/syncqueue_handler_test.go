package puthandler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/clock"
	"github.com/zerkella/blobmux/pkg/muxid"
	"github.com/zerkella/blobmux/pkg/puthandler"
	"github.com/zerkella/blobmux/pkg/syncqueue"
)

func TestSyncQueueHandlerRecordsEntry(t *testing.T) {
	store := syncqueue.NewMemoryStore()
	queue := syncqueue.NewBatchingQueue(store)
	defer queue.Close()

	fc := clock.NewFakeClock(time.Unix(1000, 0))
	h := puthandler.NewSyncQueueHandler(queue, fc)

	opKey, err := muxid.NewOperationKey(func() (id uuid.UUID, _ error) { id[0] = 0x42; return id, nil })
	require.NoError(t, err)

	require.NoError(t, h.OnPut(context.Background(), backend.ID(1), muxid.MultiplexID(7), opKey, "blob-key"))

	got, err := queue.Get(context.Background(), "blob-key")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, backend.ID(1), got[0].BackendID)
	assert.Equal(t, muxid.MultiplexID(7), got[0].MultiplexID)
	assert.Equal(t, fc.Now(), got[0].Timestamp)
}

func TestSyncQueueHandlerRejectsNilOperationKey(t *testing.T) {
	store := syncqueue.NewMemoryStore()
	queue := syncqueue.NewBatchingQueue(store)
	defer queue.Close()

	h := puthandler.NewSyncQueueHandler(queue, clock.SystemClock)
	err := h.OnPut(context.Background(), backend.ID(1), muxid.MultiplexID(1), muxid.NilOperationKey, "k")
	assert.Error(t, err)
}
