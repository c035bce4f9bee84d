package syncqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/muxid"
	"github.com/zerkella/blobmux/pkg/syncqueue"
)

// TestMemoryStoreIterReturnsClosedSet exercises invariant 6 / scenario S6:
// Iter must never return a strict subset of an operation's sibling rows. A
// limit of 1 operation key still returns both of that operation's rows,
// even though a third row (different key) exists and is excluded entirely.
func TestMemoryStoreIterReturnsClosedSet(t *testing.T) {
	store := syncqueue.NewMemoryStore()
	ctx := context.Background()

	opA := muxid.OperationKey(uuid.UUID{0: 0xAA})
	opB := muxid.OperationKey(uuid.UUID{0: 0xBB})

	now := time.Now()
	entries := []syncqueue.Entry{
		{BlobstoreKey: "k1", BackendID: 1, MultiplexID: 1, Timestamp: now.Add(-3 * time.Hour), OperationKey: opA},
		{BlobstoreKey: "k1", BackendID: 2, MultiplexID: 1, Timestamp: now.Add(-3 * time.Hour), OperationKey: opA},
		{BlobstoreKey: "k2", BackendID: 1, MultiplexID: 1, Timestamp: now.Add(-2 * time.Hour), OperationKey: opB},
	}
	_, err := store.InsertBatch(ctx, entries)
	require.NoError(t, err)

	got, err := store.Iter(ctx, syncqueue.IterQuery{
		MultiplexID: 1,
		OlderThan:   now,
		Limit:       1,
	})
	require.NoError(t, err)

	require.Len(t, got, 2, "closed set must include both siblings of the one selected operation key, never a subset")
	for _, e := range got {
		assert.Equal(t, opA, e.OperationKey)
	}
}

func TestMemoryStoreIterRespectsMultiplexAndAge(t *testing.T) {
	store := syncqueue.NewMemoryStore()
	ctx := context.Background()

	opA := muxid.OperationKey(uuid.UUID{0: 0x01})
	opOtherMultiplex := muxid.OperationKey(uuid.UUID{0: 0x02})
	opFresh := muxid.OperationKey(uuid.UUID{0: 0x07})

	now := time.Now()
	_, err := store.InsertBatch(ctx, []syncqueue.Entry{
		{BlobstoreKey: "old", BackendID: 1, MultiplexID: 1, Timestamp: now.Add(-time.Hour), OperationKey: opA},
		{BlobstoreKey: "fresh", BackendID: 1, MultiplexID: 1, Timestamp: now.Add(time.Hour), OperationKey: opFresh},
		{BlobstoreKey: "other-multiplex", BackendID: 1, MultiplexID: 2, Timestamp: now.Add(-time.Hour), OperationKey: opOtherMultiplex},
	})
	require.NoError(t, err)

	got, err := store.Iter(ctx, syncqueue.IterQuery{MultiplexID: 1, OlderThan: now, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].BlobstoreKey)
}

// TestMemoryStoreIterOlderThanIsInclusive matches the original
// GetRangeOfEntries/GetRangeOfEntriesLike SQL (lib.rs:202,222), which
// selects rows with add_timestamp <= older_than, not strictly less than.
func TestMemoryStoreIterOlderThanIsInclusive(t *testing.T) {
	store := syncqueue.NewMemoryStore()
	ctx := context.Background()

	op := muxid.OperationKey(uuid.UUID{0: 0x06})
	now := time.Now()
	_, err := store.InsertBatch(ctx, []syncqueue.Entry{
		{BlobstoreKey: "boundary", BackendID: 1, MultiplexID: 1, Timestamp: now, OperationKey: op},
	})
	require.NoError(t, err)

	got, err := store.Iter(ctx, syncqueue.IterQuery{MultiplexID: 1, OlderThan: now, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1, "an entry timestamped exactly at OlderThan must be included")
	assert.Equal(t, "boundary", got[0].BlobstoreKey)
}

func TestMemoryStoreIterKeyLike(t *testing.T) {
	store := syncqueue.NewMemoryStore()
	ctx := context.Background()

	opMatch := muxid.OperationKey(uuid.UUID{0: 0x03})
	opOther := muxid.OperationKey(uuid.UUID{0: 0x04})

	now := time.Now()
	_, err := store.InsertBatch(ctx, []syncqueue.Entry{
		{BlobstoreKey: "repo/objects/abc", BackendID: 1, MultiplexID: 1, Timestamp: now.Add(-time.Hour), OperationKey: opMatch},
		{BlobstoreKey: "other/path", BackendID: 1, MultiplexID: 1, Timestamp: now.Add(-time.Hour), OperationKey: opOther},
	})
	require.NoError(t, err)

	like := "repo/%"
	got, err := store.Iter(ctx, syncqueue.IterQuery{MultiplexID: 1, OlderThan: now, Limit: 10, KeyLike: &like})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "repo/objects/abc", got[0].BlobstoreKey)
}

func TestMemoryStoreGetByKeyAcrossBackends(t *testing.T) {
	store := syncqueue.NewMemoryStore()
	ctx := context.Background()
	op := muxid.OperationKey(uuid.UUID{0: 0x05})

	_, err := store.InsertBatch(ctx, []syncqueue.Entry{
		{BlobstoreKey: "shared", BackendID: backend.ID(1), MultiplexID: 1, Timestamp: time.Now(), OperationKey: op},
		{BlobstoreKey: "shared", BackendID: backend.ID(2), MultiplexID: 1, Timestamp: time.Now(), OperationKey: op},
	})
	require.NoError(t, err)

	got, err := store.GetByKey(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := syncqueue.NewMemoryStore()
	ctx := context.Background()
	op := muxid.OperationKey(uuid.UUID{0: 0x06})

	inserted, err := store.InsertBatch(ctx, []syncqueue.Entry{
		{BlobstoreKey: "to-delete", BackendID: 1, MultiplexID: 1, Timestamp: time.Now(), OperationKey: op},
	})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, []int64{*inserted[0].ID}))

	got, err := store.GetByKey(ctx, "to-delete")
	require.NoError(t, err)
	assert.Empty(t, got)
}
