package syncqueue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/muxid"
	"github.com/zerkella/blobmux/pkg/syncqueue"
	"github.com/zerkella/blobmux/pkg/util"
)

func entryFor(key string, backendID backend.ID, opKey muxid.OperationKey, ts time.Time) syncqueue.Entry {
	return syncqueue.Entry{
		BlobstoreKey: key,
		BackendID:    backendID,
		MultiplexID:  1,
		Timestamp:    ts,
		OperationKey: opKey,
	}
}

func TestBatchingQueueAddPersistsEntry(t *testing.T) {
	store := syncqueue.NewMemoryStore()
	q := syncqueue.NewBatchingQueue(store)
	defer q.Close()

	realKey, genErr := muxid.NewOperationKey(testUUIDGenerator(1))
	require.NoError(t, genErr)

	ctx := context.Background()
	require.NoError(t, q.Add(ctx, entryFor("key-a", 1, realKey, time.Now())))

	got, err := q.Get(ctx, "key-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "key-a", got[0].BlobstoreKey)
	assert.NotNil(t, got[0].ID)
}

func TestBatchingQueueAddManyAggregatesErrors(t *testing.T) {
	store := &failingStore{err: errors.New("boom")}
	q := syncqueue.NewBatchingQueue(store)
	defer q.Close()

	key, err := muxid.NewOperationKey(testUUIDGenerator(2))
	require.NoError(t, err)

	entries := []syncqueue.Entry{
		entryFor("a", 1, key, time.Now()),
		entryFor("a", 2, key, time.Now()),
	}
	err = q.AddMany(context.Background(), entries)
	require.Error(t, err)
}

func TestBatchingQueueDelRequiresID(t *testing.T) {
	store := syncqueue.NewMemoryStore()
	q := syncqueue.NewBatchingQueue(store)
	defer q.Close()

	key, err := muxid.NewOperationKey(testUUIDGenerator(3))
	require.NoError(t, err)

	err = q.Del(context.Background(), []syncqueue.Entry{entryFor("a", 1, key, time.Now())})
	assert.ErrorIs(t, err, syncqueue.ErrMissingID)
}

func TestBatchingQueueDelChunksLargeBatches(t *testing.T) {
	store := syncqueue.NewMemoryStore()
	q := syncqueue.NewBatchingQueue(store, syncqueue.WithDeleteChunkSize(2))
	defer q.Close()

	ctx := context.Background()
	var entries []syncqueue.Entry
	for i := 0; i < 5; i++ {
		key, err := muxid.NewOperationKey(testUUIDGenerator(int64(10 + i)))
		require.NoError(t, err)
		entries = append(entries, entryFor("chunked", backend.ID(i), key, time.Now()))
	}
	require.NoError(t, q.AddMany(ctx, entries))

	stored, err := q.Get(ctx, "chunked")
	require.NoError(t, err)
	require.Len(t, stored, 5)

	require.NoError(t, q.Del(ctx, stored))

	remaining, err := q.Get(ctx, "chunked")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

// testUUIDGenerator returns a deterministic generator producing distinct
// UUIDs per seed, so tests can build OperationKeys without depending on
// randomness.
func testUUIDGenerator(seed int64) util.UUIDGenerator {
	return func() (uuid.UUID, error) {
		var id uuid.UUID
		for i := 0; i < 8; i++ {
			id[15-i] = byte(seed >> (8 * i))
		}
		return id, nil
	}
}

// TestBatchingQueueAddManyLogsAbandonedReply exercises the path where a
// caller's ctx is cancelled while flush still holds its reply channel: the
// insert eventually fails, and with no one left waiting on AddMany, the
// failure must reach the configured ErrorLogger instead of vanishing.
func TestBatchingQueueAddManyLogsAbandonedReply(t *testing.T) {
	store := &blockingStore{started: make(chan struct{}), release: make(chan struct{}), err: errors.New("boom")}
	logger := &capturingLogger{logged: make(chan error, 1)}
	q := syncqueue.NewBatchingQueue(store, syncqueue.WithErrorLogger(logger))
	defer q.Close()

	key, err := muxid.NewOperationKey(testUUIDGenerator(4))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.AddMany(ctx, []syncqueue.Entry{entryFor("abandoned", 1, key, time.Now())})
	}()

	select {
	case <-store.started:
	case <-time.After(time.Second):
		t.Fatal("InsertBatch was never called")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("AddMany did not return after ctx cancellation")
	}

	close(store.release)

	select {
	case logged := <-logger.logged:
		assert.ErrorContains(t, logged, "boom")
	case <-time.After(time.Second):
		t.Fatal("abandoned insert failure was never logged")
	}
}

// blockingStore's InsertBatch signals on started the moment it's entered
// and then waits on release before returning err, letting a test control
// exactly when the batch completes.
type blockingStore struct {
	started chan struct{}
	release chan struct{}
	err     error
}

func (s *blockingStore) InsertBatch(ctx context.Context, entries []syncqueue.Entry) ([]syncqueue.Entry, error) {
	close(s.started)
	<-s.release
	return nil, s.err
}

func (s *blockingStore) Iter(ctx context.Context, q syncqueue.IterQuery) ([]syncqueue.Entry, error) {
	return nil, s.err
}

func (s *blockingStore) Delete(ctx context.Context, ids []int64) error {
	return s.err
}

func (s *blockingStore) GetByKey(ctx context.Context, key string) ([]syncqueue.Entry, error) {
	return nil, s.err
}

var _ syncqueue.Store = (*blockingStore)(nil)

// capturingLogger is a util.ErrorLogger that hands logged errors to a test
// over a channel instead of writing them to the standard logger.
type capturingLogger struct {
	logged chan error
}

func (l *capturingLogger) Log(err error) {
	l.logged <- err
}

var _ util.ErrorLogger = (*capturingLogger)(nil)

type failingStore struct {
	err error
}

func (s *failingStore) InsertBatch(ctx context.Context, entries []syncqueue.Entry) ([]syncqueue.Entry, error) {
	return nil, s.err
}

func (s *failingStore) Iter(ctx context.Context, q syncqueue.IterQuery) ([]syncqueue.Entry, error) {
	return nil, s.err
}

func (s *failingStore) Delete(ctx context.Context, ids []int64) error {
	return s.err
}

func (s *failingStore) GetByKey(ctx context.Context, key string) ([]syncqueue.Entry, error) {
	return nil, s.err
}

var _ syncqueue.Store = (*failingStore)(nil)
