package syncqueue

import (
	"context"
	"errors"

	"github.com/zerkella/blobmux/pkg/util"
)

// DefaultWriteBufferSize is the maximum number of entries batched into a
// single InsertBatch call, per spec.md §4.5 and the original queue's
// WRITE_BUFFER_SIZE.
const DefaultWriteBufferSize = 5000

// DefaultDeleteChunkSize is the maximum number of ids deleted in a single
// Store.Delete call, per spec.md §4.5/§6 and the original's
// chunks(10_000).
const DefaultDeleteChunkSize = 10000

type writeRequest struct {
	entry Entry
	reply chan error
}

// BatchingQueue is the single owner-task batching worker spec.md §5/§9
// describes: one goroutine reads a multi-producer channel in chunks up to
// WriteBufferSize and performs one Store.InsertBatch call per chunk,
// replying to each producer through a dedicated one-shot channel. Producers
// never touch the Store directly, grounded on the original implementation's
// mpsc-plus-oneshot batching worker.
type BatchingQueue struct {
	store           Store
	errorLogger     util.ErrorLogger
	writeBufferSize int
	deleteChunkSize int

	writes chan writeRequest
	done   chan struct{}
}

// Option configures a BatchingQueue.
type Option func(*BatchingQueue)

// WithWriteBufferSize overrides DefaultWriteBufferSize.
func WithWriteBufferSize(n int) Option {
	return func(q *BatchingQueue) { q.writeBufferSize = n }
}

// WithDeleteChunkSize overrides DefaultDeleteChunkSize.
func WithDeleteChunkSize(n int) Option {
	return func(q *BatchingQueue) { q.deleteChunkSize = n }
}

// WithErrorLogger overrides util.DefaultErrorLogger for reporting failures
// that have no waiting caller: a ctx cancellation in AddMany can leave
// flush holding replies whose producer already gave up, and those insert
// results are reported here instead of being dropped.
func WithErrorLogger(l util.ErrorLogger) Option {
	return func(q *BatchingQueue) { q.errorLogger = l }
}

// NewBatchingQueue creates a Queue backed by store, and starts its batching
// worker goroutine. Call Close to stop the worker once the queue is no
// longer needed.
func NewBatchingQueue(store Store, opts ...Option) *BatchingQueue {
	q := &BatchingQueue{
		store:           store,
		errorLogger:     util.DefaultErrorLogger,
		writeBufferSize: DefaultWriteBufferSize,
		deleteChunkSize: DefaultDeleteChunkSize,
		writes:          make(chan writeRequest),
		done:            make(chan struct{}),
	}
	go q.run()
	return q
}

// Close stops the batching worker. Outstanding writes already accepted
// into the channel are still flushed before the worker exits.
func (q *BatchingQueue) Close() {
	close(q.done)
}

func (q *BatchingQueue) run() {
	for {
		select {
		case <-q.done:
			return
		case first := <-q.writes:
			batch := q.collectBatch(first)
			q.flush(batch)
		}
	}
}

// collectBatch gathers first plus whatever else is already waiting on the
// channel, up to writeBufferSize, without blocking for more to arrive.
func (q *BatchingQueue) collectBatch(first writeRequest) []writeRequest {
	batch := make([]writeRequest, 1, q.writeBufferSize)
	batch[0] = first
	for len(batch) < q.writeBufferSize {
		select {
		case next := <-q.writes:
			batch = append(batch, next)
		default:
			return batch
		}
	}
	return batch
}

func (q *BatchingQueue) flush(batch []writeRequest) {
	entries := make([]Entry, len(batch))
	for i, r := range batch {
		entries[i] = r.entry
	}
	// The batch insert is atomic per spec.md §4.5: either every entry in
	// the batch is persisted, or the whole batch fails and every waiting
	// producer sees the same aggregated error.
	_, err := q.store.InsertBatch(context.Background(), entries)
	for _, r := range batch {
		r.reply <- err
	}
}

// Add implements Queue.
func (q *BatchingQueue) Add(ctx context.Context, entry Entry) error {
	return q.AddMany(ctx, []Entry{entry})
}

// AddMany implements Queue.
func (q *BatchingQueue) AddMany(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	replies := make([]chan error, len(entries))
	for i, e := range entries {
		reply := make(chan error, 1)
		replies[i] = reply
		req := writeRequest{entry: e, reply: reply}
		select {
		case q.writes <- req:
		case <-ctx.Done():
			// replies[:i] already reached the worker and will eventually
			// be sent into; replies[i] itself was never enqueued, so it
			// has no corresponding flush and is excluded.
			q.drainAbandonedReplies(replies[:i])
			return ctx.Err()
		case <-q.done:
			q.drainAbandonedReplies(replies[:i])
			return errors.New("syncqueue: batching worker closed")
		}
	}

	var errs []error
	for i, reply := range replies {
		select {
		case err := <-reply:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			// The caller is giving up, but flush (running on the worker
			// goroutine) still owns these requests and will eventually send
			// into every reply channel from i onward. Drain them in the
			// background and log whatever errors they surface, since
			// there's no longer a waiting caller to return them to.
			q.drainAbandonedReplies(replies[i:])
			return ctx.Err()
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return util.StatusFromMultiple(errs)
}

// drainAbandonedReplies waits out a set of reply channels whose caller
// already returned (ctx cancellation), logging any insert failure that
// would otherwise vanish silently.
func (q *BatchingQueue) drainAbandonedReplies(replies []chan error) {
	go func() {
		for _, reply := range replies {
			if err := <-reply; err != nil {
				q.errorLogger.Log(util.StatusWrap(err, "syncqueue: insert failed for a request abandoned by its caller"))
			}
		}
	}()
}

// Iter implements Queue.
func (q *BatchingQueue) Iter(ctx context.Context, query IterQuery) ([]Entry, error) {
	return q.store.Iter(ctx, query)
}

// Del implements Queue.
func (q *BatchingQueue) Del(ctx context.Context, entries []Entry) error {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if e.ID == nil {
			return ErrMissingID
		}
		ids = append(ids, *e.ID)
	}
	for start := 0; start < len(ids); start += q.deleteChunkSize {
		end := start + q.deleteChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := q.store.Delete(ctx, ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// Get implements Queue.
func (q *BatchingQueue) Get(ctx context.Context, key string) ([]Entry, error) {
	return q.store.GetByKey(ctx, key)
}

var _ Queue = (*BatchingQueue)(nil)
