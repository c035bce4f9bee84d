package syncqueue

import "context"

// Store is the pluggable persistence seam spec.md §2 names: "the
// persistence mechanism of the sync queue... the transport is pluggable."
// BatchingQueue drives one of these; it never talks to storage directly
// except through this interface.
//
// InsertBatch must be atomic: either every entry in the batch is persisted
// and assigned an ID, or none are (spec.md §4.5's "partial-row success is
// not a valid terminal state"). On success it returns entries in the same
// order as given, each with ID populated.
type Store interface {
	InsertBatch(ctx context.Context, entries []Entry) ([]Entry, error)
	Iter(ctx context.Context, q IterQuery) ([]Entry, error)
	Delete(ctx context.Context, ids []int64) error
	GetByKey(ctx context.Context, key string) ([]Entry, error)
}
