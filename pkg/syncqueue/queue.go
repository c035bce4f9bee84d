package syncqueue

import (
	"context"
	"errors"
	"time"

	"github.com/zerkella/blobmux/pkg/muxid"
)

// ErrMissingID is returned immediately (never retried) when Del is called
// with an Entry that has no assigned ID. Per spec.md §7 this is a fatal
// precondition — a programmer error, not a transient failure.
var ErrMissingID = errors.New("syncqueue: entry has no assigned id, cannot be deleted")

// IterQuery bounds an Iter call: entries timestamped at or before OlderThan,
// within MultiplexID, optionally restricted to keys matching KeyLike (a SQL
// LIKE pattern), returning at most Limit distinct operation keys.
type IterQuery struct {
	KeyLike     *string
	MultiplexID muxid.MultiplexID
	OlderThan   time.Time
	Limit       int
}

// Queue is the capability the multiplexer writes into and the self-healer
// (external, out of scope) reads from.
type Queue interface {
	// Add enqueues a single entry, resolving once it is durably
	// persisted.
	Add(ctx context.Context, entry Entry) error

	// AddMany enqueues every entry in entries, resolving only once all of
	// them have been persisted, or failing with one aggregated error if
	// any failed.
	AddMany(ctx context.Context, entries []Entry) error

	// Iter returns the closed set described in spec.md §4.5/§6: up to
	// q.Limit distinct operation keys matching q, plus every entry
	// sharing any of those operation keys within q.MultiplexID.
	Iter(ctx context.Context, q IterQuery) ([]Entry, error)

	// Del deletes entries by ID. Every entry must carry a non-nil ID;
	// otherwise the call fails with ErrMissingID before touching the
	// store.
	Del(ctx context.Context, entries []Entry) error

	// Get returns every entry recorded for key, across all backends and
	// multiplexes.
	Get(ctx context.Context, key string) ([]Entry, error)
}
