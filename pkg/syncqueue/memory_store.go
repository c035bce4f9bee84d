package syncqueue

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/zerkella/blobmux/pkg/muxid"
)

// MemoryStore is an in-process Store, used by BatchingQueue in tests and in
// cmd/blobmuxd's local demo mode.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int64]Entry)}
}

// InsertBatch implements Store.
func (s *MemoryStore) InsertBatch(ctx context.Context, entries []Entry) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := make([]Entry, len(entries))
	for i, e := range entries {
		s.nextID++
		id := s.nextID
		e.ID = &id
		s.entries[id] = e
		inserted[i] = e
	}
	return inserted, nil
}

// Iter implements Store, honoring the closed-set contract of spec.md
// §4.5/§6: first find up to q.Limit distinct operation keys matching the
// predicates, then return every row (in this multiplex) sharing any of
// those keys — never a subset of a given operation's siblings.
func (s *MemoryStore) Iter(ctx context.Context, q IterQuery) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := s.sortedIDs()

	seenKeys := make(map[muxid.OperationKey]struct{})
	var matchedKeys []muxid.OperationKey
	for _, id := range ordered {
		if len(matchedKeys) >= q.Limit {
			break
		}
		e := s.entries[id]
		if e.MultiplexID != q.MultiplexID {
			continue
		}
		if e.Timestamp.After(q.OlderThan) {
			continue
		}
		if q.KeyLike != nil && !sqlLikeMatch(*q.KeyLike, e.BlobstoreKey) {
			continue
		}
		if _, ok := seenKeys[e.OperationKey]; ok {
			continue
		}
		seenKeys[e.OperationKey] = struct{}{}
		matchedKeys = append(matchedKeys, e.OperationKey)
	}

	var result []Entry
	for _, id := range ordered {
		e := s.entries[id]
		if e.MultiplexID != q.MultiplexID {
			continue
		}
		if _, ok := seenKeys[e.OperationKey]; ok {
			result = append(result, e)
		}
	}
	return result, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, ids []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.entries, id)
	}
	return nil
}

// GetByKey implements Store.
func (s *MemoryStore) GetByKey(ctx context.Context, key string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Entry
	for _, id := range s.sortedIDs() {
		e := s.entries[id]
		if e.BlobstoreKey == key {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// sqlLikeMatch implements the subset of SQL LIKE used by key_like: '%' as a
// wildcard, everything else literal. Good enough to exercise the predicate
// without pulling in a full SQL engine for the in-memory store.
func sqlLikeMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}

var _ Store = (*MemoryStore)(nil)
