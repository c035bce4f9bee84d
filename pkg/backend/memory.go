package backend

import (
	"context"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/zerkella/blobmux/pkg/blob"
	"github.com/zerkella/blobmux/pkg/clock"
)

// Memory is an in-process Backend backed by a map, guarded by a mutex. It
// exists for tests and for cmd/blobmuxd's local demo mode; it is not meant
// to be a production blob store.
//
// Every stored value is content-hashed with BLAKE3 on the way in, purely so
// that tests and callers can assert on the "content-addressed" property
// spec.md assumes of real backends (see ContentHash).
type Memory struct {
	clock clock.Clock

	mu       sync.Mutex
	values   map[string]blob.GetData
	hashes   map[string][]byte
	failNext map[string]error
}

// NewMemory creates an empty Memory backend. c is used to stamp ctime on
// Put; pass clock.SystemClock outside of tests.
func NewMemory(c clock.Clock) *Memory {
	return &Memory{
		clock:    c,
		values:   make(map[string]blob.GetData),
		hashes:   make(map[string][]byte),
		failNext: make(map[string]error),
	}
}

// FailNextCall arranges for the next Get, Put or IsPresent call against key
// to return err instead of touching the map. Used by tests to simulate a
// single per-backend failure without building a separate fake type.
func (m *Memory) FailNextCall(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[key] = err
}

func (m *Memory) takeFailure(key string) error {
	err, ok := m.failNext[key]
	if !ok {
		return nil
	}
	delete(m.failNext, key)
	return err
}

// Get implements Backend.
func (m *Memory) Get(ctx context.Context, key string) (blob.GetData, bool, error) {
	if err := ctx.Err(); err != nil {
		return blob.GetData{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(key); err != nil {
		return blob.GetData{}, false, err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Put implements Backend.
func (m *Memory) Put(ctx context.Context, key string, value blob.Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(key); err != nil {
		return err
	}
	m.values[key] = blob.NewGetDataWithCTime(append([]byte(nil), value...), m.clock.Now())
	h := blake3.New()
	h.Write(value)
	m.hashes[key] = h.Sum(nil)
	return nil
}

// IsPresent implements Backend.
func (m *Memory) IsPresent(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(key); err != nil {
		return false, err
	}
	_, ok := m.values[key]
	return ok, nil
}

// ContentHash returns the BLAKE3 hash computed when key was last written,
// so tests can confirm two backends that claim to hold the same key
// actually hold byte-identical content.
func (m *Memory) ContentHash(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	return h, ok
}

var _ Backend = (*Memory)(nil)
