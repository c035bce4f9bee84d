package mux_test

import (
	"context"
	"time"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/blob"
)

// delayBackend wraps another backend and sleeps before delegating, so tests
// can control relative arrival order deterministically without a fake
// network.
type delayBackend struct {
	inner backend.Backend
	delay time.Duration
}

func (d delayBackend) Get(ctx context.Context, key string) (blob.GetData, bool, error) {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return blob.GetData{}, false, ctx.Err()
	}
	return d.inner.Get(ctx, key)
}

func (d delayBackend) Put(ctx context.Context, key string, value blob.Blob) error {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.inner.Put(ctx, key, value)
}

func (d delayBackend) IsPresent(ctx context.Context, key string) (bool, error) {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return d.inner.IsPresent(ctx, key)
}

// erroringBackend always fails every call with err.
type erroringBackend struct {
	err error
}

func (e erroringBackend) Get(ctx context.Context, key string) (blob.GetData, bool, error) {
	return blob.GetData{}, false, e.err
}

func (e erroringBackend) Put(ctx context.Context, key string, value blob.Blob) error {
	return e.err
}

func (e erroringBackend) IsPresent(ctx context.Context, key string) (bool, error) {
	return false, e.err
}

// blockingBackend never returns at all, simulating a backend that exceeds
// its deadline: the multiplexer's own bctx.Done() case must be what
// produces ErrOperationTimeout, deterministically, rather than racing
// against the backend noticing cancellation itself.
type blockingBackend struct{}

func (blockingBackend) Get(ctx context.Context, key string) (blob.GetData, bool, error) {
	select {}
}

func (blockingBackend) Put(ctx context.Context, key string, value blob.Blob) error {
	select {}
}

func (blockingBackend) IsPresent(ctx context.Context, key string) (bool, error) {
	select {}
}
