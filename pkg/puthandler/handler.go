// Package puthandler defines the hook the multiplexer calls after each
// successful per-backend put, per spec.md §4.2/§4.5: recording a
// write-intent row so an out-of-band self-healer can later detect and
// repair replicas that never completed.
package puthandler

import (
	"context"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/muxid"
)

// Handler is invoked once per backend that a Put succeeded against,
// including backends that complete after Put has already returned. Its
// success gates the multiplexer's success decision: Put returns success
// once any one handler invocation succeeds (or once every backend put has
// succeeded with no error observed), and leaves the remaining invocations
// running in the background without waiting for them.
type Handler interface {
	OnPut(ctx context.Context, backendID backend.ID, multiplexID muxid.MultiplexID, operationKey muxid.OperationKey, key string) error
}

// Func adapts a plain function to Handler.
type Func func(ctx context.Context, backendID backend.ID, multiplexID muxid.MultiplexID, operationKey muxid.OperationKey, key string) error

// OnPut implements Handler.
func (f Func) OnPut(ctx context.Context, backendID backend.ID, multiplexID muxid.MultiplexID, operationKey muxid.OperationKey, key string) error {
	return f(ctx, backendID, multiplexID, operationKey, key)
}
