package mux

import (
	"context"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/blob"
	"github.com/zerkella/blobmux/pkg/telemetry"
)

// putTaskResult is what a per-backend put task yields: either a handler
// closure to run next, or the error that put encountered.
type putTaskResult struct {
	backendID backend.ID
	handler   func() error // nil on failure
	err       error
}

// handlerTaskResult is what a scheduled handler invocation yields.
type handlerTaskResult struct {
	err error
}

// Put implements spec.md §4.2's two-pool reducer: it succeeds as soon as
// one backend put AND its handler have both completed successfully, or as
// soon as every backend put has succeeded with no put or handler error
// observed (without waiting for any handler). Either way it detaches (never
// cancels) whatever work remains so replication keeps going in the
// background. If neither happens, it returns the last error observed.
func (m *Multiplexer) Put(ctx context.Context, key string, value blob.Blob) error {
	opKey, err := m.newOperationKey()
	if err != nil {
		return err
	}
	sessionID := m.newSessionID()

	var writeOrder int64
	puts := make(chan putTaskResult, len(m.cfg.Backends))
	handlers := make(chan handlerTaskResult, len(m.cfg.Backends))

	pendingPuts := len(m.cfg.Backends)
	for _, entry := range m.cfg.Backends {
		go m.dispatchPut(ctx, entry, key, value, opKey, sessionID, &writeOrder, puts)
	}

	pendingHandlers := 0
	var lastErr error

	for pendingPuts > 0 || pendingHandlers > 0 {
		select {
		case pr := <-puts:
			pendingPuts--
			if pr.err != nil {
				lastErr = pr.err
				continue
			}
			pendingHandlers++
			go runHandler(pr.handler, handlers)
			if pendingPuts == 0 && lastErr == nil {
				// Every backend put succeeded with no failures observed at
				// all: full replication is already underway, so the
				// remaining handler completions are deferred to the
				// background rather than waited on.
				m.detachRemaining(nil, handlers, 0, pendingHandlers)
				return nil
			}
		case hr := <-handlers:
			pendingHandlers--
			if hr.err != nil {
				lastErr = hr.err
				continue
			}
			m.detachRemaining(puts, handlers, pendingPuts, pendingHandlers)
			return nil
		}
	}

	return lastErr
}

func (m *Multiplexer) dispatchPut(ctx context.Context, entry BackendEntry, key string, value blob.Blob, opKey OperationKey, sessionID string, writeOrder *int64, results chan<- putTaskResult) {
	ctx, span := startBackendSpan(ctx, "mux.Put", entry.ID, key)
	defer span.End()

	start := m.cfg.Clock.Now()
	bctx, cancel := m.cfg.Clock.NewContextWithTimeout(ctx, m.cfg.Deadline)
	defer cancel()

	order := nextWriteOrder(writeOrder)

	done := make(chan error, 1)
	go func() {
		done <- entry.Backend.Put(bctx, key, value)
	}()

	var err error
	select {
	case err = <-done:
	case <-bctx.Done():
		err = ErrOperationTimeout
	}
	recordSpanOutcome(span, err)

	m.recordTelemetry(telemetry.Field{
		BackendID:  entry.ID,
		Key:        key,
		SessionID:  sessionID,
		Operation:  telemetry.OperationPut,
		Latency:    m.cfg.Clock.Now().Sub(start),
		SizeBytes:  value.Size(),
		WriteOrder: order,
		Result:     resultKindFor(err == nil, err),
	})
	putWriteOrder.Observe(float64(order))

	if err != nil {
		results <- putTaskResult{backendID: entry.ID, err: err}
		return
	}

	backendID := entry.ID
	handler := func() error {
		return m.cfg.PutHandler.OnPut(context.Background(), backendID, m.cfg.MultiplexID, opKey, key)
	}
	results <- putTaskResult{backendID: backendID, handler: handler}
}

func runHandler(handler func() error, results chan<- handlerTaskResult) {
	results <- handlerTaskResult{err: handler()}
}

// detachRemaining lets whatever puts and handlers are still outstanding
// finish in the background, per spec.md §4.2/§5: success is never
// cancellation, it is "stop waiting".
func (m *Multiplexer) detachRemaining(puts chan putTaskResult, handlers chan handlerTaskResult, pendingPuts, pendingHandlers int) {
	if pendingPuts == 0 && pendingHandlers == 0 {
		return
	}
	go func() {
		remainingPuts := pendingPuts
		remainingHandlers := pendingHandlers
		for remainingPuts > 0 || remainingHandlers > 0 {
			select {
			case pr := <-puts:
				remainingPuts--
				if pr.err == nil && pr.handler != nil {
					remainingHandlers++
					go runHandler(pr.handler, handlers)
				}
			case <-handlers:
				remainingHandlers--
			}
		}
	}()
}
