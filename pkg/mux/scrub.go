package mux

import (
	"bytes"
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/blob"
	"github.com/zerkella/blobmux/pkg/telemetry"
)

type scrubOutcome struct {
	backendID backend.ID
	data      blob.GetData
	found     bool
	err       error
}

// ScrubGet implements spec.md §4.4: wait for every backend (no early
// return), then classify cross-replica agreement using the decision table
// in the spec's §4.4, comparing on RawBytes so ctime divergence never
// trips ValueMismatch.
func (m *Multiplexer) ScrubGet(ctx context.Context, key string) (*blob.GetData, error) {
	sessionID := m.newSessionID()
	outcomes := make([]scrubOutcome, len(m.cfg.Backends))

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range m.cfg.Backends {
		i, entry := i, entry
		g.Go(func() error {
			outcomes[i] = m.dispatchScrub(gctx, entry, key, sessionID)
			return nil
		})
	}
	_ = g.Wait()

	errs := make(map[backend.ID]error)
	answered := make(map[backend.ID]struct{})
	missing := make(map[backend.ID]struct{})
	var bestValue *blob.GetData
	allSame := true

	for _, o := range outcomes {
		if o.err != nil {
			errs[o.backendID] = o.err
			continue
		}
		if !o.found {
			missing[o.backendID] = struct{}{}
			continue
		}
		answered[o.backendID] = struct{}{}
		data := o.data
		if bestValue == nil {
			bestValue = &data
		} else if !bytes.Equal(bestValue.RawBytes(), data.RawBytes()) {
			allSame = false
		}
	}

	if len(answered) == 0 && len(missing) == 0 {
		return nil, &AllFailedError{Errors: errs}
	}

	if !allSame {
		return nil, &ValueMismatchError{Answered: answered, Missing: missing}
	}
	if len(answered) == 0 {
		if len(errs) == 0 {
			return nil, nil
		}
		return nil, &SomeFailedOthersNoneError{Errors: errs}
	}
	if len(missing) > 0 {
		return nil, &SomeMissingItemError{Missing: missing, Value: bestValue}
	}
	return bestValue, nil
}

func (m *Multiplexer) dispatchScrub(ctx context.Context, entry BackendEntry, key string, sessionID string) scrubOutcome {
	ctx, span := startBackendSpan(ctx, "mux.ScrubGet", entry.ID, key)
	defer span.End()

	start := m.cfg.Clock.Now()
	bctx, cancel := m.cfg.Clock.NewContextWithTimeout(ctx, m.cfg.Deadline)
	defer cancel()

	type callResult struct {
		data  blob.GetData
		found bool
		err   error
	}
	done := make(chan callResult, 1)
	go func() {
		data, found, err := entry.Backend.Get(bctx, key)
		done <- callResult{data, found, err}
	}()

	var cr callResult
	select {
	case cr = <-done:
	case <-bctx.Done():
		cr = callResult{err: ErrOperationTimeout}
	}
	recordSpanOutcome(span, cr.err)

	m.recordTelemetry(telemetry.Field{
		BackendID: entry.ID,
		Key:       key,
		SessionID: sessionID,
		Operation: telemetry.OperationScrubGet,
		Latency:   m.cfg.Clock.Now().Sub(start),
		Result:    resultKindFor(cr.found, cr.err),
	})

	return scrubOutcome{backendID: entry.ID, data: cr.data, found: cr.found, err: cr.err}
}
