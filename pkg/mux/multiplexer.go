package mux

import (
	"context"
	"sync/atomic"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/blob"
	"github.com/zerkella/blobmux/pkg/muxid"
	"github.com/zerkella/blobmux/pkg/telemetry"
)

// Multiplexer fans operations out across a fixed set of backends and
// reduces their results per operation-specific policy. It owns no
// persistent state beyond its Configuration.
type Multiplexer struct {
	cfg Configuration
}

// NewMultiplexer builds a Multiplexer. Backend IDs within cfg must be
// unique; NewMultiplexer panics otherwise, since every fan-out result is
// keyed by BackendID.
func NewMultiplexer(cfg Configuration) *Multiplexer {
	cfg.checkBackendIDsUnique()
	registerMetrics()
	return &Multiplexer{cfg: cfg.withDefaults()}
}

type getOutcome struct {
	backendID backend.ID
	data      blob.GetData
	found     bool
	err       error
}

// Get implements spec.md §4.1: dispatch to every backend in parallel, race
// the first Ok(Some(value)) to the caller, and classify the remainder only
// if the race drains without a winner.
func (m *Multiplexer) Get(ctx context.Context, key string) (*blob.GetData, error) {
	sessionID := m.newSessionID()
	results := make(chan getOutcome, len(m.cfg.Backends))
	for _, entry := range m.cfg.Backends {
		go m.dispatchGet(ctx, entry, key, sessionID, results)
	}

	errs := make(map[backend.ID]error)
	received := 0
	for received < len(m.cfg.Backends) {
		r := <-results
		received++
		if r.err == nil && r.found {
			m.drainRemainingGet(results, len(m.cfg.Backends)-received)
			stripped := r.data.StripCTime()
			return &stripped, nil
		}
		if r.err != nil {
			errs[r.backendID] = r.err
		}
	}

	if len(errs) == len(m.cfg.Backends) {
		return nil, &AllFailedError{Errors: errs}
	}
	if len(errs) > 0 {
		return nil, &SomeFailedOthersNoneError{Errors: errs}
	}
	return nil, nil
}

func (m *Multiplexer) dispatchGet(ctx context.Context, entry BackendEntry, key string, sessionID string, results chan<- getOutcome) {
	ctx, span := startBackendSpan(ctx, "mux.Get", entry.ID, key)
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
		Operation: telemetry.OperationGet,
		Latency:   m.cfg.Clock.Now().Sub(start),
		Result:    resultKindFor(cr.found, cr.err),
	})

	results <- getOutcome{backendID: entry.ID, data: cr.data, found: cr.found, err: cr.err}
}

// drainRemainingGet honors spec.md §4.1/§5: once a winner is found, the
// caller never waits for the rest. No straggler is cancelled: each one runs
// to completion and records its own telemetry. For a sampled request their
// results are read in the background; otherwise they are left unread in
// the buffered results channel.
func (m *Multiplexer) drainRemainingGet(results <-chan getOutcome, remaining int) {
	if remaining <= 0 {
		return
	}
	if !m.cfg.Sampler.ShouldSample() {
		return
	}
	go func() {
		for i := 0; i < remaining; i++ {
			<-results
		}
	}()
}

type presenceOutcome struct {
	backendID backend.ID
	present   bool
	err       error
}

// IsPresent implements spec.md §4.3: short-circuit on the first Ok(true),
// otherwise apply the same AllFailed/SomeFailedOthersNone/Ok(false)
// classification as Get.
func (m *Multiplexer) IsPresent(ctx context.Context, key string) (bool, error) {
	sessionID := m.newSessionID()
	results := make(chan presenceOutcome, len(m.cfg.Backends))
	for _, entry := range m.cfg.Backends {
		go m.dispatchIsPresent(ctx, entry, key, sessionID, results)
	}

	errs := make(map[backend.ID]error)
	received := 0
	for received < len(m.cfg.Backends) {
		r := <-results
		received++
		if r.err == nil && r.present {
			m.drainRemainingPresence(results, len(m.cfg.Backends)-received)
			return true, nil
		}
		if r.err != nil {
			errs[r.backendID] = r.err
		}
	}

	if len(errs) == len(m.cfg.Backends) {
		return false, &AllFailedError{Errors: errs}
	}
	if len(errs) > 0 {
		return false, &SomeFailedOthersNoneError{Errors: errs}
	}
	return false, nil
}

func (m *Multiplexer) dispatchIsPresent(ctx context.Context, entry BackendEntry, key string, sessionID string, results chan<- presenceOutcome) {
	ctx, span := startBackendSpan(ctx, "mux.IsPresent", entry.ID, key)
	defer span.End()

	start := m.cfg.Clock.Now()
	bctx, cancel := m.cfg.Clock.NewContextWithTimeout(ctx, m.cfg.Deadline)
	defer cancel()

	type callResult struct {
		present bool
		err     error
	}
	done := make(chan callResult, 1)
	go func() {
		present, err := entry.Backend.IsPresent(bctx, key)
		done <- callResult{present, err}
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
		Operation: telemetry.OperationIsPresent,
		Latency:   m.cfg.Clock.Now().Sub(start),
		Result:    resultKindFor(cr.present, cr.err),
	})

	results <- presenceOutcome{backendID: entry.ID, present: cr.present, err: cr.err}
}

func (m *Multiplexer) drainRemainingPresence(results <-chan presenceOutcome, remaining int) {
	if remaining <= 0 {
		return
	}
	if !m.cfg.Sampler.ShouldSample() {
		return
	}
	go func() {
		for i := 0; i < remaining; i++ {
			<-results
		}
	}()
}

func (m *Multiplexer) recordTelemetry(f telemetry.Field) {
	m.cfg.TelemetrySink.Record(f)
	backendLatencySeconds.WithLabelValues(f.Operation.String(), f.Result.String()).Observe(f.Latency.Seconds())
	operationOutcomes.WithLabelValues(f.Operation.String(), f.Result.String()).Inc()
}

func resultKindFor(positive bool, err error) telemetry.ResultKind {
	switch {
	case err == ErrOperationTimeout:
		return telemetry.ResultTimeout
	case err != nil:
		return telemetry.ResultError
	case positive:
		return telemetry.ResultSuccess
	default:
		return telemetry.ResultNotFound
	}
}

func (m *Multiplexer) newSessionID() string {
	id, err := m.cfg.UUIDGenerator()
	if err != nil {
		return ""
	}
	return id.String()
}

func (m *Multiplexer) newOperationKey() (muxid.OperationKey, error) {
	return muxid.NewOperationKey(m.cfg.UUIDGenerator)
}

func nextWriteOrder(counter *int64) int64 {
	return atomic.AddInt64(counter, 1)
}
