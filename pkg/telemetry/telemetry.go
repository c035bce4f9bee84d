// Package telemetry defines the sampled structured logging / perf-counter
// sink the multiplexer emits to. Per spec.md §1 and §6, the sink itself is
// an external collaborator — this package only defines the shape of what
// gets emitted and a sample-rate gate, grounded on the teacher's
// util.ErrorLogger: a narrow, injectable interface rather than a concrete
// logging framework.
package telemetry

import (
	"math/rand"
	"time"

	"github.com/zerkella/blobmux/pkg/backend"
)

// OperationType identifies which multiplexer operation produced a Field.
type OperationType int

const (
	OperationGet OperationType = iota
	OperationPut
	OperationIsPresent
	OperationScrubGet
)

func (t OperationType) String() string {
	switch t {
	case OperationGet:
		return "get"
	case OperationPut:
		return "put"
	case OperationIsPresent:
		return "is_present"
	case OperationScrubGet:
		return "scrub_get"
	default:
		return "unknown"
	}
}

// ResultKind classifies the outcome of a single per-backend attempt.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultNotFound
	ResultError
	ResultTimeout
)

// Field is one per-backend-call observation: backend id, key, session id,
// operation type, latency, size (put only), write-order (put only) and
// result kind, as named in spec.md §6.
type Field struct {
	BackendID   backend.ID
	Key         string
	SessionID   string
	Operation   OperationType
	Latency     time.Duration
	SizeBytes   int64
	WriteOrder  int64
	Result      ResultKind
}

// Sink is the telemetry collaborator the multiplexer emits Fields to. It is
// assumed to exist per spec.md §1; the core only calls it.
type Sink interface {
	Record(f Field)
}

// NopSink discards every Field. It is the default Sink for a Configuration
// that does not set one explicitly.
var NopSink Sink = nopSink{}

type nopSink struct{}

func (nopSink) Record(Field) {}

// Sampler decides, per logical request, whether the full sibling fan-out
// should be retained for observability (spec.md §4.1 step 3 / §6). Once a
// winner is found, a sampled request has its unfinished siblings' results
// read in the background; a request that is not sampled leaves them
// unread. In both cases the siblings themselves keep running and record
// their own latency.
type Sampler interface {
	ShouldSample() bool
}

// ConstantRateSampler samples a fixed fraction of requests, independently
// of request rate. Rate must be in [0, 1]; 0 never samples, 1 always
// samples.
type ConstantRateSampler struct {
	Rate float64
}

// ShouldSample implements Sampler.
func (s ConstantRateSampler) ShouldSample() bool {
	if s.Rate <= 0 {
		return false
	}
	if s.Rate >= 1 {
		return true
	}
	return rand.Float64() < s.Rate
}

// AlwaysSample and NeverSample are the two degenerate samplers, useful in
// tests that want to pin down the detach-vs-drop behavior deterministically
// instead of depending on math/rand.
var (
	AlwaysSample Sampler = constSampler(true)
	NeverSample  Sampler = constSampler(false)
)

type constSampler bool

func (c constSampler) ShouldSample() bool { return bool(c) }
