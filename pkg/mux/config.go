// Package mux implements the multiplexer core: fan-out of get/put/is_present
// and scrub_get across a fixed set of backends, reducing their results per
// operation-specific policy.
package mux

import (
	"time"

	"github.com/google/uuid"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/clock"
	"github.com/zerkella/blobmux/pkg/muxid"
	"github.com/zerkella/blobmux/pkg/puthandler"
	"github.com/zerkella/blobmux/pkg/telemetry"
	"github.com/zerkella/blobmux/pkg/util"
)

// MultiplexID identifies the logical multiplex a Multiplexer serves.
type MultiplexID = muxid.MultiplexID

// OperationKey is the 128-bit UUID correlating sibling sync-queue rows
// produced by one logical put.
type OperationKey = muxid.OperationKey

// BackendEntry pairs a stable BackendID with the capability it identifies.
// BackendIDs must be unique within a Configuration.
type BackendEntry struct {
	ID      backend.ID
	Backend backend.Backend
}

// Configuration is immutable for the lifetime of a Multiplexer.
type Configuration struct {
	MultiplexID   MultiplexID
	Backends      []BackendEntry
	PutHandler    puthandler.Handler
	TelemetrySink telemetry.Sink
	Sampler       telemetry.Sampler
	UUIDGenerator util.UUIDGenerator
	Clock         clock.Clock

	// Deadline overrides BackendDeadline. Left zero in production; tests
	// set it to something small so a deliberately slow fake backend can
	// trip the timeout path without the test actually waiting 600s — the
	// fake backend controls *how long a backend blocks*, this controls
	// *how long the multiplexer tolerates blocking*.
	Deadline time.Duration
}

// BackendDeadline is the hard per-backend timeout applied to every get, put
// and is_present call, per spec.md §4.1/§5.
const BackendDeadline = 600 * time.Second

func (c Configuration) withDefaults() Configuration {
	if c.TelemetrySink == nil {
		c.TelemetrySink = telemetry.NopSink
	}
	if c.Sampler == nil {
		c.Sampler = telemetry.NeverSample
	}
	if c.UUIDGenerator == nil {
		c.UUIDGenerator = util.UUIDGenerator(uuid.NewRandom)
	}
	if c.Clock == nil {
		c.Clock = clock.SystemClock
	}
	if c.Deadline == 0 {
		c.Deadline = BackendDeadline
	}
	return c
}

func (c Configuration) backendIDs() map[backend.ID]struct{} {
	ids := make(map[backend.ID]struct{}, len(c.Backends))
	for _, e := range c.Backends {
		ids[e.ID] = struct{}{}
	}
	return ids
}

// checkBackendIDsUnique panics if two BackendEntry values in c share an ID:
// every fan-out result is keyed by BackendID, so a duplicate would silently
// merge two backends' outcomes into one slot.
func (c Configuration) checkBackendIDsUnique() {
	ids := c.backendIDs()
	if len(ids) != len(c.Backends) {
		panic("mux: Configuration.Backends contains duplicate BackendIDs")
	}
}
