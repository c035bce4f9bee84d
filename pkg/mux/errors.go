package mux

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/blob"
)

// ErrOperationTimeout is reported into a per-backend error map when a
// backend call exceeds the configured per-backend deadline
// (Configuration.Deadline, BackendDeadline by default). The message matches
// the original multiplexer's well-known timeout signal verbatim.
var ErrOperationTimeout = errors.New("blobstore operation timeout")

// AllFailedError means every configured backend errored; no backend
// returned a value or an absence answer.
type AllFailedError struct {
	Errors map[backend.ID]error
}

func (e *AllFailedError) Error() string {
	return fmt.Sprintf("all %d backends failed: %s", len(e.Errors), joinBackendErrors(e.Errors))
}

// SomeFailedOthersNoneError means at least one backend errored, and every
// other backend that responded returned an absence answer (Ok(None) /
// Ok(false)). Per spec.md §9, whether to treat this as absence or to retry
// is left to the caller.
type SomeFailedOthersNoneError struct {
	Errors map[backend.ID]error
}

func (e *SomeFailedOthersNoneError) Error() string {
	return fmt.Sprintf("%d backends failed, remainder reported absence: %s", len(e.Errors), joinBackendErrors(e.Errors))
}

// ValueMismatchError is a Scrub-only, non-recoverable classification: two
// or more backends returned byte-divergent content for the same key.
type ValueMismatchError struct {
	Answered map[backend.ID]struct{}
	Missing  map[backend.ID]struct{}
}

func (e *ValueMismatchError) Error() string {
	return fmt.Sprintf("value mismatch across backends: answered=%s missing=%s", backendSetString(e.Answered), backendSetString(e.Missing))
}

// SomeMissingItemError is a Scrub-only, recoverable classification: every
// backend that answered agrees on Value, but at least one backend returned
// Ok(None). The healer can use Value to repair Missing.
type SomeMissingItemError struct {
	Missing map[backend.ID]struct{}
	Value   *blob.GetData
}

func (e *SomeMissingItemError) Error() string {
	return fmt.Sprintf("value present but missing from backends: %s", backendSetString(e.Missing))
}

func joinBackendErrors(errs map[backend.ID]error) string {
	ids := make([]backend.ID, 0, len(errs))
	for id := range errs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %v", id, errs[id]))
	}
	return strings.Join(parts, "; ")
}

func backendSetString(set map[backend.ID]struct{}) string {
	ids := make([]backend.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
