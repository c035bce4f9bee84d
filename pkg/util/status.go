// Package util holds small cross-cutting helpers shared by the
// multiplexer, sync queue and put handler: gRPC-status-based error
// wrapping, UUID injection and a pluggable error logger.
package util

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusWrap prepends a string to the message of an existing error,
// preserving its status code. Used by the S3/GCS backend adapters and
// pkg/syncqueue to tag an error with the backend or store that produced it.
func StatusWrap(err error, msg string) error {
	p := status.Convert(err).Proto()
	p.Message = fmt.Sprintf("%s: %s", msg, p.Message)
	return status.ErrorProto(p)
}

// StatusWrapf prepends a formatted string to the message of an existing
// error.
func StatusWrapf(err error, format string, args ...interface{}) error {
	return StatusWrap(err, fmt.Sprintf(format, args...))
}

// StatusFromContext converts the error associated with a context to a
// gRPC Status error, so that context.DeadlineExceeded surfaces with
// codes.DeadlineExceeded rather than an opaque context error.
func StatusFromContext(ctx context.Context) error {
	if s := status.FromContextError(ctx.Err()); s != nil {
		return s.Err()
	}
	return nil
}

// IsInfrastructureError returns true if an error is caused by a failure of
// the infrastructure (network, I/O, deadline) as opposed to a caller-
// supplied parameter. Backend errors of this kind are transient: they are
// recorded into the per-backend error map, never used alone to fail a
// fan-out.
func IsInfrastructureError(err error) bool {
	code := status.Code(err)
	return code == codes.Internal || code == codes.Unavailable || code == codes.Unknown || code == codes.DeadlineExceeded
}

// StatusFromMultiple aggregates multiple errors into a single one, using
// the status code of the first and concatenating all distinct messages.
// Used by syncqueue.BatchingQueue to turn a batch-insert failure into one
// error surfaced to every caller whose entry was in that batch.
func StatusFromMultiple(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	p := status.Convert(errs[0]).Proto()
	messages := append(make([]string, 0, len(errs)), p.Message)
	seen := map[string]struct{}{p.Message: {}}
	for _, err := range errs[1:] {
		msg := status.Convert(err).Message()
		if _, ok := seen[msg]; !ok {
			messages = append(messages, msg)
			seen[msg] = struct{}{}
		}
	}
	p.Message = strings.Join(messages, ", ")
	return status.ErrorProto(p)
}
