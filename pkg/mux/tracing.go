package mux

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zerkella/blobmux/pkg/backend"
)

// tracer is the one instrumentation-scoped Tracer every per-backend
// dispatch opens a span from, grounded on the teacher's
// otel.GetTracerProvider().Tracer(name) pattern in
// pkg/otel/grpc_client_stats_handler.go.
var tracer = otel.GetTracerProvider().Tracer("github.com/zerkella/blobmux/pkg/mux")

// startBackendSpan opens a span for one per-backend attempt, tagged with
// the backend id and key so a sampled request's full fan-out is visible in
// a trace viewer even though only one result is returned to the caller.
func startBackendSpan(ctx context.Context, operation string, id backend.ID, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("blobmux.backend_id", int64(id)),
			attribute.String("blobmux.key", key),
		))
}

// recordSpanOutcome marks span failed if err is non-nil, mirroring how a
// gRPC client span's status reflects the call's outcome.
func recordSpanOutcome(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
