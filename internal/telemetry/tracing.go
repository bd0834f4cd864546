// Package telemetry provides the OpenTelemetry tracer used across the
// module restore engine: Tracer().Start, SetSpanError, span.End() at
// every call site, backed by a minimal concrete tracer.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/bicep-lang/bicep-modreg"

// Tracer returns the package-wide tracer for the restore engine.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// SetSpanError records err on span and marks the span's status as an
// error, if err is non-nil.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
