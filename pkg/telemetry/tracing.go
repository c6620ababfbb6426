package telemetry

import (
	"context"
	"encoding/json"

	"github.com/twosixlabs/magicwand/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "github.com/twosixlabs/magicwand"
	// TraceParent is the execution context variable carrying the span of the run to its workloads
	TraceParent = "TRACE_PARENT"
)

// StartTracing starts a span named spanName as a child of the span in ctx
func StartTracing(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// EndSpan records err on the span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// GetMarshalledSpanFromContext Extract spanContext from the context and return it as json encoded string
func GetMarshalledSpanFromContext(ctx context.Context) string {
	carrier := make(map[string]string)
	pro := otel.GetTextMapPropagator()

	pro.Inject(ctx, propagation.MapCarrier(carrier))

	if len(carrier) == 0 {
		return ""
	}

	marshalled, err := json.Marshal(carrier)
	if err != nil {
		log.Error(err.Error())
		return ""
	}
	if len(marshalled) >= 1024 {
		log.Error("marshalled span context is too large, unable to marshall")
		return ""
	}
	return string(marshalled)
}

// GetTraceParentContext rebuilds the span context marshalled into traceParent
func GetTraceParentContext(traceParent string) (context.Context, error) {
	carrier := make(map[string]string)
	if err := json.Unmarshal([]byte(traceParent), &carrier); err != nil {
		return nil, err
	}
	pro := otel.GetTextMapPropagator()
	return pro.Extract(context.Background(), propagation.MapCarrier(carrier)), nil
}
