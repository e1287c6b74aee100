// Package otel provides OpenTelemetry tracing integration for scuttle-chat.
//
// Traces give visibility into connection lifecycle, handshake operations,
// and message flow.
//
// # Span Hierarchy
//
// The following spans are created during normal operation:
//
//	scuttlechat.connect
//	├── scuttlechat.dial            (outbound connections)
//	└── scuttlechat.handshake
//
//	scuttlechat.send
//
//	scuttlechat.receive
//
// # Attributes
//
// Common span attributes include:
//   - peer.key: The remote peer's base64 public key
//   - message.size: Size of sent/received messages
//   - connection.direction: "inbound" or "outbound"
//   - handshake.result: "success" or "failure"
//
// # Example Usage
//
//	import (
//	    scuttlechat "github.com/okwme/scuttle-chat"
//	    scotel "github.com/okwme/scuttle-chat/otel"
//	    "go.opentelemetry.io/otel"
//	)
//
//	func main() {
//	    tp := otel.GetTracerProvider()
//	    tracer := scotel.NewTracer(tp)
//
//	    ctx, span := tracer.StartConnect(ctx, peer.PublicKey, "outbound")
//	    err := node.Connect(peer)
//	    tracer.EndSpan(span, err)
//	}
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/okwme/scuttle-chat/pkg/crypto"
)

const (
	// TracerName is the name used for the OpenTelemetry tracer.
	TracerName = "github.com/okwme/scuttle-chat"

	// Span names
	SpanConnect    = "scuttlechat.connect"
	SpanDial       = "scuttlechat.dial"
	SpanHandshake  = "scuttlechat.handshake"
	SpanSend       = "scuttlechat.send"
	SpanReceive    = "scuttlechat.receive"
	SpanDisconnect = "scuttlechat.disconnect"

	// Attribute keys
	AttrPeerKey             = "peer.key"
	AttrMessageSize         = "message.size"
	AttrConnectionDirection = "connection.direction"
	AttrHandshakeResult     = "handshake.result"
	AttrErrorMessage        = "error.message"
)

// Tracer provides OpenTelemetry tracing for scuttle-chat operations.
// It wraps an OpenTelemetry TracerProvider and creates spans for
// connection lifecycle, handshakes, and message operations.
//
// Tracer is safe for concurrent use.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer using the given TracerProvider.
// If provider is nil, a no-op tracer is used.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer(TracerName)}
	}
	return &Tracer{tracer: provider.Tracer(TracerName)}
}

// StartConnect starts a span for a connection attempt.
func (t *Tracer) StartConnect(ctx context.Context, peer crypto.PublicKey, direction string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanConnect,
		trace.WithAttributes(
			attribute.String(AttrPeerKey, peer.String()),
			attribute.String(AttrConnectionDirection, direction),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartDial starts a span for dialing a peer.
func (t *Tracer) StartDial(ctx context.Context, peer crypto.PublicKey) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanDial,
		trace.WithAttributes(
			attribute.String(AttrPeerKey, peer.String()),
		),
	)
}

// StartHandshake starts a span for a handshake operation.
func (t *Tracer) StartHandshake(ctx context.Context, direction string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanHandshake,
		trace.WithAttributes(
			attribute.String(AttrConnectionDirection, direction),
		),
	)
}

// StartSend starts a span for sending a message.
func (t *Tracer) StartSend(ctx context.Context, peer crypto.PublicKey, size int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSend,
		trace.WithAttributes(
			attribute.String(AttrPeerKey, peer.String()),
			attribute.Int(AttrMessageSize, size),
		),
		trace.WithSpanKind(trace.SpanKindProducer),
	)
}

// StartReceive starts a span for receiving a message.
func (t *Tracer) StartReceive(ctx context.Context, peer crypto.PublicKey, size int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanReceive,
		trace.WithAttributes(
			attribute.String(AttrPeerKey, peer.String()),
			attribute.Int(AttrMessageSize, size),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}

// StartDisconnect starts a span for disconnection.
func (t *Tracer) StartDisconnect(ctx context.Context, peer crypto.PublicKey) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanDisconnect,
		trace.WithAttributes(
			attribute.String(AttrPeerKey, peer.String()),
		),
	)
}

// RecordHandshakeResult records the result of a handshake on the given span.
func (t *Tracer) RecordHandshakeResult(span trace.Span, result string, err error) {
	span.SetAttributes(attribute.String(AttrHandshakeResult, result))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// RecordError records an error on the given span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// EndSpan ends a span, optionally recording an error.
func (t *Tracer) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// NopTracer is a no-op tracer that does nothing.
// It is used when tracing is disabled.
type NopTracer struct {
	*Tracer
}

// NewNopTracer creates a new no-op tracer.
func NewNopTracer() *NopTracer {
	return &NopTracer{
		Tracer: NewTracer(nil),
	}
}
