package tracing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/blurguard/internal/infrastructure/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TraceID identifies one request flow
type TraceID string

// SpanID identifies one operation in a trace
type SpanID string

// Span represents a single operation in a trace. A nil *Span is a no-op.
type Span struct {
	TraceID   TraceID
	SpanID    SpanID
	ParentID  SpanID
	Name      string
	StartTime time.Time
	Duration  time.Duration

	mu     sync.Mutex
	tags   map[string]string
	err    error
	tracer *Tracer
	ended  bool
}

// Tracer collects finished spans and logs them off the request path
type Tracer struct {
	service string
	log     *logging.Logger
	spans   chan *Span
	done    chan struct{}

	closeOnce sync.Once
}

// New creates a tracer. Spans are logged at Debug, failed ones at Warn.
func New(service string, log *logging.Logger) *Tracer {
	t := &Tracer{
		service: service,
		log:     log.OrNop().Component("tracing"),
		spans:   make(chan *Span, 1000),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

type contextKey int

const (
	tracerKey contextKey = iota
	spanKey
)

// WithTracer stores t in ctx so Start can find it
func WithTracer(ctx context.Context, t *Tracer) context.Context {
	return context.WithValue(ctx, tracerKey, t)
}

// Start opens a child span of the span in ctx, using the tracer in ctx.
// Without a tracer it returns a nil span and ctx unchanged.
func Start(ctx context.Context, name string) (*Span, context.Context) {
	t, _ := ctx.Value(tracerKey).(*Tracer)
	if t == nil {
		return nil, ctx
	}
	return t.StartSpan(ctx, name)
}

// StartSpan opens a span, continuing the trace found in ctx if any
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	span := &Span{
		SpanID:    newSpanID(),
		Name:      name,
		StartTime: time.Now(),
		tags:      make(map[string]string),
		tracer:    t,
	}
	if parent := FromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	} else {
		span.TraceID = TraceID(uuid.NewString())
	}
	ctx = context.WithValue(ctx, tracerKey, t)
	return span, context.WithValue(ctx, spanKey, span)
}

// FromContext returns the current span
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey).(*Span)
	return span
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.tags[key] = value
	s.mu.Unlock()
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	if s == nil || err == nil {
		return
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// End finishes the span and hands it to the tracer. Only the first call counts.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
	s.tracer.submit(s)
}

// Tags returns a copy of the span tags
func (s *Span) Tags() map[string]string {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

// Err returns the recorded error
func (s *Span) Err() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (t *Tracer) submit(span *Span) {
	select {
	case <-t.done:
		return
	default:
	}
	select {
	case t.spans <- span:
	default:
		t.log.Warn("Span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span", span.Name))
	}
}

func (t *Tracer) collect() {
	for {
		select {
		case span := <-t.spans:
			t.record(span)
		case <-t.done:
			// Drain what was already submitted.
			for {
				select {
				case span := <-t.spans:
					t.record(span)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracer) record(span *Span) {
	fields := []zap.Field{
		zap.String("service", t.service),
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	for k, v := range span.Tags() {
		fields = append(fields, zap.String(k, v))
	}

	if err := span.Err(); err != nil {
		t.log.Warn("Span failed", append(fields, zap.Error(err))...)
		return
	}
	t.log.Debug("Span completed", fields...)
}

// Close stops the collector after logging buffered spans
func (t *Tracer) Close() {
	t.closeOnce.Do(func() { close(t.done) })
}

// Headers carrying trace context on the API
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// Continue returns ctx carrying a remote parent taken from request headers
func Continue(ctx context.Context, traceID, spanID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, spanKey, &Span{TraceID: TraceID(traceID), SpanID: SpanID(spanID)})
}

func newSpanID() SpanID {
	return SpanID(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
