/*
Package tracing provides lightweight request tracing.

A Tracer hands out spans with parent-child relationships and logs finished
spans through zap on a background collector, so ending a span never blocks a
request. The tracer travels in the context: once HTTPMiddleware (or
WithTracer) has put it there, any layer below can open child spans with Start
without knowing whether tracing is on.

# Usage

	tracer := tracing.New("blurguard", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracing.Start(ctx, "scan.load")
	defer span.End()
	span.SetTag("url", pageURL)

# Trace Format

Trace context crosses the API in two headers:
  - X-Trace-ID: identifier of the whole request flow
  - X-Span-ID: identifier of the caller's span

Outbound page fetches never carry these headers.
*/
package tracing
