package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/phoneauth/internal/pkg/config"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/redact"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

func matchedRoutePath(r *http.Request) string {
	if pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

type httpObserver struct {
	mask     redact.Fields
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newHTTPObserver(cfg config.Config, ins instrument.Instrumentation) *httpObserver {
	o := &httpObserver{tracer: ins.Tracer("http.server")}
	if cfg != nil {
		o.mask = redact.New(cfg.GetArray("instrument.log_mask_fields"))
	}

	meter := ins.Meter("http.server")
	var err error
	if o.requests, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Number of HTTP requests received")); err != nil {
		slog.Warn("http request counter unavailable", "error", err)
	}
	if o.duration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration in milliseconds"), metric.WithUnit("ms")); err != nil {
		slog.Warn("http duration histogram unavailable", "error", err)
	}
	return o
}

// middlewareObservability traces every request, counts it, and logs the
// redacted request and response. Event streams are neither buffered nor
// timed.
func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	o := newHTTPObserver(cfg, ins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			start := time.Now()

			ctx, span := o.tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
					semconv.ServerAddressKey.String(r.Host),
					attribute.String("http.user_agent", r.UserAgent()),
				),
			)
			defer span.End()
			if id := httprouter.ParamsFromContext(r.Context()).ByName("id"); id != "" {
				span.SetAttributes(attribute.String("verification.session_id", id))
			}

			head, cut := peekBody(r)
			slog.InfoContext(ctx, "request received",
				"method", r.Method,
				"path", route,
				"uri", r.RequestURI,
				"headers", o.mask.Header(r.Header),
				"body", logBody(o.mask, head, cut),
			)

			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r.WithContext(ctx))

			o.finish(ctx, span, r, route, cw, time.Since(start))
		})
	}
}

func (o *httpObserver) finish(ctx context.Context, span trace.Span, r *http.Request, route string, cw *captureWriter, elapsed time.Duration) {
	status := cw.statusCode()
	attrs := metric.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
		semconv.HTTPResponseStatusCodeKey.Int(status),
	)

	span.SetAttributes(
		semconv.HTTPResponseStatusCodeKey.Int(status),
		attribute.Int("http.response_content_length", cw.bytes),
		attribute.Bool("http.stream", cw.stream),
	)
	if cw.err != nil {
		span.RecordError(cw.err)
	}
	if status >= http.StatusInternalServerError {
		desc := http.StatusText(status)
		if cw.err != nil {
			desc = cw.err.Error()
		}
		span.SetStatus(codes.Error, desc)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if o.requests != nil {
		o.requests.Add(ctx, 1, attrs)
	}
	if o.duration != nil && !cw.stream {
		o.duration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
	}

	var body any = "<stream omitted>"
	if !cw.stream {
		body = logBody(o.mask, cw.body.Bytes(), cw.truncated)
	}
	slog.InfoContext(ctx, "response sent",
		"method", r.Method,
		"path", route,
		"status", status,
		"bytes", cw.bytes,
		"latency_ms", elapsed.Milliseconds(),
		"body", body,
	)
}
