package instrument

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/shandysiswandi/phoneauth/internal/pkg/redact"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// initLogging installs the default slog logger: JSON on stdout, plus the OTLP
// bridge when lp is set. Every record carries the service name and the
// correlation id from its context, with configured fields redacted.
func initLogging(cfg *Config, lp *sdklog.LoggerProvider) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	var out slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: renameAttr,
	})
	if lp != nil {
		out = tee{out, otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(lp))}
	}

	slog.SetDefault(slog.New(&enrichHandler{
		next:    out,
		service: cfg.ServiceName,
		fields:  redact.New(cfg.MaskFields),
	}))
}

// renameAttr shortens builtin keys and reports the caller relative to internal/.
func renameAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}

	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
	case slog.LevelKey:
		a.Key = "severity"
	case slog.SourceKey:
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		_, rel, found := strings.Cut(src.File, "/internal/")
		if !found {
			return slog.Attr{}
		}
		return slog.String("file", "internal/"+rel+":"+strconv.Itoa(src.Line))
	}
	return a
}

type enrichHandler struct {
	next    slog.Handler
	service string
	fields  redact.Fields
}

func (h *enrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *enrichHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})

	if cID := GetCorrelationID(ctx); cID != "" {
		out.AddAttrs(slog.String("_cID", cID))
	}
	out.AddAttrs(slog.String("service", h.service))

	return h.next.Handle(ctx, out)
}

func (h *enrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redact(a)
	}
	return &enrichHandler{next: h.next.WithAttrs(clean), service: h.service, fields: h.fields}
}

func (h *enrichHandler) WithGroup(name string) slog.Handler {
	return &enrichHandler{next: h.next.WithGroup(name), service: h.service, fields: h.fields}
}

// redact hides a matched key outright and looks inside groups, maps and
// JSON-looking strings or bytes for nested matches.
func (h *enrichHandler) redact(a slog.Attr) slog.Attr {
	if len(h.fields) == 0 {
		return a
	}
	if h.fields.Has(a.Key) {
		return slog.Any(a.Key, h.fields.Value(a.Key, a.Value.Any()))
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]slog.Attr, len(group))
		for i, ga := range group {
			clean[i] = h.redact(ga)
		}
		a.Value = slog.GroupValue(clean...)
	case slog.KindString:
		if v, ok := h.fields.JSON([]byte(a.Value.String())); ok {
			a.Value = slog.AnyValue(v)
		}
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case map[string]any, map[string]string, []any:
			a.Value = slog.AnyValue(h.fields.Data(v))
		case []byte:
			if clean, ok := h.fields.JSON(v); ok {
				a.Value = slog.AnyValue(clean)
			}
		}
	}
	return a
}

// tee fans a record out to every handler that accepts its level.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
