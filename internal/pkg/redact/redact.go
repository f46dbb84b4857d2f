// Package redact hides sensitive values before they reach logs.
//
// Keys are matched case-insensitively at any depth of a JSON document, a
// header set or a log attribute group. A key naming a phone number keeps its
// last four digits so an operator can still correlate a session; every other
// match is replaced with "***".
package redact

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shandysiswandi/phoneauth/internal/pkg/phone"
)

const Hidden = "***"

type Fields map[string]struct{}

func New(keys []string) Fields {
	f := make(Fields, len(keys))
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			f[k] = struct{}{}
		}
	}
	return f
}

func (f Fields) Has(key string) bool {
	_, ok := f[strings.ToLower(key)]
	return ok
}

// Value is the replacement for v stored under a matched key.
func (f Fields) Value(key string, v any) any {
	if s, ok := v.(string); ok && strings.Contains(strings.ToLower(key), "phone") {
		return phone.Mask(s)
	}
	return Hidden
}

// Data walks decoded JSON and returns a redacted copy. Other values are
// returned as is.
func (f Fields) Data(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if f.Has(k) {
				out[k] = f.Value(k, inner)
			} else {
				out[k] = f.Data(inner)
			}
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = inner
		}
		return f.Data(out)
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = f.Data(inner)
		}
		return out
	default:
		return v
	}
}

// JSON decodes raw and redacts it. ok is false when raw is not a JSON object
// or array.
func (f Fields) JSON(raw []byte) (v any, ok bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, false
	}
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, false
	}
	return f.Data(v), true
}

func (f Fields) Header(h http.Header) http.Header {
	out := h.Clone()
	for key := range out {
		if f.Has(key) {
			out.Set(key, Hidden)
		}
	}
	return out
}
