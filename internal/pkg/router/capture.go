package router

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/shandysiswandi/phoneauth/internal/pkg/redact"
)

const maxLoggedBodyBytes = 16 << 10

// captureWriter remembers the status, byte count and handler error, and
// keeps a bounded copy of non-stream bodies for the response log.
type captureWriter struct {
	http.ResponseWriter

	status    int
	bytes     int
	stream    bool
	err       error
	body      bytes.Buffer
	truncated bool
}

func (w *captureWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
		w.stream = code == http.StatusOK && strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream")
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if !w.stream {
		w.keep(p)
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *captureWriter) keep(p []byte) {
	if w.truncated {
		return
	}
	if room := maxLoggedBodyBytes - w.body.Len(); len(p) > room {
		p, w.truncated = p[:room], true
	}
	w.body.Write(p)
}

// SetError receives the handler error from Router.adapt.
func (w *captureWriter) SetError(err error) { w.err = err }

func (w *captureWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *captureWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *captureWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// peekBody reads up to maxLoggedBodyBytes of the request body and rewinds it
// for the handler.
func peekBody(r *http.Request) (head []byte, truncated bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}

	head, _ = io.ReadAll(io.LimitReader(r.Body, maxLoggedBodyBytes+1))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	if len(head) > maxLoggedBodyBytes {
		return head[:maxLoggedBodyBytes], true
	}
	return head, false
}

// logBody renders a captured body for the request log with sensitive keys redacted.
func logBody(fields redact.Fields, raw []byte, truncated bool) any {
	if len(raw) == 0 {
		return nil
	}

	var out any = "<binary body omitted>"
	if v, ok := fields.JSON(raw); ok {
		out = v
	} else if utf8.Valid(raw) {
		out = string(raw)
	}

	if truncated {
		return map[string]any{"body": out, "truncated": true}
	}
	return out
}
