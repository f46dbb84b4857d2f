package router

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/shandysiswandi/phoneauth/internal/pkg/stacktrace"
)

// middlewareRecoverer turns a handler panic into a 500. Once a stream has
// started the headers are gone, so the connection is only logged and dropped.
//
//nolint:contextcheck // panics are logged with the request context
func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cw := &headerWatch{ResponseWriter: w}

		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			//nolint:err113,errorlint // sentinel must be compared directly
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			stack := debug.Stack()
			slog.ErrorContext(r.Context(), "panic on the server",
				"because", rvr,
				"stack", stacktrace.Trim(stack),
				"headers_sent", cw.sent,
			)

			if !cw.sent {
				writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(cw, r)
	})
}

type headerWatch struct {
	http.ResponseWriter
	sent bool
}

func (w *headerWatch) WriteHeader(code int) {
	w.sent = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *headerWatch) Write(p []byte) (int, error) {
	w.sent = true
	return w.ResponseWriter.Write(p)
}

func (w *headerWatch) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *headerWatch) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
