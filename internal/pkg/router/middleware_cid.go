package router

import (
	"net/http"

	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
)

const (
	// HeaderCorrelationID carries the correlation id in both directions.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is read when the caller only sets a request id.
	HeaderRequestID = "X-Request-ID"

	maxCorrelationIDLen = 128
)

// validCID accepts printable ASCII without spaces, which keeps ids safe to
// echo in headers and log lines.
func validCID(v string) bool {
	if v == "" || len(v) > maxCorrelationIDLen {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] <= ' ' || v[i] > '~' {
			return false
		}
	}
	return true
}

func middlewareCorrelationID(gen uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := ""
			for _, h := range []string{HeaderCorrelationID, HeaderRequestID} {
				if v := r.Header.Get(h); validCID(v) {
					cid = v
					break
				}
			}
			if cid == "" && gen != nil {
				cid = gen.Generate()
			}

			if cid != "" {
				w.Header().Set(HeaderCorrelationID, cid)
				r = r.WithContext(instrument.SetCorrelationID(r.Context(), cid))
			}

			next.ServeHTTP(w, r)
		})
	}
}
