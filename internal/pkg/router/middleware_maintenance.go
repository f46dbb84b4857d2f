package router

import (
	"net/http"
	"strings"

	"github.com/shandysiswandi/phoneauth/internal/pkg/config"
)

const maintenanceRetryAfter = "120"

// middlewareMaintenance answers 503 for routes listed in app.maintenance.endpoints.
// An entry is either a route pattern or "METHOD pattern".
func middlewareMaintenance(cfg config.Config) Middleware {
	anyMethod := map[string]struct{}{}
	blocked := routeSet{}
	if cfg != nil {
		for _, entry := range cfg.GetArray("app.maintenance.endpoints") {
			method, pattern, ok := strings.Cut(strings.TrimSpace(entry), " ")
			if !ok {
				anyMethod[method] = struct{}{}
				continue
			}
			method = strings.ToUpper(method)
			if blocked[method] == nil {
				blocked[method] = map[string]struct{}{}
			}
			blocked[method][strings.TrimSpace(pattern)] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			_, all := anyMethod[route]
			if all || blocked.has(r.Method, route) {
				w.Header().Set("Retry-After", maintenanceRetryAfter)
				writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
