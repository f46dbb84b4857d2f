package router

import (
	"net/http"
	"strings"

	"github.com/shandysiswandi/phoneauth/internal/pkg/jwt"
)

// routeSet holds route patterns by method.
type routeSet map[string]map[string]struct{}

func (s routeSet) has(method, pattern string) bool {
	_, ok := s[method][pattern]
	return ok
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, msg, challenge string) {
	w.Header().Set("WWW-Authenticate", challenge)
	writeJSON(w, errorResponse{Message: msg}, http.StatusUnauthorized)
}

// middlewareAuthentication requires a valid access token on every route not in public.
func middlewareAuthentication(verifier jwt.JWT, public routeSet) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public.has(r.Method, matchedRoutePath(r)) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "Authentication required", `Bearer realm="phoneauth"`)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, "Invalid or expired token", `Bearer realm="phoneauth", error="invalid_token"`)
				return
			}

			next.ServeHTTP(w, r.WithContext(jwt.SetAuth(r.Context(), claims)))
		})
	}
}
