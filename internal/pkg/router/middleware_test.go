package router

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/shandysiswandi/phoneauth/internal/pkg/config"
	"github.com/shandysiswandi/phoneauth/internal/pkg/redact"
)

func TestLogBody(t *testing.T) {
	// Arrange
	fields := redact.New([]string{"code", "phone_number"})

	// Act
	got := logBody(fields, []byte(`{"code":"123456","phone_number":"+15551234567","channel":"SMS"}`), true)

	// Assert
	want := map[string]any{
		"body": map[string]any{
			"code":         "***",
			"phone_number": "+1******4567",
			"channel":      "SMS",
		},
		"truncated": true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("logBody() = %#v, want %#v", got, want)
	}
	if got := logBody(fields, []byte("plain text"), false); got != "plain text" {
		t.Errorf("logBody(text) = %#v", got)
	}
	if got := logBody(fields, []byte{0xff, 0xfe}, false); got != "<binary body omitted>" {
		t.Errorf("logBody(binary) = %#v", got)
	}
	if got := logBody(fields, nil, false); got != nil {
		t.Errorf("logBody(nil) = %#v", got)
	}
}

func TestValidCID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: "abc-123", want: true},
		{in: "", want: false},
		{in: "has space", want: false},
		{in: "line\nbreak", want: false},
		{in: strings.Repeat("x", maxCorrelationIDLen+1), want: false},
	}

	for _, tt := range tests {
		if got := validCID(tt.in); got != tt.want {
			t.Errorf("validCID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name  string
		trust bool
		xff   string
		want  string
	}{
		{name: "ignores forwarded header by default", trust: false, xff: "203.0.113.9", want: "192.0.2.1"},
		{name: "honors forwarded header behind proxy", trust: true, xff: "203.0.113.9, 10.0.0.1", want: "203.0.113.9"},
		{name: "falls back on garbage", trust: true, xff: "not-an-ip", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "192.0.2.1:5555"
			r.Header.Set("X-Forwarded-For", tt.xff)

			// Act
			got := clientIP(r, tt.trust)

			// Assert
			if got != tt.want {
				t.Fatalf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMaintenanceByMethod(t *testing.T) {
	// Arrange
	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  maintenance:\n    endpoints: \"POST /api/v1/verification/sessions\"\n"))
	if err != nil {
		t.Fatalf("NewViperFromBytes() error = %v", err)
	}
	mw := middlewareMaintenance(cfg)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	// Act
	post := httptest.NewRecorder()
	mw(ok).ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/api/v1/verification/sessions", nil))
	get := httptest.NewRecorder()
	mw(ok).ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/v1/verification/sessions", nil))

	// Assert
	if post.Code != http.StatusServiceUnavailable || post.Header().Get("Retry-After") == "" {
		t.Fatalf("POST status = %d, Retry-After = %q", post.Code, post.Header().Get("Retry-After"))
	}
	if get.Code != http.StatusNoContent {
		t.Fatalf("GET status = %d", get.Code)
	}
}

func TestAuthenticationChallenge(t *testing.T) {
	// Arrange
	r, _ := newTestRouter(t)
	r.GET("/api/v1/verification/identity", func(*Request) (any, error) { return nil, nil })
	req := httptest.NewRequest(http.MethodGet, "/api/v1/verification/identity", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()

	// Act
	r.ServeHTTP(rec, req)

	// Assert
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`) {
		t.Fatalf("WWW-Authenticate = %q", rec.Header().Get("WWW-Authenticate"))
	}
}

func TestRecovererAfterStreamStarted(t *testing.T) {
	// Arrange
	h := middlewareRecoverer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": connected\n\n"))
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	// Act
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 kept from stream", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Internal server error") {
		t.Fatalf("body = %q, want no error envelope after stream start", rec.Body.String())
	}
}
