package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// api points at a running phoneauth server, PHONEAUTH_REAL_BASE_URL or the
// local default.
var api = struct {
	base   string
	client *http.Client
}{client: &http.Client{Timeout: 10 * time.Second}}

type successEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

type errorEnvelope struct {
	Message string            `json:"message"`
	Error   map[string]string `json:"error"`
}

// TestMain expects a server started with config/config.yaml, which runs the
// mock provider with a fixed code.
func TestMain(m *testing.M) {
	api.base = strings.TrimRight(strings.TrimSpace(os.Getenv("PHONEAUTH_REAL_BASE_URL")), "/")
	if api.base == "" {
		api.base = "http://localhost:8080"
	}

	if err := waitHealthy(api.base+"/health", 5*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "e2e tests need a running server (make run): %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// waitHealthy polls url until it answers below 500 or the deadline passes.
func waitHealthy(url string, within time.Duration) error {
	deadline := time.Now().Add(within)
	for {
		resp, err := api.client.Get(url)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode < http.StatusInternalServerError {
				return nil
			}
			err = fmt.Errorf("%s returned %s", url, resp.Status)
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(250 * time.Millisecond)
	}
}

func doJSON(t *testing.T, method, path string, payload any, token string) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, api.base+path, body)
	if err != nil {
		t.Fatalf("build %s %s: %v", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := api.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s %s: %v", method, path, err)
	}
	return resp.StatusCode, raw
}

func decodeSuccess(t *testing.T, body []byte, out any) successEnvelope {
	t.Helper()

	var env successEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode success envelope %s: %v", body, err)
	}
	if out == nil || len(env.Data) == 0 {
		return env
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return env
}

func decodeError(t *testing.T, body []byte) errorEnvelope {
	t.Helper()

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode error envelope %s: %v", body, err)
	}
	return env
}
