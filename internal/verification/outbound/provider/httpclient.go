package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseBytes = 1 << 20

var errTransport = errors.New("provider: transport failure")

// apiRequest describes a single call to a remote backend.
type apiRequest struct {
	Op      string
	Method  string
	URL     string
	Header  http.Header
	JSON    any
	Form    url.Values
	BasicID string
	BasicPW string
}

type apiResponse struct {
	Status int
	Body   []byte
}

func (r *apiResponse) decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("provider: empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// apiClient is the HTTP helper shared by the remote backends. It retries only
// when the remote declined without processing the request (429 and 503).
type apiClient struct {
	name       string
	client     *http.Client
	tracer     trace.Tracer
	maxRetries uint64
	retryBase  time.Duration
}

func newAPIClient(name string, opts Options) *apiClient {
	client := opts.Client
	if client == nil {
		timeout := opts.HTTP.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	base := opts.HTTP.RetryBase
	if base <= 0 {
		base = 200 * time.Millisecond
	}

	return &apiClient{
		name:       name,
		client:     client,
		tracer:     tracerOf(opts),
		maxRetries: opts.HTTP.MaxRetries,
		retryBase:  base,
	}
}

func (c *apiClient) do(ctx context.Context, req apiRequest) (*apiResponse, error) {
	ctx, span := c.tracer.Start(ctx, c.name+"."+req.Op)
	defer span.End()

	b := retry.NewExponential(c.retryBase)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxRetries(c.maxRetries, b)

	var resp *apiResponse
	attempts := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++

		httpReq, err := c.build(ctx, req)
		if err != nil {
			return err
		}

		res, err := c.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("%w: %w", errTransport, err)
		}
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("%w: %w", errTransport, err)
		}

		resp = &apiResponse{Status: res.StatusCode, Body: body}
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode == http.StatusServiceUnavailable {
			return retry.RetryableError(fmt.Errorf("%s declined the request with status %d", c.name, res.StatusCode))
		}

		return nil
	})

	span.SetAttributes(attribute.Int("provider.attempts", attempts))
	if resp != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return resp, nil
}

func (c *apiClient) build(ctx context.Context, req apiRequest) (*http.Request, error) {
	var body io.Reader
	contentType := ""

	switch {
	case req.JSON != nil:
		raw, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.BasicID != "" {
		httpReq.SetBasicAuth(req.BasicID, req.BasicPW)
	}

	return httpReq, nil
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		out += "/" + strings.Trim(p, "/")
	}
	return out
}
