package inbound

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/goerror"
	"github.com/shandysiswandi/phoneauth/internal/pkg/router"
	"github.com/shandysiswandi/phoneauth/internal/verification/usecase"
)

const heartbeatInterval = 25 * time.Second

// StreamSession streams session snapshots, including the resend countdown, using SSE.
// @Summary Stream verification session
// @Description Streams session snapshots using Server-Sent Events (SSE). A snapshot is sent on every change and on every countdown tick.
// @Tags Verification
// @Produce text/event-stream
// @Param id path string true "Session ID"
// @Success 200 {string} string "SSE stream"
// @Failure 404 {string} string "Session not found"
// @Failure 500 {string} string "streaming unsupported"
// @Router /api/v1/verification/sessions/{id}/stream [get]
func (h *HTTPEndpoint) StreamSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	req := &router.Request{Request: r}
	stream, stop, err := h.uc.WatchSession(ctx, usecase.SessionInput{SessionID: req.GetParam("id")})
	if err != nil {
		status := http.StatusInternalServerError
		var gerr *goerror.Error
		if errors.As(err, &gerr) {
			status = gerr.StatusCode()
		}
		http.Error(w, err.Error(), status)
		return
	}
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		slog.ErrorContext(ctx, "failed to send response connected", "error", err)
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		// heartbeat ping, so proxies won’t drop idle connections.
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case snap, ok := <-stream:
			if !ok {
				if _, err := fmt.Fprint(w, "event: closed\ndata: {}\n\n"); err == nil {
					flusher.Flush()
				}
				return
			}
			payload, err := json.Marshal(toSessionResponse(&snap))
			if err != nil {
				slog.ErrorContext(ctx, "failed to marshal data", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: session\ndata: %s\n\n", payload); err != nil {
				slog.ErrorContext(ctx, "failed to send response data", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
