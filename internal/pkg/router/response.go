package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shandysiswandi/phoneauth/internal/pkg/goerror"
	"github.com/shandysiswandi/phoneauth/internal/pkg/validator"
)

type errorResponse struct {
	Message string            `json:"message" example:"Validation error"`
	Error   map[string]string `json:"error,omitempty"`
}

type successResponse struct {
	Message string         `json:"message" example:"Session created"`
	Data    any            `json:"data" swaggertype:"object"`
	Meta    map[string]any `json:"meta,omitempty" swaggertype:"object"`
}

// Handler results may implement these to shape the success envelope.
type (
	statusCoder interface{ StatusCode() int }
	messenger   interface{ Message() string }
	metaer      interface{ Meta() map[string]any }
)

const defaultSuccessMessage = "request has been successfully"

// writeError renders err. Anything that is not a *goerror.Error is a 500
// with a generic message.
func writeError(w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	body := errorResponse{Message: gerr.Msg()}
	var verr validator.V10ValidationError
	switch {
	case errors.As(err, &verr):
		body.Error = verr.Values()
	case len(gerr.Fields()) > 0:
		body.Error = gerr.Fields()
	}
	writeJSON(w, body, gerr.StatusCode())
}

// writeOK wraps resp in the success envelope. A nil resp or a 204 status
// writes no body.
func writeOK(w http.ResponseWriter, resp any) {
	status := http.StatusOK
	if sc, ok := resp.(statusCoder); ok {
		status = sc.StatusCode()
	}
	if resp == nil || status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body := successResponse{Message: defaultSuccessMessage, Data: resp}
	if m, ok := resp.(messenger); ok {
		body.Message = m.Message()
	}
	if m, ok := resp.(metaer); ok {
		body.Meta = m.Meta()
	}
	writeJSON(w, body, status)
}

func writeJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("router: encode response", "status", status, "error", err)
	}
}
