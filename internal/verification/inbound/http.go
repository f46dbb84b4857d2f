package inbound

import (
	"net/http"

	"github.com/shandysiswandi/phoneauth/internal/pkg/router"
)

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.GET("/api/v1/verification/providers", end.ListProviders)

	r.POST("/api/v1/verification/sessions", end.StartSession)
	r.GET("/api/v1/verification/sessions/:id", end.GetSession)
	r.POST("/api/v1/verification/sessions/:id/subject", end.SubmitSubject)
	r.POST("/api/v1/verification/sessions/:id/code", end.SubmitCode)
	r.POST("/api/v1/verification/sessions/:id/code/entry", end.EnterCode)
	r.POST("/api/v1/verification/sessions/:id/code/backspace", end.Backspace)
	r.POST("/api/v1/verification/sessions/:id/resend", end.Resend)
	r.POST("/api/v1/verification/sessions/:id/back", end.Back)
	r.POST("/api/v1/verification/sessions/:id/reset", end.Reset)

	r.GET("/api/v1/verification/identity", end.Identity)

	r.GETRaw("/api/v1/verification/sessions/:id/stream", http.HandlerFunc(end.StreamSession))
}
