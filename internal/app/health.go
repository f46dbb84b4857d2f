package app

import (
	"context"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/goerror"
	"github.com/shandysiswandi/phoneauth/internal/pkg/router"
)

type healthResponse struct {
	Status     string `json:"status"`
	Redis      string `json:"redis"`
	Goroutines int64  `json:"goroutines"`
}

// health reports liveness plus the redis connection when redis is enabled.
func (a *App) health(r *router.Request) (any, error) {
	resp := healthResponse{Status: "ok", Redis: "disabled", Goroutines: a.goroutine.Active()}
	if a.cacheConn == nil {
		return resp, nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.cacheConn.Ping(ctx).Err(); err != nil {
		return nil, goerror.NewBusiness("redis unavailable", goerror.CodeUnavailable, goerror.WithCause(err))
	}
	resp.Redis = "ok"

	return resp, nil
}
