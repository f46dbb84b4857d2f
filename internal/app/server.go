package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// listener is one of the HTTP servers the app owns.
type listener struct {
	name string
	srv  *http.Server
}

// Start serves every listener in the background. The returned channel is
// closed once SIGINT, SIGTERM or SIGHUP arrives; module goroutines see their
// context canceled at the same moment.
func (a *App) Start() <-chan struct{} {
	for _, l := range a.listeners {
		go a.serve(l)
	}

	done := make(chan struct{})
	go func() {
		ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer stop()

		<-ctx.Done()
		a.cancel()
		slog.Info("termination signal received, shutting down")
		close(done)
	}()

	return done
}

func (a *App) serve(l listener) {
	slog.Info("server listening", "name", l.name, "address", l.srv.Addr)

	err := l.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return
	}
	slog.Error("server stopped unexpectedly", "name", l.name, "error", err)
	os.Exit(1)
}

// Stop drains the listeners, waits for background work and then releases
// resources in reverse registration order.
func (a *App) Stop(ctx context.Context) {
	a.cancel()

	for _, l := range a.listeners {
		if err := l.srv.Shutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to shutdown server", "name", l.name, "error", err)
		}
	}

	slog.InfoContext(ctx, "waiting for background goroutines", "active", a.goroutine.Active())
	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "background goroutine failed", "error", err)
	}

	a.closeAll(ctx)
	slog.InfoContext(ctx, "shutdown complete")
}
