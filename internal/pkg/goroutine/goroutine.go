// Package goroutine runs background work under a shared concurrency cap and
// collects its errors for shutdown.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/phoneauth/internal/pkg/stacktrace"
	"go.uber.org/atomic"
)

// DefaultMaxGoroutine is multiplied by the CPU count when NewManager gets a
// non-positive limit.
const DefaultMaxGoroutine int = 100

// Manager bounds how many functions run at once. Once Wait is called no new
// function is accepted.
type Manager struct {
	mu     sync.Mutex
	closed bool
	errs   []error

	wg     sync.WaitGroup
	slots  chan struct{}
	active atomic.Int64
}

func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}
	return &Manager{slots: make(chan struct{}, maxGoroutine)}
}

// Go runs f in a new goroutine and reports whether it was scheduled. It
// refuses when the manager is closed or every slot is taken. A context that
// is already done by the time f would start skips f.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) bool {
	if g == nil {
		return false
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		slog.WarnContext(ctx, "goroutine manager closed, dropping task")
		return false
	}
	select {
	case g.slots <- struct{}{}:
	default:
		g.mu.Unlock()
		slog.WarnContext(ctx, "goroutine limit reached, dropping task", "limit", cap(g.slots))
		return false
	}
	g.wg.Add(1)
	g.active.Inc()
	g.mu.Unlock()

	go g.run(ctx, f)
	return true
}

func (g *Manager) run(ctx context.Context, f func(ctx context.Context) error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(ctx, "goroutine panicked", "because", rvr, "stack", stacktrace.Trim(debug.Stack()))
		}
		g.active.Dec()
		<-g.slots
		g.wg.Done()
	}()

	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "goroutine skipped, context done", "because", err)
		return
	}
	if err := f(ctx); err != nil {
		g.mu.Lock()
		g.errs = append(g.errs, err)
		g.mu.Unlock()
	}
}

// Active reports how many scheduled functions are still running.
func (g *Manager) Active() int64 {
	if g == nil {
		return 0
	}
	return g.active.Load()
}

// Wait closes the manager, blocks until every running function returns and
// joins their errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
