// Package goroutine runs fire-and-forget work under a concurrency cap so a
// burst of background publishes cannot exhaust the process.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"go.uber.org/atomic"

	"github.com/otpgate/otpgate/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine multiplies NumCPU when NewManager gets a non-positive
// limit.
const DefaultMaxGoroutine int = 100

// Manager schedules tasks into goroutines, recovers their panics, collects
// their errors, and drains on Wait during shutdown.
type Manager struct {
	mu     sync.Mutex
	errs   []error
	wg     *sync.WaitGroup
	sema   chan struct{}
	closed *atomic.Bool
}

func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{
		wg:     &sync.WaitGroup{},
		sema:   make(chan struct{}, maxGoroutine),
		closed: atomic.NewBool(false),
	}
}

// Go runs f in a goroutine when a slot is free. A closed or saturated manager
// drops the task with a warning rather than blocking the caller; the work
// here is best-effort by contract.
func (g *Manager) Go(pCtx context.Context, f func(ctx context.Context) error) {
	if g == nil {
		return
	}

	if g.closed.Load() {
		slog.WarnContext(pCtx, "goroutine manager is closed, skipping new goroutine")
		return
	}

	select {
	case g.sema <- struct{}{}:
		g.wg.Go(func() {
			defer func() {
				<-g.sema

				if rvr := recover(); rvr != nil {
					stack := debug.Stack()
					if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
						slog.ErrorContext(pCtx, "panic occurred in goroutine", "stack", paths)
					} else {
						slog.ErrorContext(pCtx, "panic occurred in goroutine", "stack", string(stack))
					}
				}
			}()

			select {
			case <-pCtx.Done():
				slog.WarnContext(pCtx, "goroutine canceled", "because", pCtx.Err())
			default:
				if err := f(pCtx); err != nil {
					g.mu.Lock()
					g.errs = append(g.errs, err)
					g.mu.Unlock()
				}
			}
		})
	default:
		slog.WarnContext(pCtx, "maximum goroutine limit reached, failed to start new goroutine")
	}
}

// Wait closes the manager to new work, blocks for in-flight tasks, and
// returns their joined errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.closed.Store(true)
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
