package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrGroupShutdown is returned by work started after [Group.Shutdown].
var ErrGroupShutdown = errors.New("group is shut down")

// WorkFunc is the signature for grouped work.
type WorkFunc func(ctx context.Context) error

// Group runs queries concurrently with an optional concurrency limit.
type Group struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	sem      chan struct{}
	shutdown atomic.Bool
	errs     []error
}

// NewGroup creates a Group. If maxConcurrent <= 0, concurrency is
// unlimited.
func NewGroup(maxConcurrent int) *Group {
	g := &Group{}
	if maxConcurrent > 0 {
		g.sem = make(chan struct{}, maxConcurrent)
	}
	return g
}

// Wait blocks until all work in the group completes and returns every
// error joined.
func (g *Group) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	return errors.Join(g.errs...)
}

// Shutdown prevents work that has not yet started from running.
func (g *Group) Shutdown() {
	g.shutdown.Store(true)
}

// Go launches fn in a goroutine managed by the group.
func (g *Group) Go(ctx context.Context, fn WorkFunc) *Result {
	ctx, cancel := context.WithCancel(ctx)
	r := &Result{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	g.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			close(r.done)
			g.wg.Done()
		}()

		if g.sem != nil {
			select {
			case g.sem <- struct{}{}:
				defer func() {
					<-g.sem
				}()
			case <-ctx.Done():
				r.err = ctx.Err()
				g.recordErr(r.err)
				return
			}
		}

		if g.shutdown.Load() {
			r.err = ErrGroupShutdown
			g.recordErr(r.err)
			return
		}

		if r.err = fn(ctx); r.err != nil {
			g.recordErr(r.err)
		}
	}()

	return r
}

func (g *Group) recordErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs = append(g.errs, err)
}

// Prefetch runs opts in g and discards the value. Paired with [Cached] it
// warms the cache ahead of use.
func Prefetch[T any](ctx context.Context, g *Group, opts Options[T]) *Result {
	return g.Go(ctx, func(ctx context.Context) error {
		_, err := opts.Fn(ctx)
		return err
	})
}

// =============================================================================

// Result tracks one unit of grouped work.
type Result struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Done returns a channel that is closed when the work completes.
func (r *Result) Done() <-chan struct{} { return r.done }

// Err blocks until the work completes and returns its error.
func (r *Result) Err() error {
	<-r.done
	return r.err
}

// Cancel cancels the work's context.
func (r *Result) Cancel() {
	r.cancel()
}
