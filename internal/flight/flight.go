// Package flight collapses concurrent loads of one key into a single call.
//
// It layers per-caller cancellation over singleflight: a caller whose context
// ends stops waiting, but the shared call keeps running for everyone else. The
// call's own context is cancelled only once every caller has gone.
package flight

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Group is safe for concurrent use. The zero value is ready to use.
type Group struct {
	sf singleflight.Group

	mu    sync.Mutex
	calls map[string]*call
	seq   uint64
}

type call struct {
	id      string // singleflight key, unique per call
	ctx     context.Context
	cancel  context.CancelFunc
	fn      func() (any, error)
	waiters int
}

// PanicError carries a panic out of a shared call. Do re-panics with it in
// every waiting caller's goroutine, so a deferred recover in the caller sees it.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("flight: call panicked: %v\n\n%s", p.Value, p.Stack)
}

// Do runs fn once for all callers that arrive while a call for key is in flight.
// shared reports whether the result was delivered to more than one caller.
//
// fn receives a context that keeps the values of the first caller's ctx but not
// its deadline; it is cancelled when the last waiting caller leaves. If fn
// panics, every waiting caller panics with a *PanicError.
func (g *Group) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (v any, shared bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	c, ch := g.join(ctx, key, fn)

	select {
	case r := <-ch:
		g.leave(key, c)
		if pe, ok := r.Err.(*PanicError); ok {
			panic(pe)
		}
		return r.Val, r.Shared, r.Err
	case <-ctx.Done():
		g.leave(key, c)
		return nil, false, ctx.Err()
	}
}

// InFlight reports whether a call for key is currently running.
func (g *Group) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.calls[key]
	return ok
}

func (g *Group) join(ctx context.Context, key string, fn func(context.Context) (any, error)) (*call, <-chan singleflight.Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[string]*call)
	}

	c, ok := g.calls[key]
	if !ok {
		g.seq++
		cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{
			id:     key + "#" + strconv.FormatUint(g.seq, 10),
			ctx:    cctx,
			cancel: cancel,
		}
		c.fn = func() (v any, err error) {
			defer g.done(key, c)
			// singleflight re-panics on its own goroutine where nobody can recover
			defer func() {
				if r := recover(); r != nil {
					v, err = nil, &PanicError{Value: r, Stack: debug.Stack()}
				}
			}()
			return fn(c.ctx)
		}
		g.calls[key] = c
	}
	c.waiters++
	// Joining under g.mu guarantees the singleflight call for c.id is still
	// registered: done needs g.mu before fn can return. DoChan itself only
	// spawns the goroutine, so holding the lock here cannot deadlock.
	return c, g.sf.DoChan(c.id, c.fn)
}

// done detaches c so later arrivals start a fresh call.
func (g *Group) done(key string, c *call) {
	g.mu.Lock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
}

func (g *Group) leave(key string, c *call) {
	g.mu.Lock()
	c.waiters--
	last := c.waiters == 0
	if last && g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
	if last {
		c.cancel()
	}
}
