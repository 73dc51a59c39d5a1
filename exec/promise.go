package exec

import (
	"context"
	"sync"

	"github.com/casualjim/sluice/pkg/stdx"
)

type promiseState int32

const (
	statePending promiseState = iota
	stateFulfilled
	stateFailed
	stateAborted
)

// Promise is a lazily started, one-shot asynchronous computation bound
// to the Execution that created it. Registered continuations always run
// on the owning Execution, scheduled through its queue — never inline
// with the registering call, even when the promise is already resolved.
//
// A resolved promise buffers its result, so registering after
// resolution still delivers. Registrations on a promise whose execution
// has been abandoned are dropped without being invoked.
type Promise[T any] struct {
	exec *Execution
	op   func(*Fulfiller[T])

	mu      sync.Mutex
	started bool
	state   promiseState
	value   T
	err     error
	handler func(context.Context, error)
	sinks   []sink[T]
}

type sink[T any] struct {
	onSuccess func(context.Context, T)
	onError   func(context.Context, error)
	onAbort   func()
	release   func()
}

// Fulfiller resolves a promise exactly once. After the first Success or
// Error call, subsequent calls are silently ignored and the promise
// keeps its first terminal state.
type Fulfiller[T any] struct {
	p    *Promise[T]
	once sync.Once
}

// Success fulfills the promise with v.
func (f *Fulfiller[T]) Success(v T) {
	f.once.Do(func() { f.p.resolve(stateFulfilled, v, nil) })
}

// Error fails the promise with err.
func (f *Fulfiller[T]) Error(err error) {
	f.once.Do(func() { f.p.resolve(stateFailed, stdx.Zero[T](), err) })
}

// abort resolves the promise without a value or error; downstream
// registrations are released without being invoked. Used when an
// upstream error was consumed by an OnError handler.
func (f *Fulfiller[T]) abort() {
	f.once.Do(func() { f.p.resolve(stateAborted, stdx.Zero[T](), nil) })
}

// Of creates a promise on the current execution. The operation is not
// run until a continuation is registered; it then receives a Fulfiller
// and must eventually resolve it, from any goroutine.
func Of[T any](ctx context.Context, op func(*Fulfiller[T])) *Promise[T] {
	return &Promise[T]{exec: mustCurrent(ctx), op: op}
}

// Value creates an already-successful promise on the current execution.
func Value[T any](ctx context.Context, v T) *Promise[T] {
	return Of(ctx, func(f *Fulfiller[T]) { f.Success(v) })
}

// Err creates an already-failed promise on the current execution.
func Err[T any](ctx context.Context, err error) *Promise[T] {
	return Of(ctx, func(f *Fulfiller[T]) { f.Error(err) })
}

// Blocking runs fn on the controller's blocking pool once a
// continuation is registered, and funnels the result back onto the
// owning execution. It is the only sanctioned way to perform blocking
// work on the asynchronous path.
func Blocking[T any](ctx context.Context, fn func() (T, error)) *Promise[T] {
	e := mustCurrent(ctx)
	return Of(ctx, func(f *Fulfiller[T]) {
		e.ctrl.goBlocking(func() {
			v, err := fn()
			if err != nil {
				f.Error(err)
				return
			}
			f.Success(v)
		})
	})
}

// Then registers the terminal continuation. Errors reaching an
// unhandled Then are routed to the execution's error handler.
func (p *Promise[T]) Then(fn func(context.Context, T)) {
	e := p.exec
	e.retain()
	var once sync.Once
	p.subscribe(sink[T]{
		onSuccess: fn,
		onError:   func(_ context.Context, err error) { e.fault(err) },
		release:   func() { once.Do(e.release) },
	})
}

// Poll inspects the promise without registering a continuation. It
// reports the terminal value or error, with resolved false while the
// promise is pending or when it was abandoned unresolved.
func (p *Promise[T]) Poll() (v T, err error, resolved bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case stateFulfilled:
		return p.value, nil, true
	case stateFailed:
		return stdx.Zero[T](), p.err, true
	default:
		return stdx.Zero[T](), nil, false
	}
}

// OnError attaches an error handler to this promise. An error reaching
// it is consumed: success-path continuations registered downstream are
// dropped, and the error does not propagate further.
func (p *Promise[T]) OnError(h func(context.Context, error)) *Promise[T] {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
	return p
}

// Map derives a promise whose value is fn applied to p's result. An
// error from fn fails the derived promise.
func Map[T, U any](p *Promise[T], fn func(T) (U, error)) *Promise[U] {
	d := &Promise[U]{exec: p.exec}
	d.op = func(f *Fulfiller[U]) {
		p.subscribe(sink[T]{
			onSuccess: func(_ context.Context, v T) {
				u, err := fn(v)
				if err != nil {
					f.Error(err)
					return
				}
				f.Success(u)
			},
			onError: func(_ context.Context, err error) { f.Error(err) },
			onAbort: f.abort,
		})
	}
	return d
}

// FlatMap derives a promise from an asynchronous transformation of p's
// result. The returned promise is bound to the same execution.
func FlatMap[T, U any](p *Promise[T], fn func(context.Context, T) *Promise[U]) *Promise[U] {
	d := &Promise[U]{exec: p.exec}
	d.op = func(f *Fulfiller[U]) {
		p.subscribe(sink[T]{
			onSuccess: func(ctx context.Context, v T) {
				next := fn(ctx, v)
				next.subscribe(sink[U]{
					onSuccess: func(_ context.Context, u U) { f.Success(u) },
					onError:   func(_ context.Context, err error) { f.Error(err) },
					onAbort:   f.abort,
				})
			},
			onError: func(_ context.Context, err error) { f.Error(err) },
			onAbort: f.abort,
		})
	}
	return d
}

// subscribe registers a sink and starts the operation on first
// registration. If the promise carries an OnError handler, the sink's
// error path is replaced by it and the rest of the chain is aborted
// after the handler runs.
func (p *Promise[T]) subscribe(s sink[T]) {
	p.mu.Lock()
	if p.handler != nil {
		h := p.handler
		abort := s.onAbort
		s.onError = func(ctx context.Context, err error) {
			h(ctx, err)
			if abort != nil {
				abort()
			}
		}
	}

	start := !p.started && p.op != nil
	p.started = true

	if p.state == statePending {
		p.sinks = append(p.sinks, s)
		p.mu.Unlock()
		if start {
			op := p.op
			p.exec.Add(func(context.Context) { op(&Fulfiller[T]{p: p}) })
		}
		return
	}
	p.mu.Unlock()
	p.dispatch(s)
}

func (p *Promise[T]) resolve(st promiseState, v T, err error) {
	p.mu.Lock()
	if p.state != statePending {
		p.mu.Unlock()
		return
	}
	p.state, p.value, p.err = st, v, err
	sinks := p.sinks
	p.sinks = nil
	p.mu.Unlock()

	for _, s := range sinks {
		p.dispatch(s)
	}
}

// dispatch schedules delivery of the resolved result to one sink on the
// owning execution.
func (p *Promise[T]) dispatch(s sink[T]) {
	switch p.state {
	case stateFulfilled:
		p.exec.Add(func(ctx context.Context) { s.onSuccess(ctx, p.value) })
	case stateFailed:
		p.exec.Add(func(ctx context.Context) { s.onError(ctx, p.err) })
	case stateAborted:
		if s.onAbort != nil {
			s.onAbort()
		}
	case statePending:
		// unreachable: dispatch is only called on resolved promises
	}
	if s.release != nil {
		s.release()
	}
}
