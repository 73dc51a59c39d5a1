package exec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/casualjim/sluice/pkg/slogx"
	"github.com/casualjim/sluice/pkg/uuidx"
)

// Continuation is a unit of work scheduled on an Execution. The context
// it receives carries the owning Execution (see Current).
type Continuation func(context.Context)

// Execution is a single logical unit of continuation-based work, such
// as one inbound request. Continuations added to it run in FIFO order
// and never concurrently with each other.
type Execution struct {
	id   uuid.UUID
	ctrl *Controller
	ctx  context.Context

	mu            sync.Mutex
	queue         *queue.Queue
	registry      *orderedmap.OrderedMap[any, any]
	scheduled     bool
	suspended     int
	done          bool
	invoking      bool
	pendingFinish bool
	onError       func(context.Context, error)

	finished sync.Once
	doneCh   chan struct{}
}

func newExecution(ctrl *Controller) *Execution {
	e := &Execution{
		id:       uuidx.New(),
		ctrl:     ctrl,
		queue:    queue.New(),
		registry: orderedmap.New[any, any](),
		doneCh:   make(chan struct{}),
	}
	e.ctx = context.WithValue(context.Background(), ctxKey{}, e)
	return e
}

// ID returns the execution's identity.
func (e *Execution) ID() uuid.UUID { return e.id }

// Context returns the context continuations of this execution run with.
func (e *Execution) Context() context.Context { return e.ctx }

// Done is closed once the execution has finished, either by draining
// its queue with no outstanding promises or by being abandoned.
func (e *Execution) Done() <-chan struct{} { return e.doneCh }

// OnError registers the handler uncaught errors are routed to. Without
// one, faults are logged and the execution is abandoned.
func (e *Execution) OnError(h func(context.Context, error)) {
	e.mu.Lock()
	e.onError = h
	e.mu.Unlock()
}

// Put stores an execution-scoped value. The registry is only ever
// touched by this execution's own continuations, which the drain loop
// already serializes.
func (e *Execution) Put(key, value any) {
	e.registry.Set(key, value)
}

// Get looks up an execution-scoped value.
func (e *Execution) Get(key any) (any, bool) {
	return e.registry.Get(key)
}

// Add appends a continuation to this execution's queue. If the
// execution is idle, a drain is scheduled on an event-loop worker; if a
// drain is already queued or running, the continuation is picked up by
// it, preserving FIFO order. Continuations added to a finished
// execution are dropped, never invoked.
func (e *Execution) Add(c Continuation) {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		e.ctrl.log.Debug("dropping continuation for finished execution",
			slogx.ExecutionID(e.id))
		return
	}
	e.queue.Add(c)
	if e.scheduled {
		e.mu.Unlock()
		return
	}
	e.scheduled = true
	e.mu.Unlock()
	e.ctrl.submit(e.drain)
}

// drain runs queued continuations to completion until the queue is
// empty. It is only ever entered by one worker at a time.
func (e *Execution) drain() {
	for {
		e.mu.Lock()
		if e.done {
			e.scheduled = false
			e.mu.Unlock()
			return
		}
		if e.queue.Length() == 0 {
			e.scheduled = false
			complete := e.suspended == 0
			if complete {
				e.done = true
			}
			e.mu.Unlock()
			if complete {
				e.finish()
			}
			return
		}
		c := e.queue.Remove().(Continuation)
		e.invoking = true
		e.mu.Unlock()
		e.invoke(c)
		e.mu.Lock()
		e.invoking = false
		finishNow := e.pendingFinish
		e.pendingFinish = false
		e.mu.Unlock()
		if finishNow {
			e.finish()
		}
	}
}

func (e *Execution) invoke(c Continuation) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("recovered from panic: %v", r)
			}
			e.fault(err)
		}
	}()
	c(e.ctx)
}

// fault routes an uncaught error to the execution's error handler.
// Absent a handler the error is logged and the execution abandoned.
func (e *Execution) fault(err error) {
	e.mu.Lock()
	h := e.onError
	e.mu.Unlock()

	if h == nil {
		e.ctrl.log.Error("unhandled execution error",
			slogx.ExecutionID(e.id), slogx.Error(err))
		e.Abandon()
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.ctrl.log.Error("execution error handler panicked",
				slogx.ExecutionID(e.id), slog.Any("panic", r))
			e.Abandon()
		}
	}()
	h(e.ctx, err)
}

// Abandon tears the execution down: queued continuations are dropped,
// pending promise registrations are never invoked, and the registry is
// cleaned up. Work already mid-flight on a worker is not interrupted;
// registry cleanup waits until that continuation returns, since it is
// the only code allowed to touch the registry and its buffers.
func (e *Execution) Abandon() {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return
	}
	e.done = true
	dropped := e.queue.Length()
	for e.queue.Length() > 0 {
		e.queue.Remove()
	}
	finishNow := !e.invoking
	if !finishNow {
		e.pendingFinish = true
	}
	e.mu.Unlock()

	if dropped > 0 {
		e.ctrl.log.Debug("abandoning execution with queued continuations",
			slogx.ExecutionID(e.id), slog.Int("dropped", dropped))
	}
	if finishNow {
		e.finish()
	}
}

// retain marks an outstanding promise registration so the execution is
// not considered complete while its queue is momentarily empty.
func (e *Execution) retain() {
	e.mu.Lock()
	e.suspended++
	e.mu.Unlock()
}

func (e *Execution) release() {
	e.mu.Lock()
	e.suspended--
	complete := !e.done && e.suspended == 0 && e.queue.Length() == 0 && !e.scheduled
	if complete {
		e.done = true
	}
	e.mu.Unlock()
	if complete {
		e.finish()
	}
}

// finish closes registry values in insertion order and unregisters the
// execution from its controller.
func (e *Execution) finish() {
	e.finished.Do(func() {
		for pair := e.registry.Oldest(); pair != nil; pair = pair.Next() {
			c, ok := pair.Value.(io.Closer)
			if !ok {
				continue
			}
			if err := c.Close(); err != nil {
				e.ctrl.log.Warn("closing execution-scoped value",
					slogx.ExecutionID(e.id), slogx.Error(err))
			}
		}
		e.ctrl.executions.Del(e.id.String())
		close(e.doneCh)
	})
}
