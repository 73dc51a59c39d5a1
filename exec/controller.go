package exec

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"

	"github.com/casualjim/sluice/pkg/slogx"
)

// taskBacklog bounds the shared drain-task channel. Each live execution
// contributes at most one queued drain, so overflow only happens under
// extreme fan-out; overflowing drains run on their own goroutine.
const taskBacklog = 1024

var (
	// WithComputeWorkers sets the number of event-loop workers.
	// Defaults to twice the number of CPUs.
	WithComputeWorkers = opts.ForName[Controller, int]("computeWorkers")

	// WithLogger sets the logger the controller and its executions use.
	WithLogger = opts.ForName[Controller, *slog.Logger]("log")
)

// Controller owns the event-loop worker pool and the blocking pool, and
// creates and tracks Executions.
type Controller struct {
	computeWorkers int
	log            *slog.Logger

	tasks      chan func()
	executions *haxmap.Map[string, *Execution]
	closing    chan struct{}
	closed     atomic.Bool
	workers    sync.WaitGroup
	blocking   sync.WaitGroup
}

// NewController builds a controller and starts its event-loop workers.
func NewController(options ...opts.Option[Controller]) (*Controller, error) {
	c := &Controller{
		computeWorkers: runtime.NumCPU() * 2,
		log:            slog.Default(),
	}
	if err := opts.Apply(c, options); err != nil {
		return nil, err
	}
	if c.computeWorkers < 1 {
		c.computeWorkers = 1
	}

	c.tasks = make(chan func(), taskBacklog)
	c.executions = haxmap.New[string, *Execution]()
	c.closing = make(chan struct{})

	for i := 0; i < c.computeWorkers; i++ {
		c.workers.Add(1)
		go c.worker()
	}
	return c, nil
}

func (c *Controller) worker() {
	defer c.workers.Done()
	for {
		select {
		case task := <-c.tasks:
			task()
		case <-c.closing:
			return
		}
	}
}

// submit hands a drain task to the event-loop pool without ever
// blocking the caller.
func (c *Controller) submit(task func()) {
	select {
	case c.tasks <- task:
	default:
		go task()
	}
}

func (c *Controller) goBlocking(fn func()) {
	c.blocking.Add(1)
	go func() {
		defer c.blocking.Done()
		fn()
	}()
}

// Fork creates a new Execution with fn as its first continuation and
// schedules it onto an event-loop worker. It returns immediately.
func (c *Controller) Fork(fn Continuation) *Execution {
	e := newExecution(c)
	if c.closed.Load() {
		c.log.Warn("fork on closed controller", slogx.ExecutionID(e.id))
		e.Abandon()
		return e
	}
	c.executions.Set(e.id.String(), e)
	// Close may have flipped between the check above and the Set;
	// its drain loop could already have seen an empty map and stopped
	// the workers, so the execution must not be left schedulable.
	if c.closed.Load() {
		c.log.Warn("fork on closed controller", slogx.ExecutionID(e.id))
		e.Abandon()
		return e
	}
	c.log.Debug("forked execution", slogx.ExecutionID(e.id))
	e.Add(fn)
	return e
}

// Live reports the number of executions that have not finished yet.
func (c *Controller) Live() int {
	return int(c.executions.Len())
}

// Schedule invokes fn every period on a dedicated timer goroutine until
// the returned stop function is called or the controller closes. It is
// the raw repeating-timer primitive collaborators such as the periodic
// publisher build on; fn must not block an event-loop worker, and it
// never does: ticks never run on the compute pool.
func (c *Controller) Schedule(period time.Duration, fn func()) (stop func()) {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			case <-c.closing:
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

// Close stops accepting new work, waits for live executions to finish
// (bounded by ctx), then stops the worker pool.
func (c *Controller) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for c.executions.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}

	c.blocking.Wait()
	close(c.closing)
	c.workers.Wait()
	c.log.Debug("controller closed")
	return nil
}
