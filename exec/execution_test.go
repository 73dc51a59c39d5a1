package exec

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecutionFIFOOrder(t *testing.T) {
	ctrl := newTestController(t)

	var order []int
	e := ctrl.Fork(func(ctx context.Context) {
		ex, ok := Current(ctx)
		if !ok {
			t.Error("continuation context does not carry an execution")
			return
		}
		order = append(order, 0)
		for i := 1; i <= 5; i++ {
			n := i
			ex.Add(func(context.Context) { order = append(order, n) })
		}
	})

	<-e.Done()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, order)
}

func TestExecutionMutualExclusion(t *testing.T) {
	ctrl := newTestController(t)

	var (
		inside     atomic.Int32
		violations atomic.Int32
		executed   atomic.Int32
	)

	started := make(chan struct{})
	e := ctrl.Fork(func(ctx context.Context) {
		ex, _ := Current(ctx)
		ex.retain() // keep the execution alive while other goroutines enqueue
		close(started)
	})
	<-started

	const producers, perProducer = 25, 20
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				e.Add(func(context.Context) {
					if inside.Add(1) != 1 {
						violations.Add(1)
					}
					time.Sleep(50 * time.Microsecond)
					inside.Add(-1)
					executed.Add(1)
				})
			}
		}()
	}
	wg.Wait()
	e.release()

	select {
	case <-e.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("execution never finished")
	}
	assert.Zero(t, violations.Load(), "continuations of one execution must never overlap")
	assert.Equal(t, int32(producers*perProducer), executed.Load())
}

type orderedCloser struct {
	name  string
	order *[]string
}

func (c *orderedCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return nil
}

func TestExecutionRegistryCleanupOrder(t *testing.T) {
	ctrl := newTestController(t)

	var closed []string
	e := ctrl.Fork(func(ctx context.Context) {
		ex, _ := Current(ctx)
		ex.Put("a", &orderedCloser{name: "a", order: &closed})
		ex.Put("b", &orderedCloser{name: "b", order: &closed})
		ex.Put("plain", 42) // not a closer, skipped
		ex.Put("c", &orderedCloser{name: "c", order: &closed})
	})

	<-e.Done()
	assert.Equal(t, []string{"a", "b", "c"}, closed)
}

func TestExecutionRegistryLookup(t *testing.T) {
	ctrl := newTestController(t)

	type key struct{}
	got := make(chan any, 1)
	e := ctrl.Fork(func(ctx context.Context) {
		ex, _ := Current(ctx)
		ex.Put(key{}, "request-scoped")
		v, ok := ex.Get(key{})
		if !ok {
			t.Error("registry lookup missed")
			return
		}
		got <- v
	})

	<-e.Done()
	assert.Equal(t, "request-scoped", <-got)
}

func TestExecutionAbandonDropsQueued(t *testing.T) {
	ctrl := newTestController(t)

	var executed atomic.Bool
	started := make(chan struct{})
	release := make(chan struct{})
	e := ctrl.Fork(func(context.Context) {
		close(started)
		<-release // hold the drain so additions stay queued
	})

	<-started
	e.Add(func(context.Context) { executed.Store(true) })
	e.Abandon()
	close(release)

	<-e.Done()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, executed.Load(), "queued continuations must be dropped on abandon")

	// additions after teardown are dropped too
	e.Add(func(context.Context) { executed.Store(true) })
	time.Sleep(20 * time.Millisecond)
	assert.False(t, executed.Load())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestExecutionAbandonWaitsForInFlightContinuation(t *testing.T) {
	ctrl := newTestController(t)

	var (
		mutating   atomic.Bool
		closedMid  atomic.Bool
		sawCleanup atomic.Bool
	)
	started := make(chan struct{})
	e := ctrl.Fork(func(ctx context.Context) {
		ex, _ := Current(ctx)
		ex.Put("sentinel", closerFunc(func() error {
			sawCleanup.Store(true)
			if mutating.Load() {
				closedMid.Store(true)
			}
			return nil
		}))
		mutating.Store(true)
		close(started)
		// keep mutating the registry so a teardown racing this
		// continuation has something to collide with
		for i := 0; i < 200_000; i++ {
			ex.Put(i, i)
		}
		mutating.Store(false)
	})

	<-started
	e.Abandon()

	<-e.Done()
	assert.True(t, sawCleanup.Load(), "registry cleanup must still run")
	assert.False(t, closedMid.Load(),
		"registry cleanup must wait for the in-flight continuation to return")
}

func TestExecutionFaultRoutedToHandler(t *testing.T) {
	ctrl := newTestController(t)

	errs := make(chan error, 1)
	e := ctrl.Fork(func(ctx context.Context) {
		ex, _ := Current(ctx)
		ex.OnError(func(_ context.Context, err error) { errs <- err })
		panic(errors.New("boom"))
	})

	select {
	case err := <-errs:
		assert.EqualError(t, err, "boom")
	case <-time.After(time.Second):
		t.Fatal("fault never reached the handler")
	}
	<-e.Done()
}

func TestExecutionFaultWithoutHandlerAbandons(t *testing.T) {
	ctrl := newTestController(t)

	var after atomic.Bool
	e := ctrl.Fork(func(ctx context.Context) {
		ex, _ := Current(ctx)
		ex.Add(func(context.Context) { after.Store(true) })
		panic("kaput")
	})

	<-e.Done()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, after.Load(), "continuations queued behind a fault must not run")
}

func TestExecutionFaultIsolation(t *testing.T) {
	ctrl := newTestController(t)

	healthy := make(chan struct{})
	bad := ctrl.Fork(func(context.Context) { panic("one bad apple") })
	good := ctrl.Fork(func(context.Context) { close(healthy) })

	select {
	case <-healthy:
	case <-time.After(time.Second):
		t.Fatal("sibling execution was affected by a fault")
	}
	<-bad.Done()
	<-good.Done()
}
