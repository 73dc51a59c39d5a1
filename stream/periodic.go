package stream

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	subActive int32 = iota
	subCancelled
	subFailed
)

// Periodic adapts a zero-argument value source into a Publisher by
// sampling it on a fixed period. It supports exactly one subscriber at
// a time; a tick that finds no outstanding demand is skipped rather
// than buffered (sample-and-drop). The stream is unbounded: it only
// terminates when the subscriber cancels or the source fails.
type Periodic[T any] struct {
	sched  Scheduler
	period time.Duration
	source func() (T, error)

	mu     sync.Mutex
	active *periodicSubscription[T]
}

// NewPeriodic builds a periodic publisher from a scheduler, a period
// and a value source. The timer is only armed while a subscription
// exists; a fresh subscription after cancellation arms a fresh timer
// with demand renegotiated from zero.
func NewPeriodic[T any](sched Scheduler, period time.Duration, source func() (T, error)) *Periodic[T] {
	return &Periodic[T]{sched: sched, period: period, source: source}
}

// Subscribe attaches s. A second subscriber while one is active is
// rejected with ErrAlreadySubscribed rather than silently replacing it.
func (p *Periodic[T]) Subscribe(s Subscriber[T]) {
	p.mu.Lock()
	if p.active != nil {
		p.mu.Unlock()
		s.OnSubscribe(deadSubscription{})
		s.OnError(ErrAlreadySubscribed)
		return
	}
	sub := &periodicSubscription[T]{parent: p, sub: s}
	p.active = sub
	p.mu.Unlock()

	// Arm the timer before OnSubscribe: demand is zero until the
	// subscriber requests, so no tick can emit early.
	sub.setStop(p.sched.Schedule(p.period, sub.tick))
	s.OnSubscribe(sub)
}

func (p *Periodic[T]) clear(sub *periodicSubscription[T]) {
	p.mu.Lock()
	if p.active == sub {
		p.active = nil
	}
	p.mu.Unlock()
}

type periodicSubscription[T any] struct {
	parent *Periodic[T]
	sub    Subscriber[T]
	demand atomic.Int64
	state  atomic.Int32

	stopMu  sync.Mutex
	stop    func()
	stopped bool

	halted sync.Once
}

// setStop installs the timer's stop function. If the subscription was
// already halted, for example by a source failure on the very first
// tick, the timer is stopped on the spot.
func (s *periodicSubscription[T]) setStop(stop func()) {
	s.stopMu.Lock()
	if s.stopped {
		s.stopMu.Unlock()
		stop()
		return
	}
	s.stop = stop
	s.stopMu.Unlock()
}

// Request adds n to the outstanding demand, saturating at the maximum.
func (s *periodicSubscription[T]) Request(n int64) {
	if n <= 0 {
		if s.state.CompareAndSwap(subActive, subFailed) {
			s.halt()
			s.sub.OnError(ErrInvalidDemand)
		}
		return
	}
	for {
		cur := s.demand.Load()
		next := cur + n
		if next < cur {
			next = math.MaxInt64
		}
		if s.demand.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Cancel stops the underlying timer; no further ticks occur.
func (s *periodicSubscription[T]) Cancel() {
	if s.state.CompareAndSwap(subActive, subCancelled) {
		s.halt()
	}
}

// tick runs on the scheduler's timer goroutine, once per period.
func (s *periodicSubscription[T]) tick() {
	if s.state.Load() != subActive {
		return
	}
	if !s.take() {
		return
	}
	v, err := s.parent.source()
	if err != nil {
		if s.state.CompareAndSwap(subActive, subFailed) {
			s.halt()
			s.sub.OnError(err)
		}
		return
	}
	if s.state.Load() != subActive {
		return
	}
	s.sub.OnNext(v)
}

// take claims one unit of demand, reporting false when none is
// outstanding. Ticks without demand are dropped, not queued.
func (s *periodicSubscription[T]) take() bool {
	for {
		cur := s.demand.Load()
		if cur == 0 {
			return false
		}
		if s.demand.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

func (s *periodicSubscription[T]) halt() {
	s.halted.Do(func() {
		s.stopMu.Lock()
		s.stopped = true
		stop := s.stop
		s.stopMu.Unlock()
		if stop != nil {
			stop()
		}
		s.parent.clear(s)
	})
}
