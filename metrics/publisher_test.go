package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/sluice/stream"
)

type stubScheduler struct {
	mu sync.Mutex
	fn func()
}

func (s *stubScheduler) Schedule(_ time.Duration, fn func()) (stop func()) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
	return func() {}
}

func (s *stubScheduler) fire() {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type snapshotSubscriber struct {
	mu    sync.Mutex
	sub   stream.Subscription
	snaps []Snapshot
	errs  []error
}

func (s *snapshotSubscriber) OnSubscribe(sub stream.Subscription) {
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}

func (s *snapshotSubscriber) OnNext(v Snapshot) {
	s.mu.Lock()
	s.snaps = append(s.snaps, v)
	s.mu.Unlock()
}

func (s *snapshotSubscriber) OnError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *snapshotSubscriber) OnComplete() {}

func TestPublisherEmitsSnapshotsOnDemand(t *testing.T) {
	reg := NewRegistry()
	sched := &stubScheduler{}
	pub := NewPublisher(sched, reg, time.Second)

	rec := &snapshotSubscriber{}
	pub.Subscribe(rec)
	require.NotNil(t, rec.sub)

	reg.Counter("requests").Inc()
	rec.sub.Request(2)
	sched.fire()

	reg.Counter("requests").Inc()
	sched.fire()

	// demand exhausted: this tick is dropped
	sched.fire()

	require.Len(t, rec.snaps, 2)
	assert.Empty(t, rec.errs)
	assert.Equal(t, int64(1), rec.snaps[0].Counters["requests"])
	assert.Equal(t, int64(2), rec.snaps[1].Counters["requests"])
}

func TestPublisherSingleSubscriber(t *testing.T) {
	reg := NewRegistry()
	sched := &stubScheduler{}
	pub := NewPublisher(sched, reg, time.Second)

	first := &snapshotSubscriber{}
	pub.Subscribe(first)

	second := &snapshotSubscriber{}
	pub.Subscribe(second)

	require.Len(t, second.errs, 1)
	assert.ErrorIs(t, second.errs[0], stream.ErrAlreadySubscribed)
}

func TestPublisherCancelThenResubscribe(t *testing.T) {
	reg := NewRegistry()
	sched := &stubScheduler{}
	pub := NewPublisher(sched, reg, time.Second)

	first := &snapshotSubscriber{}
	pub.Subscribe(first)
	first.sub.Cancel()

	second := &snapshotSubscriber{}
	pub.Subscribe(second)
	second.sub.Request(1)
	sched.fire()

	assert.Empty(t, first.snaps)
	require.Len(t, second.snaps, 1)
}
