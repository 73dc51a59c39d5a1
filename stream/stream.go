// Package stream holds sluice's minimal reactive-stream contract and
// the periodic publisher that bridges a recurring pull-based value
// source into a push-based stream with subscriber-driven backpressure.
package stream

import (
	"errors"
	"time"
)

var (
	// ErrAlreadySubscribed rejects a subscriber while another
	// subscription is active on a single-subscriber publisher.
	ErrAlreadySubscribed = errors.New("stream: publisher already has an active subscriber")

	// ErrInvalidDemand terminates a subscription whose subscriber
	// requested a non-positive number of items.
	ErrInvalidDemand = errors.New("stream: requested demand must be positive")
)

// Publisher produces a potentially unbounded sequence of values for a
// Subscriber.
type Publisher[T any] interface {
	Subscribe(Subscriber[T])
}

// Subscriber consumes values from a Publisher. OnSubscribe is invoked
// before anything else; no value is delivered until the subscriber has
// signaled demand through the subscription.
type Subscriber[T any] interface {
	OnSubscribe(Subscription)
	OnNext(T)
	OnError(error)
	OnComplete()
}

// Subscription links one Subscriber to one Publisher.
type Subscription interface {
	// Request signals that the subscriber can accept n more items.
	Request(n int64)
	// Cancel stops the subscription; no further signals are delivered.
	Cancel()
}

// Scheduler provides repeating-timer scheduling. *exec.Controller
// satisfies it.
type Scheduler interface {
	Schedule(period time.Duration, fn func()) (stop func())
}

// deadSubscription is handed to rejected subscribers so they receive a
// well-formed OnSubscribe before the terminal OnError.
type deadSubscription struct{}

func (deadSubscription) Request(int64) {}
func (deadSubscription) Cancel()       {}
