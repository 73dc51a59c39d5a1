// Package exec is the asynchronous execution core of sluice.
//
// A Controller owns a fixed pool of event-loop workers and a separate,
// unbounded pool for blocking calls. Units of work are modeled as
// Executions: each one carries a FIFO queue of continuations and a
// small keyed registry, and at most one worker drains a given
// Execution's queue at any instant. Promises are lazily started,
// one-shot asynchronous computations bound to the Execution that
// created them; fulfilling a Promise from any goroutine funnels the
// registered continuation back onto the owning Execution.
//
// Nothing in this package may block an event-loop worker. Blocking
// operations go through Blocking, which runs them on the controller's
// blocking pool and resumes the continuation on an event-loop worker.
package exec
