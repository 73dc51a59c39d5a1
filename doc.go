// Package sluice is an embedded, non-blocking HTTP handling runtime.
//
// At its heart sits an asynchronous execution core: a promise-style
// continuation engine that schedules request-handling work across a
// fixed pool of event-loop workers (package exec). Around it, sluice
// provides once-only streaming request-body consumption with explicit
// buffer lifetime control (packages httpx and bytebuf) and a bridge
// turning periodically produced values into backpressure-aware streams
// (packages stream and metrics).
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│            Server                   │  transport boundary
//	│   (net/http in, responses out)      │  one Execution per request
//	└─────────────────────────────────────┘
//	           ↓ forks onto
//	┌─────────────────────────────────────┐
//	│         exec.Controller             │  event-loop worker pool
//	│  (Executions, Promises, blocking)   │  + unbounded blocking pool
//	└─────────────────────────────────────┘
//	           ↓ resumes
//	┌─────────────────────────────────────┐
//	│        Handler continuations        │  httpx.Context, body
//	│  (body promises, response writing)  │  promises, error routing
//	└─────────────────────────────────────┘
//
// Handlers never block an event-loop worker: blocking work runs on the
// blocking pool via exec.Blocking and its result is funneled back onto
// the owning execution, which preserves FIFO ordering and per-execution
// mutual exclusion.
//
// # Embedding
//
//	srv, err := sluice.New(
//		sluice.WithAddr("127.0.0.1:8080"),
//		sluice.WithMaxBodySize(9216),
//		sluice.Handle("/echo", func(c *httpx.Context) {
//			c.Request().Text().Then(func(_ context.Context, body string) {
//				c.SendString(body)
//			})
//		}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = srv.Run(ctx)
//
// For tests, package apptest starts a server on an ephemeral port and
// tears it down after the test body runs.
package sluice
