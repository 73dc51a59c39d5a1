// Package httpx is the request-handling surface of sluice. It wraps an
// inbound request with once-only body consumption against a configured
// size limit, and hands handlers a Context with response helpers. The
// body is materialized into a pooled buffer exactly once per request;
// both the fresh-read API and the cached accessor are views over that
// single consumption.
package httpx
