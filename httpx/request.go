package httpx

import (
	"io"
	"net/http"
	"sync/atomic"

	"github.com/casualjim/sluice/bytebuf"
	"github.com/casualjim/sluice/exec"
)

// DefaultMaxBodySize bounds body accumulation when no limit is
// configured.
const DefaultMaxBodySize int64 = 1 << 20

type (
	bodyKey        struct{}
	bodyCleanupKey struct{}
)

// bodyGuard releases the materialized body buffer during
// end-of-request registry cleanup. Releasing twice is a no-op, so a
// handler that released early costs nothing here.
type bodyGuard struct {
	p *exec.Promise[*bytebuf.Buffer]
}

func (g *bodyGuard) Close() error {
	if b, _, ok := g.p.Poll(); ok && b != nil {
		b.Release()
	}
	return nil
}

// Request is the inbound-request view handed to handlers. Its body can
// be materialized at most once; the resulting promise is cached in the
// owning execution's registry so repeated lookups are idempotent.
type Request struct {
	raw         *http.Request
	execution   *exec.Execution
	maxBodySize int64
	committed   atomic.Bool
}

func newRequest(r *http.Request, e *exec.Execution, maxBodySize int64) *Request {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &Request{raw: r, execution: e, maxBodySize: maxBodySize}
}

// Raw exposes the underlying transport request.
func (r *Request) Raw() *http.Request { return r.raw }

// Method returns the request method.
func (r *Request) Method() string { return r.raw.Method }

// Path returns the request URL path.
func (r *Request) Path() string { return r.raw.URL.Path }

// Header returns the request headers.
func (r *Request) Header() http.Header { return r.raw.Header }

// Body returns a promise of the request body. The first call commits
// the stream; subsequent calls return the same cached promise, not a
// second consumption of the wire. The buffer is released at
// end-of-request unless the handler released it earlier.
func (r *Request) Body() *exec.Promise[*bytebuf.Buffer] {
	if v, ok := r.execution.Get(bodyKey{}); ok {
		return v.(*exec.Promise[*bytebuf.Buffer])
	}
	return r.Read()
}

// Read initiates a fresh read of the body stream. Unlike Body, which
// happily returns the cached consumption, a second Read is a protocol
// misuse: its promise fails with ErrAlreadyRead immediately, without
// touching the accumulated state, while the first read's result is
// unaffected.
func (r *Request) Read() *exec.Promise[*bytebuf.Buffer] {
	if !r.committed.CompareAndSwap(false, true) {
		return exec.Err[*bytebuf.Buffer](r.execution.Context(), ErrAlreadyRead)
	}
	p := exec.Blocking(r.execution.Context(), r.consume)
	r.execution.Put(bodyKey{}, p)
	r.execution.Put(bodyCleanupKey{}, &bodyGuard{p: p})
	return p
}

// Text returns the body materialized as a string. The underlying
// buffer stays cached; end-of-request cleanup releases it.
func (r *Request) Text() *exec.Promise[string] {
	return exec.Map(r.Body(), func(b *bytebuf.Buffer) (string, error) {
		return b.String(), nil
	})
}

// consume runs on the blocking pool and accumulates the body stream up
// to the configured maximum. A request without a payload yields a
// zero-length buffer. Exceeding the maximum discards the accumulated
// bytes and fails with a TooLargeError.
func (r *Request) consume() (*bytebuf.Buffer, error) {
	body := r.raw.Body
	if body == nil || body == http.NoBody {
		return bytebuf.Wrap(nil), nil
	}
	defer body.Close()

	buf := bytebuf.Get(int(min(r.maxBodySize, int64(8192))))
	n, err := buf.ReadFrom(io.LimitReader(body, r.maxBodySize+1))
	if err != nil {
		buf.Release()
		return nil, err
	}
	if n > r.maxBodySize {
		buf.Release()
		return nil, &TooLargeError{Limit: r.maxBodySize}
	}
	return buf, nil
}
