package httpx

import (
	"net/http"
	"sync"
)

// ResponseWriter serializes writes to the transport's response and can
// be sealed once the transport goroutine is about to return, turning
// continuations still mid-flight on abandoned executions into no-ops
// instead of use-after-return races.
type ResponseWriter struct {
	mu          sync.Mutex
	w           http.ResponseWriter
	sealed      bool
	wroteHeader bool
	status      int
}

// WrapResponseWriter adapts the transport's writer.
func WrapResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{w: w}
}

// Header returns the header map that will be sent.
func (rw *ResponseWriter) Header() http.Header {
	return rw.w.Header()
}

// WriteHeader sends the status code once; later calls are ignored.
func (rw *ResponseWriter) WriteHeader(status int) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.sealed || rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.status = status
	rw.w.WriteHeader(status)
}

// Write sends body bytes, implying a 200 status if none was written.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.sealed {
		return len(b), nil
	}
	if !rw.wroteHeader {
		rw.wroteHeader = true
		rw.status = http.StatusOK
	}
	return rw.w.Write(b)
}

// Seal detaches the writer from the transport. Subsequent writes are
// silently discarded.
func (rw *ResponseWriter) Seal() {
	rw.mu.Lock()
	rw.sealed = true
	rw.mu.Unlock()
}

// Written reports whether a status line has been committed.
func (rw *ResponseWriter) Written() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.wroteHeader
}

// Status returns the committed status code, or zero if none yet.
func (rw *ResponseWriter) Status() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.status
}
