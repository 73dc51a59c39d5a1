package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/casualjim/sluice/exec"
	"github.com/casualjim/sluice/pkg/slogx"
)

// Handler processes one request on its execution's event-loop worker.
// Handlers must not block; blocking work goes through exec.Blocking and
// the response is written from the registered continuation.
type Handler func(*Context)

// Context is the per-request view handed to handlers.
type Context struct {
	execution *exec.Execution
	request   *Request
	w         *ResponseWriter
	log       *slog.Logger
}

// NewContext assembles the handler context for one forked request. It
// wires the execution's error handler so uncaught errors produce a
// status-mapped response instead of tearing the connection down
// silently.
func NewContext(ctx context.Context, w *ResponseWriter, r *http.Request, maxBodySize int64, log *slog.Logger) *Context {
	e, ok := exec.Current(ctx)
	if !ok {
		panic("httpx: context does not carry an execution")
	}
	c := &Context{
		execution: e,
		request:   newRequest(r, e, maxBodySize),
		w:         w,
		log:       log,
	}
	e.OnError(func(_ context.Context, err error) { c.Error(err) })
	return c
}

// Execution returns the execution serving this request.
func (c *Context) Execution() *exec.Execution { return c.execution }

// Context returns the continuation context, for creating promises.
func (c *Context) Context() context.Context { return c.execution.Context() }

// Request returns the inbound request view.
func (c *Context) Request() *Request { return c.request }

// Response returns the response writer.
func (c *Context) Response() *ResponseWriter { return c.w }

// SendString writes s as text/plain.
func (c *Context) SendString(s string) {
	c.SendBytes("text/plain; charset=utf-8", []byte(s))
}

// SendBytes writes b with the given content type.
func (c *Context) SendBytes(contentType string, b []byte) {
	c.w.Header().Set("Content-Type", contentType)
	if _, err := c.w.Write(b); err != nil {
		c.log.Warn("writing response", slogx.Error(err))
	}
}

// SendJSON marshals v and writes it as application/json.
func (c *Context) SendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.Error(err)
		return
	}
	c.SendBytes("application/json", b)
}

// SendStatus writes a bare status code.
func (c *Context) SendStatus(status int) {
	c.w.WriteHeader(status)
}

// Error answers the request with the status the error kind maps to:
// 413 for a body size-limit failure, 500 otherwise. The distinction is
// carried by the error types; callers needing a different mapping can
// register their own execution error handler.
func (c *Context) Error(err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	c.log.Error("request failed",
		slog.String("method", c.request.Method()),
		slog.String("path", c.request.Path()),
		slog.Int("status", status),
		slogx.Error(err))
	if !c.w.Written() {
		http.Error(c.w, http.StatusText(status), status)
	}
}
