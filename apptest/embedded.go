// Package apptest provides an embedded-application harness for
// exercising a sluice server over real HTTP: start on an ephemeral
// port, resolve URLs against it, make requests, tear everything down.
package apptest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fogfish/opts"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"

	"github.com/casualjim/sluice"
	"github.com/casualjim/sluice/httpx"
	"github.com/casualjim/sluice/pkg/stdx"
)

// Logger builds the harness logger: zerolog console output surfaced
// through slog, warnings and up.
func Logger() *slog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	zl := zerolog.New(out).With().Timestamp().Logger()
	return slog.New(zeroslog.NewHandler(zl, &zeroslog.HandlerOptions{Level: slog.LevelWarn}))
}

// Embedded is a running server bound to an ephemeral local port.
type Embedded struct {
	srv    *sluice.Server
	client *http.Client
}

// New builds and starts an embedded server. Options are applied on top
// of the harness defaults (ephemeral loopback port, console logging).
func New(options ...opts.Option[sluice.Server]) (*Embedded, error) {
	base := []opts.Option[sluice.Server]{
		sluice.WithAddr("127.0.0.1:0"),
		sluice.WithLogger(Logger()),
	}
	srv, err := sluice.New(append(base, options...)...)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(); err != nil {
		return nil, err
	}
	return &Embedded{
		srv:    srv,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Of starts an embedded server with a single catch-all handler. It
// panics on setup failure; it exists for tests, where setup failure is
// fatal anyway.
func Of(h httpx.Handler, options ...opts.Option[sluice.Server]) *Embedded {
	return stdx.Must1(New(append([]opts.Option[sluice.Server]{sluice.Handle("/", h)}, options...)...))
}

// Server returns the running server.
func (e *Embedded) Server() *sluice.Server { return e.srv }

// Client returns an HTTP client for talking to the server.
func (e *Embedded) Client() *http.Client { return e.client }

// URL resolves a path against the server's base address.
func (e *Embedded) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + e.srv.Addr() + path
}

// Get issues a GET against the given path.
func (e *Embedded) Get(path string) (*http.Response, error) {
	return e.client.Get(e.URL(path))
}

// Post issues a POST with the given content type and body.
func (e *Embedded) Post(path, contentType string, body io.Reader) (*http.Response, error) {
	return e.client.Post(e.URL(path), contentType, body)
}

// Text drains a response body into a string.
func Text(res *http.Response) (string, error) {
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	return string(b), err
}

// Test runs fn against the embedded server and closes it afterwards.
func (e *Embedded) Test(fn func(*Embedded)) {
	defer e.Close()
	fn(e)
}

// Close stops the server, bounded by a grace period.
func (e *Embedded) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.srv.Stop(ctx); err != nil {
		slog.Warn("stopping embedded server", slog.String("error", err.Error()))
	}
}
