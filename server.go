package sluice

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fogfish/opts"

	"github.com/casualjim/sluice/exec"
	"github.com/casualjim/sluice/httpx"
	"github.com/casualjim/sluice/pkg/slogx"
)

var (
	// WithAddr sets the listen address. Defaults to ":8080"; use
	// "127.0.0.1:0" for an ephemeral port.
	WithAddr = opts.ForName[Server, string]("addr")

	// WithMaxBodySize bounds request-body accumulation in bytes.
	WithMaxBodySize = opts.ForName[Server, int64]("maxBodySize")

	// WithLogger sets the server logger.
	WithLogger = opts.ForName[Server, *slog.Logger]("log")

	// WithController supplies an externally owned execution
	// controller. The server will not close it on Stop.
	WithController = opts.ForName[Server, *exec.Controller]("controller")
)

// Handle registers a handler for the given mux pattern.
func Handle(pattern string, h httpx.Handler) opts.Option[Server] {
	return opts.Type[Server](func(s *Server) error {
		if h == nil {
			return errors.New("handler is required")
		}
		s.routes = append(s.routes, route{pattern: pattern, handler: h})
		return nil
	})
}

type route struct {
	pattern string
	handler httpx.Handler
}

// Server is the embedding surface of the runtime: it owns (or borrows)
// an execution controller and turns each inbound request into a forked
// Execution running the registered handler.
type Server struct {
	addr        string
	maxBodySize int64
	log         *slog.Logger
	controller  *exec.Controller

	routes        []route
	ownController bool
	mux           *http.ServeMux
	srv           *http.Server
	ln            net.Listener
	started       atomic.Bool
}

// New assembles a server from the given options.
func New(options ...opts.Option[Server]) (*Server, error) {
	s := &Server{
		addr:        ":8080",
		maxBodySize: httpx.DefaultMaxBodySize,
		log:         slog.Default(),
	}
	if err := opts.Apply(s, options); err != nil {
		return nil, err
	}
	if len(s.routes) == 0 {
		return nil, errors.New("at least one handler is required")
	}
	if s.controller == nil {
		ctrl, err := exec.NewController(exec.WithLogger(s.log))
		if err != nil {
			return nil, err
		}
		s.controller = ctrl
		s.ownController = true
	}

	s.mux = http.NewServeMux()
	for _, rt := range s.routes {
		s.mux.Handle(rt.pattern, s.adapt(rt.handler))
	}
	return s, nil
}

// Controller exposes the execution controller, e.g. for wiring a
// periodic publisher to its scheduler.
func (s *Server) Controller() *exec.Controller { return s.controller }

// adapt bridges the transport to the execution engine. The transport
// goroutine parks until the forked execution finishes; if the client
// goes away first, the execution is abandoned and the response writer
// sealed so mid-flight continuations write into the void instead of a
// returned handler frame.
func (s *Server) adapt(h httpx.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := httpx.WrapResponseWriter(w)
		e := s.controller.Fork(func(ctx context.Context) {
			c := httpx.NewContext(ctx, rw, r, s.maxBodySize, s.log)
			h(c)
		})

		select {
		case <-e.Done():
		case <-r.Context().Done():
			rw.Seal()
			e.Abandon()
		}
	})
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("server already started")
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.mux}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server terminated", slogx.Error(err))
		}
	}()

	s.log.Info("server started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr reports the bound address once started.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop shuts the transport down and, when the server owns its
// controller, drains and closes it too.
func (s *Server) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	if s.ownController {
		err = errors.Join(err, s.controller.Close(ctx))
	}
	return err
}

// Run starts the server and blocks until ctx is cancelled, then stops
// it with a grace period.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}
