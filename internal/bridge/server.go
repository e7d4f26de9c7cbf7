package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quayside/gangplank/internal/logger"
)

// Options configures a bridge server.
type Options struct {
	// Port to bind on the loopback interface. Port 0 picks an ephemeral
	// port, which tests rely on.
	Port int

	// QueueCapacity is the per-peer outbound frame budget.
	QueueCapacity int

	// InboundRate and InboundBurst throttle prompt injection per peer.
	InboundRate  float64
	InboundBurst int

	// Card is the descriptor served at /.well-known/agent-card.json. The
	// URL field is filled in from the bound address if left empty.
	Card AgentCard
}

// Server owns the bridge's listener, fan-out machinery, and host adapter.
// One server exposes exactly one host session.
type Server struct {
	opts    Options
	hostCtx HostContext

	registry *Registry
	arbiter  *Arbiter
	adapter  *Adapter
	router   *Router

	httpServer *http.Server
	listener   net.Listener
	group      *errgroup.Group

	stopOnce sync.Once
}

// NewServer assembles a bridge server around the given host context. The
// server does not bind or subscribe until Start.
func NewServer(opts Options, hostCtx HostContext) *Server {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}

	registry := NewRegistry()
	broadcaster := NewBroadcaster(hostCtx.SessionID(), registry)
	arbiter := NewArbiter(hostCtx.Bus())
	adapter := NewAdapter(hostCtx, broadcaster, arbiter)
	router := NewRouter(hostCtx, arbiter, opts.InboundRate, opts.InboundBurst)

	return &Server{
		opts:     opts,
		hostCtx:  hostCtx,
		registry: registry,
		arbiter:  arbiter,
		adapter:  adapter,
		router:   router,
	}
}

// Start binds the loopback listener, subscribes the adapter to the host,
// and begins serving. Returns once the listener is accepting; serve errors
// surface from Stop.
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.opts.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.listener = listener

	card := s.opts.Card
	if card.URL == "" {
		card.URL = "http://" + listener.Addr().String()
	}

	api := newHTTPAPI(s.hostCtx.SessionID(), card, s.registry, s.router, s.opts.QueueCapacity)
	s.httpServer = &http.Server{
		Handler:           api.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.adapter.Start()

	s.group = &errgroup.Group{}
	s.group.Go(func() error {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	logger.Info("bridge serving session %s on %s", s.hostCtx.SessionID(), listener.Addr())
	return nil
}

// Addr returns the bound address, or empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop tears the bridge down: the adapter detaches from the host, pending
// confirmations are discarded, peers are closed, and the HTTP server
// drains within the context deadline. Idempotent.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		logger.Info("bridge shutting down")

		s.adapter.Stop()
		s.arbiter.CancelAll()
		s.registry.CloseAll()

		if s.httpServer != nil {
			if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
				logger.Warn("graceful shutdown incomplete, forcing close: %v", shutdownErr)
				_ = s.httpServer.Close()
			}
		}
		if s.group != nil {
			err = s.group.Wait()
		}
	})
	return err
}
