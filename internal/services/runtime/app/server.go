// Package server hosts the runtime: the websocket control channel, the MCP tools
// endpoint, the gRPC health service, and the routing and render loops behind them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/arkomp/internal/platform/timeouts"
	"github.com/louisbranch/arkomp/internal/services/runtime/auth"
	"github.com/louisbranch/arkomp/internal/services/runtime/command"
	"github.com/louisbranch/arkomp/internal/services/runtime/dispatch"
	"github.com/louisbranch/arkomp/internal/services/runtime/module"
	"github.com/louisbranch/arkomp/internal/services/runtime/plugin"
	"github.com/louisbranch/arkomp/internal/services/runtime/render"
	"github.com/louisbranch/arkomp/internal/services/runtime/roster"
	"github.com/louisbranch/arkomp/internal/services/runtime/script"
	"github.com/louisbranch/arkomp/internal/services/runtime/storage"
	"github.com/louisbranch/arkomp/internal/services/runtime/storage/sqlite"
)

// HealthService is the gRPC health service name reported for the runtime.
const HealthService = "arkomp.runtime"

// Config defines the inputs of the runtime server.
type Config struct {
	HTTPAddr         string
	GRPCAddr         string
	JournalPath      string
	AuthSecret       string
	AuthAudience     string
	FrameRate        int
	DefaultAnimation string

	MaxFrameBytes     int
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server owns the runtime's shared state and its network endpoints.
type Server struct {
	httpListener    net.Listener
	grpcListener    net.Listener
	httpServer      *http.Server
	grpcServer      *grpc.Server
	health          *health.Server
	shutdownTimeout time.Duration
	maxFrameBytes   int

	verifier  *auth.Verifier
	plugins   *plugin.Registry
	operators *roster.Roster
	queue     *dispatch.Queue
	router    *dispatch.Router
	loop      *render.Loop
	journal   *sqlite.Store
	executor  *command.Executor
	conns     *connSet

	closeOnce sync.Once
}

// NewServer builds the runtime and binds its listeners. Failing to bind is the
// only startup error callers should treat as fatal.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}
	if config.MaxFrameBytes <= 0 {
		config.MaxFrameBytes = DefaultMaxFrameBytes
	}

	s := &Server{
		shutdownTimeout: config.ShutdownTimeout,
		maxFrameBytes:   config.MaxFrameBytes,
		verifier:        auth.NewVerifier(config.AuthSecret, config.AuthAudience),
		plugins:         plugin.NewRegistry(),
		operators:       roster.New(),
		queue:           dispatch.NewQueue(),
		conns:           newConnSet(),
	}

	var routerOpts []dispatch.Option
	if path := strings.TrimSpace(config.JournalPath); path != "" {
		journal, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open delivery journal: %w", err)
		}
		s.journal = journal
		routerOpts = append(routerOpts, dispatch.WithRecorder(journal))
	}
	s.router = dispatch.NewRouter(s.queue, s.operators, routerOpts...)

	if config.FrameRate > 0 {
		loop, err := render.NewLoop(s.operators, config.FrameRate)
		if err != nil {
			s.closeJournal()
			return nil, err
		}
		s.loop = loop
	}

	loader := module.NewLoader()
	loader.Register(script.Extension, script.Opener{})
	s.executor = command.NewExecutor(&command.Context{
		Plugins:          s.plugins,
		Operators:        s.operators,
		Events:           s.queue,
		Loader:           loader,
		DefaultAnimation: config.DefaultAnimation,
	})

	httpListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		s.closeJournal()
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}
	s.httpListener = httpListener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	if grpcAddr := strings.TrimSpace(config.GRPCAddr); grpcAddr != "" {
		grpcListener, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			_ = httpListener.Close()
			s.closeJournal()
			return nil, fmt.Errorf("listen on %s: %w", grpcAddr, err)
		}
		s.grpcListener = grpcListener
		s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		s.health = health.NewServer()
		grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		s.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return s, nil
}

// Run builds a server and serves until ctx is cancelled.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Addr returns the bound HTTP address.
func (s *Server) Addr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC address, or "" when gRPC is disabled.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	control := s.controlHandler()
	mux.Handle("/{$}", control)
	mux.Handle("/ws", control)

	mcpServer := newMCPServer(s.executor, s.deliveryJournal())
	mux.Handle("/mcp", s.verifier.Require(mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpServer
	}, nil)))
	return mux
}

// Serve runs the routing loop, the render loop, and both servers until ctx is
// cancelled, then shuts everything down.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("runtime server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	defer s.Close()

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		// The router stops when the queue is closed and drained, not on ctx.
		if err := s.router.Run(context.Background()); err != nil {
			log.Printf("runtime: router stopped: %v", err)
		}
	}()

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if s.loop != nil {
			_ = s.loop.Run(loopCtx)
		}
	}()

	serveErr := make(chan error, 2)
	if s.grpcServer != nil {
		go func() {
			log.Printf("runtime: gRPC health listening on %s", s.GRPCAddr())
			serveErr <- s.grpcServer.Serve(s.grpcListener)
		}()
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)
	}
	go func() {
		log.Printf("runtime: control channel listening on %s", s.Addr())
		serveErr <- s.httpServer.Serve(s.httpListener)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	if s.health != nil {
		s.health.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown http server: %w", err)
	}
	s.conns.closeAll()
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}

	stopLoop()
	<-loopDone
	s.queue.Close()
	select {
	case <-routerDone:
	case <-time.After(timeouts.Drain):
		log.Printf("runtime: router drain timed out with %d queued events", s.queue.Len())
	}
	log.Printf("runtime: stopped delivered=%d dropped=%d failed=%d", s.router.Delivered(), s.router.Dropped(), s.router.Failed())
	return runErr
}

// Close releases every operator, plugin, and the journal. It is safe to call
// more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.queue.Close()
		if s.grpcServer != nil {
			s.grpcServer.Stop()
		}
		if s.httpListener != nil {
			_ = s.httpListener.Close()
		}
		s.operators.Close()
		if err := s.plugins.Close(); err != nil {
			log.Printf("runtime: close plugins: %v", err)
		}
		s.closeJournal()
	})
}

// deliveryJournal returns the journal as an interface, nil when disabled.
func (s *Server) deliveryJournal() storage.DeliveryJournal {
	if s.journal == nil {
		return nil
	}
	return s.journal
}

func (s *Server) closeJournal() {
	if s.journal == nil {
		return
	}
	if err := s.journal.Close(); err != nil {
		log.Printf("runtime: close delivery journal: %v", err)
	}
}
