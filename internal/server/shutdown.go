package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownHook is one step of the shutdown sequence.
type ShutdownHook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// ShutdownConfig configures the shutdown handler.
type ShutdownConfig struct {
	// Timeout bounds the whole hook sequence.
	Timeout time.Duration
	Signals []os.Signal
	// Logger receives hook failures (default: slog.Default()).
	Logger *slog.Logger
}

// DefaultShutdownConfig waits 30s on SIGTERM or SIGINT.
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
	}
}

// ShutdownHandler runs its hooks in registration order once a signal
// arrives or Shutdown is called.
type ShutdownHandler struct {
	mu      sync.Mutex
	hooks   []ShutdownHook
	timeout time.Duration
	signals []os.Signal
	logger  *slog.Logger

	triggerCh   chan struct{}
	doneCh      chan struct{}
	started     bool
	triggerOnce sync.Once
}

// NewShutdownHandler creates a handler; nil config means the defaults.
func NewShutdownHandler(config *ShutdownConfig) *ShutdownHandler {
	if config == nil {
		config = DefaultShutdownConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ShutdownHandler{
		timeout:   config.Timeout,
		signals:   config.Signals,
		logger:    logger,
		triggerCh: make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// AddHook appends a hook to the sequence.
func (s *ShutdownHandler) AddHook(hook ShutdownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Start begins listening for shutdown signals. Repeated calls are no-ops.
func (s *ShutdownHandler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.signals...)

	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info("shutdown signal received", "signal", sig.String())
		case <-s.triggerCh:
		}
		signal.Stop(sigCh)
		s.run()
	}()
}

// Shutdown triggers the sequence without a signal.
func (s *ShutdownHandler) Shutdown() {
	s.triggerOnce.Do(func() { close(s.triggerCh) })
}

// Wait blocks until every hook has run.
func (s *ShutdownHandler) Wait() {
	<-s.doneCh
}

func (s *ShutdownHandler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := append([]ShutdownHook(nil), s.hooks...)
	s.mu.Unlock()

	for _, hook := range hooks {
		if err := hook.Fn(ctx); err != nil {
			s.logger.Warn("shutdown hook failed", "hook", hook.Name, "error", err)
		}
	}
	close(s.doneCh)
}

// TemporalWorkerShutdownHook stops the worker and its client.
func TemporalWorkerShutdownHook(stopFn func()) ShutdownHook {
	return ShutdownHook{
		Name: "temporal-worker",
		Fn: func(context.Context) error {
			stopFn()
			return nil
		},
	}
}

// GraphStoreShutdownHook closes the graph store driver.
func GraphStoreShutdownHook(closeFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{Name: "graph-store", Fn: closeFn}
}

// TracingShutdownHook flushes the trace exporter. Register it last so spans
// from the earlier hooks are exported.
func TracingShutdownHook(shutdownFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{Name: "tracing", Fn: shutdownFn}
}

// GracefulServer couples the health server with the shutdown sequence. The
// health server is always the first hook, so readiness drops before any
// dependency is closed.
type GracefulServer struct {
	Health   *HealthServer
	Shutdown *ShutdownHandler
}

// NewGracefulServer creates a server with health checks and graceful shutdown.
func NewGracefulServer(healthConfig *HealthConfig, shutdownConfig *ShutdownConfig) *GracefulServer {
	health := NewHealthServer(healthConfig)
	shutdown := NewShutdownHandler(shutdownConfig)
	shutdown.AddHook(ShutdownHook{
		Name: "health-server",
		Fn: func(ctx context.Context) error {
			health.SetReady(false)
			return health.Close(ctx)
		},
	})
	return &GracefulServer{Health: health, Shutdown: shutdown}
}

// Start binds the health server, starts listening for signals and marks the
// worker ready.
func (g *GracefulServer) Start(addr string) error {
	if err := g.Health.Listen(addr); err != nil {
		return err
	}
	g.Shutdown.Start()
	g.Health.SetReady(true)
	return nil
}

// Wait blocks until the shutdown sequence has finished.
func (g *GracefulServer) Wait() {
	g.Shutdown.Wait()
}
