// Package server provides the worker's HTTP health endpoints and graceful
// shutdown handling.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus is the state reported by a check or an endpoint.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// checkTimeout bounds a full /health evaluation.
const checkTimeout = 5 * time.Second

// HealthCheck is the result of one named dependency check.
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse is the body of every health endpoint.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker evaluates one dependency.
type HealthChecker func(ctx context.Context) HealthCheck

// HealthConfig configures the health server.
type HealthConfig struct {
	Version string
}

// HealthServer serves /health, /ready and /live plus any mounted handlers.
type HealthServer struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	routes  map[string]http.Handler
	version string
	ready   bool
	srv     *http.Server
	ln      net.Listener
}

// NewHealthServer creates a health server that is live but not yet ready.
func NewHealthServer(config *HealthConfig) *HealthServer {
	s := &HealthServer{
		checks: make(map[string]HealthChecker),
		routes: make(map[string]http.Handler),
	}
	if config != nil {
		s.version = config.Version
	}
	return s
}

// RegisterCheck adds a named dependency check to /health.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

// Mount serves an extra handler next to the health endpoints, e.g. /metrics.
func (s *HealthServer) Mount(pattern string, h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[pattern] = h
}

// SetReady toggles /ready.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Handler returns the health mux. Mounts registered later are not served.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/live", s.handleLive)

	s.mu.RLock()
	for pattern, h := range s.routes {
		mux.Handle(pattern, h)
	}
	s.mu.RUnlock()
	return mux
}

// Listen binds addr and serves in the background. Bind errors are returned
// directly.
func (s *HealthServer) Listen(addr string) error {
	if addr == "" {
		addr = ":8080"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.srv, s.ln = srv, ln
	s.mu.Unlock()

	go srv.Serve(ln)
	return nil
}

// Addr is the bound address, or "" before Listen.
func (s *HealthServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close stops the listener and drains in-flight requests.
func (s *HealthServer) Close(ctx context.Context) error {
	s.mu.RLock()
	srv := s.srv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	s.mu.RLock()
	checks := make(map[string]HealthChecker, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	version := s.version
	s.mu.RUnlock()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    make([]HealthCheck, 0, len(names)),
	}
	for _, name := range names {
		check := checks[name](ctx)
		check.Name = name
		response.Checks = append(response.Checks, check)
		if check.Status != HealthStatusHealthy {
			response.Status = HealthStatusUnhealthy
		}
	}

	s.writeStatus(w, response)
}

func (s *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()

	response := HealthResponse{Status: HealthStatusHealthy, Timestamp: time.Now().UTC()}
	if !ready {
		response.Status = HealthStatusUnhealthy
	}
	s.writeStatus(w, response)
}

// handleLive answers as long as the process serves HTTP at all.
func (s *HealthServer) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, HealthResponse{Status: HealthStatusHealthy, Timestamp: time.Now().UTC()})
}

func (s *HealthServer) writeStatus(w http.ResponseWriter, response HealthResponse) {
	code := http.StatusOK
	if response.Status != HealthStatusHealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// TemporalHealthChecker reports the Temporal frontend's reachability.
func TemporalHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return dependencyCheck("Temporal", checkFn)
}

// GraphStoreHealthChecker reports the graph store's reachability.
func GraphStoreHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return dependencyCheck("Graph store", checkFn)
}

func dependencyCheck(component string, checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: component + " connection failed: " + err.Error(),
			}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: component + " connection OK"}
	}
}
