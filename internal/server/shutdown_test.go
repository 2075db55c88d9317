package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/efebarandurmaz/importgraph/internal/observability"
)

func quietConfig() *ShutdownConfig {
	cfg := DefaultShutdownConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func TestShutdownHandler_HookOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	h := NewShutdownHandler(quietConfig())
	h.AddHook(TemporalWorkerShutdownHook(func() { record("temporal-worker")(context.Background()) }))
	h.AddHook(GraphStoreShutdownHook(func(context.Context) error {
		record("graph-store")(context.Background())
		return errors.New("already closed")
	}))
	h.AddHook(TracingShutdownHook(record("tracing")))

	h.Start()
	h.Shutdown()
	h.Wait()

	// A failing hook does not stop the sequence.
	want := []string{"temporal-worker", "graph-store", "tracing"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestShutdownHandler_ShutdownTwice(t *testing.T) {
	h := NewShutdownHandler(quietConfig())
	calls := 0
	h.AddHook(ShutdownHook{Name: "count", Fn: func(context.Context) error { calls++; return nil }})

	h.Start()
	h.Start()
	h.Shutdown()
	h.Shutdown()
	h.Wait()

	if calls != 1 {
		t.Fatalf("hook ran %d times", calls)
	}
}

func TestShutdownHandler_HookDeadline(t *testing.T) {
	cfg := quietConfig()
	cfg.Timeout = 50 * time.Millisecond
	h := NewShutdownHandler(cfg)

	var got error
	h.AddHook(GraphStoreShutdownHook(func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	}))

	h.Start()
	h.Shutdown()
	h.Wait()

	if !errors.Is(got, context.DeadlineExceeded) {
		t.Fatalf("hook ctx err = %v", got)
	}
}

func TestGracefulServer_Lifecycle(t *testing.T) {
	m := observability.NewAnalysisMetrics()
	m.RecordStore(time.Millisecond, nil)

	srv := NewGracefulServer(&HealthConfig{Version: "test"}, quietConfig())
	srv.Health.RegisterCheck("temporal", TemporalHealthChecker(up))
	srv.Health.RegisterCheck("graph-store", GraphStoreHealthChecker(up))
	srv.Health.Mount("/metrics", m.Handler())

	var closed []string
	srv.Shutdown.AddHook(TemporalWorkerShutdownHook(func() { closed = append(closed, "temporal-worker") }))
	srv.Shutdown.AddHook(GraphStoreShutdownHook(func(context.Context) error {
		closed = append(closed, "graph-store")
		return nil
	}))

	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + srv.Health.Addr()
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{path: "/ready", wantCode: http.StatusOK, wantBody: `"status":"healthy"`},
		{path: "/health", wantCode: http.StatusOK, wantBody: `"name":"graph-store"`},
		{path: "/metrics", wantCode: http.StatusOK, wantBody: "importgraph_store_writes_total 1"},
	}
	for _, tt := range tests {
		resp, err := client.Get(base + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != tt.wantCode {
			t.Errorf("%s code = %d, want %d", tt.path, resp.StatusCode, tt.wantCode)
		}
		if !strings.Contains(string(body), tt.wantBody) {
			t.Errorf("%s body missing %q:\n%s", tt.path, tt.wantBody, body)
		}
	}

	srv.Shutdown.Shutdown()
	srv.Wait()

	if !reflect.DeepEqual(closed, []string{"temporal-worker", "graph-store"}) {
		t.Errorf("closed = %v", closed)
	}
	if _, err := client.Get(base + "/live"); err == nil {
		t.Error("health server still accepting after shutdown")
	}
}

func TestGracefulServer_StartBindError(t *testing.T) {
	first := NewGracefulServer(nil, quietConfig())
	if err := first.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		first.Shutdown.Shutdown()
		first.Wait()
	}()

	second := NewGracefulServer(nil, quietConfig())
	if err := second.Start(first.Health.Addr()); err == nil {
		t.Fatal("expected bind error on an address in use")
	}
}
