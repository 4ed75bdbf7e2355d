package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestShutdown_ClosersRunInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{Logger: zaptest.NewLogger(t)})

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		sm.RegisterCloser(CloserFunc(func() error {
			order = append(order, i)
			return nil
		}))
	}
	started := false
	sm.OnShutdownStart(func() { started = true })

	if err := sm.Shutdown(context.Background(), "test"); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !started {
		t.Error("start callback not called")
	}
	if len(order) != 3 || order[0] != 3 || order[2] != 1 {
		t.Errorf("expected LIFO order, got %v", order)
	}

	// Second call is a no-op
	if err := sm.Shutdown(context.Background(), "again"); err != nil {
		t.Fatalf("second Shutdown failed: %v", err)
	}
	if len(order) != 3 {
		t.Errorf("closers ran twice: %v", order)
	}
}

func TestShutdown_ReportsCloseError(t *testing.T) {
	sm := NewShutdownManager(DefaultShutdownConfig())
	sm.RegisterCloser(CloserFunc(func() error { return errors.New("disk gone") }))

	if err := sm.Shutdown(context.Background(), "test"); err == nil {
		t.Fatal("expected close error")
	}
}

func TestShutdown_RejectsNewRequests(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{DrainTimeout: 50 * time.Millisecond})

	if !sm.TrackRequest() {
		t.Fatal("request rejected before shutdown")
	}
	if sm.InFlightCount() != 1 {
		t.Fatalf("expected 1 in-flight request, got %d", sm.InFlightCount())
	}

	// The open request makes the drain time out
	err := sm.Shutdown(context.Background(), "test")
	if err == nil {
		t.Fatal("expected drain timeout")
	}
	if !sm.IsShuttingDown() || sm.TrackRequest() {
		t.Error("requests must be rejected once shutdown started")
	}
	sm.UntrackRequest()
}

func TestShutdownMiddleware(t *testing.T) {
	sm := NewShutdownManager(DefaultShutdownConfig())
	h := ShutdownMiddleware(sm)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	sm.Shutdown(context.Background(), "test")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 during shutdown, got %d", rec.Code)
	}
}

func TestUnaryShutdownInterceptor(t *testing.T) {
	sm := NewShutdownManager(DefaultShutdownConfig())
	interceptor := UnaryShutdownInterceptor(sm)
	handler := func(context.Context, interface{}) (interface{}, error) { return "ok", nil }

	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("unexpected result before shutdown: %v, %v", resp, err)
	}

	sm.Shutdown(context.Background(), "test")
	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	if status.Code(err) != codes.Unavailable {
		t.Errorf("expected Unavailable during shutdown, got %v", err)
	}
}

func TestServeHTTP_StopsOnShutdown(t *testing.T) {
	sm := NewShutdownManager(DefaultShutdownConfig())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- sm.ServeHTTP(&http.Server{Handler: http.NotFoundHandler()}, lis)
	}()

	// Wait until the server answers
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + lis.Addr().String())
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := sm.Shutdown(context.Background(), "test"); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("ServeHTTP returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ServeHTTP did not return after shutdown")
	}
}
