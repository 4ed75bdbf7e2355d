package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest("grpc", "ListPackages", "OK", 10*time.Millisecond)
	m.ObserveRequest("grpc", "ListPackages", "OK", 20*time.Millisecond)
	m.ObserveRequest("grpc", "GetPackageInfo", "NotFound", time.Millisecond)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("grpc", "ListPackages", "OK")); got != 2 {
		t.Errorf("expected 2 ListPackages requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("grpc", "GetPackageInfo", "NotFound")); got != 1 {
		t.Errorf("expected 1 GetPackageInfo request, got %v", got)
	}
}

func TestObserveSync(t *testing.T) {
	m := New()

	m.ObserveSync(nil, 3, 1, time.Second)
	m.ObserveSync(errors.New("remote down"), 0, 0, time.Second)

	if got := testutil.ToFloat64(m.SyncRuns.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 successful run, got %v", got)
	}
	if got := testutil.ToFloat64(m.SyncRuns.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed run, got %v", got)
	}
	if got := testutil.ToFloat64(m.SyncItems.WithLabelValues("synced")); got != 3 {
		t.Errorf("expected 3 synced items, got %v", got)
	}
	if testutil.ToFloat64(m.LastSync) == 0 {
		t.Error("expected last sync timestamp to be set")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("http", "list", "200", time.Millisecond)
	m.ObserveSync(nil, 1, 0, time.Millisecond)
	m.SetPackages(4)
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SetPackages(5)
	if got := testutil.ToFloat64(b.Packages); got != 0 {
		t.Errorf("second instance saw first instance's value: %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetPackages(7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "nebula_packages 7") {
		t.Errorf("expected nebula_packages in output, got:\n%s", body)
	}
}
