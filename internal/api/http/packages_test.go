package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/blackportal-ai/nebula/internal/metrics"
	"github.com/blackportal-ai/nebula/internal/storage"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
	"github.com/blackportal-ai/nebula/pkg/types"
)

func newTestRouter(t *testing.T) (http.Handler, *metrics.Metrics) {
	t.Helper()
	source, err := storage.NewRootFolderSource(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	for _, d := range []datapackage.PackageNotValidated{
		{Name: "iris", Version: "0.1.0", Description: "Fisher's flowers", Licenses: []datapackage.License{{Name: "CC0-1.0"}}},
		{Name: "mnist", Version: "1.0.0", Keywords: []string{"digits"}},
		{Name: "cifar", Version: "2.0.0"},
	} {
		d.ID = types.NewPackageID().String()
		d.Resources = []datapackage.ResourceNotValidated{{Name: d.Name, Path: datapackage.Paths{d.Name + ".csv"}}}
		if err := source.Put(context.Background(), datapackage.UncheckedFrom(d)); err != nil {
			t.Fatalf("Put(%s) failed: %v", d.Name, err)
		}
	}

	m := metrics.New()
	return NewRouter(source, m, zaptest.NewLogger(t)), m
}

func get(t *testing.T, h http.Handler, target string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode %s response: %v", target, err)
		}
	}
	return rec
}

func TestListPackages(t *testing.T) {
	router, _ := newTestRouter(t)

	var resp PackageListResponse
	rec := get(t, router, "/v1/packages?sort=name&limit=2", &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.TotalCount != 3 || len(resp.Packages) != 2 {
		t.Fatalf("unexpected page: %+v", resp)
	}
	if resp.Packages[0].Name != "cifar" || resp.Packages[1].Name != "iris" {
		t.Errorf("unexpected order: %+v", resp.Packages)
	}
	if resp.Packages[1].License != "CC0-1.0" || resp.Packages[0].License != "UNKNOWN" {
		t.Errorf("unexpected licenses: %+v", resp.Packages)
	}
	if resp.Packages[0].DataPackage != nil {
		t.Error("datapackage should be omitted unless requested")
	}
	if resp.RequestID == "" || rec.Header().Get("X-Request-ID") != resp.RequestID {
		t.Errorf("request id not propagated")
	}

	// Name filter and raw descriptors
	resp = PackageListResponse{}
	get(t, router, "/v1/packages?q=MNI&json=true", &resp)
	if len(resp.Packages) != 1 || resp.Packages[0].Name != "mnist" {
		t.Fatalf("unexpected filtered page: %+v", resp.Packages)
	}
	if _, err := datapackage.Parse(resp.Packages[0].DataPackage); err != nil {
		t.Errorf("embedded descriptor does not parse: %v", err)
	}
}

func TestListPackages_BadParameters(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, target := range []string{
		"/v1/packages?limit=-1",
		"/v1/packages?offset=x",
		"/v1/packages?sort=size",
		"/v1/packages?type=video",
	} {
		if rec := get(t, router, target, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestGetPackage(t *testing.T) {
	router, _ := newTestRouter(t)

	var summary PackageSummary
	rec := get(t, router, "/v1/packages/iri", &summary)
	if rec.Code != http.StatusOK || summary.Name != "iris" {
		t.Fatalf("expected iris, got %d %+v", rec.Code, summary)
	}

	rec = get(t, router, "/v1/packages/imagenet", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil || !strings.Contains(errResp.Error, "imagenet") {
		t.Errorf("unexpected error body: %+v, %v", errResp, err)
	}
}

func TestSearchPackages(t *testing.T) {
	router, _ := newTestRouter(t)

	var resp PackageListResponse
	get(t, router, "/v1/search?q=digits", &resp)
	if len(resp.Packages) != 1 || resp.Packages[0].Name != "mnist" {
		t.Fatalf("unexpected search result: %+v", resp.Packages)
	}

	if rec := get(t, router, "/v1/search", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without q, got %d", rec.Code)
	}
}

func TestSearchPackages_Unimplemented(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	router := NewRouter(storage.NewObjectSource(store, storage.ObjectSourceConfig{}, nil), nil, nil)

	if rec := get(t, router, "/v1/search?q=iris", nil); rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", rec.Code)
	}
	// No metrics endpoint without metrics
	if rec := get(t, router, "/metrics", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for /metrics, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	var health HealthResponse
	get(t, router, "/health", &health)
	if health.Status != "ok" || health.Packages != 3 {
		t.Errorf("unexpected health: %+v", health)
	}

	rec := get(t, router, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `nebula_requests_total{method="health",status="OK",transport="http"} 1`) {
		t.Errorf("health request not counted:\n%s", rec.Body.String())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := ChainMiddleware(RecoveryMiddleware(zaptest.NewLogger(t)), RequestIDMiddleware)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	// Recovery runs outside RequestID, so the id is not in its context
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error != "internal server error" {
		t.Errorf("unexpected body: %+v, %v", resp, err)
	}
}
