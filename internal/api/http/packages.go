package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	nebulaerrors "github.com/blackportal-ai/nebula/internal/errors"
	"github.com/blackportal-ai/nebula/internal/metrics"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/internal/storage"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// PackageSummary is the JSON form of one package.
type PackageSummary struct {
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	Description   string          `json:"description"`
	License       string          `json:"license"`
	DataPackage   json.RawMessage `json:"datapackage,omitempty"`
	PreviewImages []string        `json:"preview_images,omitempty"`
}

// PackageListResponse is one page of packages.
type PackageListResponse struct {
	Packages   []PackageSummary `json:"packages"`
	TotalCount int              `json:"total_count"`
	Limit      uint32           `json:"limit"`
	Offset     uint32           `json:"offset"`
	RequestID  string           `json:"request_id"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Packages int    `json:"packages"`
}

// PackagesHandler answers package queries from a metadata source.
type PackagesHandler struct {
	source storage.MetadataSource
	logger *zap.Logger
}

// NewPackagesHandler creates a handler over source.
func NewPackagesHandler(source storage.MetadataSource, logger *zap.Logger) *PackagesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PackagesHandler{source: source, logger: logger}
}

// NewRouter returns the registry HTTP API:
//
//	GET /v1/packages          list, with limit, offset, sort, desc, q, type, json, images
//	GET /v1/packages/{name}   first package whose name contains name
//	GET /v1/search?q=         free-text search
//	GET /health
//	GET /metrics
func NewRouter(source storage.MetadataSource, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := NewPackagesHandler(source, logger)

	route := func(name string, fn http.HandlerFunc) http.Handler {
		return ChainMiddleware(
			RecoveryMiddleware(logger),
			RequestIDMiddleware,
			MetricsMiddleware(m, name),
		)(fn)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /v1/packages", route("list", h.List))
	mux.Handle("GET /v1/packages/{name}", route("get", h.Get))
	mux.Handle("GET /v1/search", route("search", h.Search))
	mux.Handle("GET /health", route("health", h.Health))
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}
	return mux
}

// List handles GET /v1/packages.
func (h *PackagesHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	sort, filter, page, fields, err := settingsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}
	filter.Query = r.URL.Query().Get("q")

	pkgs, err := h.source.List(r.Context(), sort, filter, page, fields)
	if err != nil {
		h.fail(w, requestID, "list", err)
		return
	}
	h.writePage(w, requestID, pkgs, sort, filter, page, fields)
}

// Search handles GET /v1/search.
func (h *PackagesHandler) Search(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required", requestID)
		return
	}
	sort, filter, page, fields, err := settingsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	pkgs, err := h.source.Search(r.Context(), query, sort, filter, page)
	if err != nil {
		h.fail(w, requestID, "search", err)
		return
	}
	h.writePage(w, requestID, pkgs, sort, filter, page, fields)
}

// Get handles GET /v1/packages/{name}.
func (h *PackagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	_, filter, _, fields, err := settingsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	name := r.PathValue("name")
	pkg, err := h.source.Get(r.Context(), name, filter)
	if err != nil {
		h.fail(w, requestID, "get", err)
		return
	}
	if pkg == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no package matches %q", name), requestID)
		return
	}

	summary, err := summaryOf(pkg, fields)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), requestID)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Health handles GET /health.
func (h *PackagesHandler) Health(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.source.List(r.Context(), model.SortSettings{}, model.FilterSettings{}, model.Unbounded(), 0)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Packages: len(pkgs)})
}

func (h *PackagesHandler) writePage(w http.ResponseWriter, requestID string, pkgs []*datapackage.Package, sort model.SortSettings, filter model.FilterSettings, page model.PaginationSettings, fields model.FieldSettings) {
	matched := model.ApplyFilter(pkgs, filter)
	model.ApplySort(matched, sort)
	window := model.ApplyPagination(matched, page)

	resp := PackageListResponse{
		Packages:   make([]PackageSummary, 0, len(window)),
		TotalCount: len(matched),
		Limit:      page.Limit,
		Offset:     page.Offset,
		RequestID:  requestID,
	}
	for _, p := range window {
		summary, err := summaryOf(p, fields)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), requestID)
			return
		}
		resp.Packages = append(resp.Packages, summary)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PackagesHandler) fail(w http.ResponseWriter, requestID, op string, err error) {
	h.logger.Warn("request failed", zap.String("op", op), zap.String("request_id", requestID), zap.Error(err))

	status := http.StatusInternalServerError
	switch nebulaerrors.GetCategory(err) {
	case nebulaerrors.ErrCategoryQuery:
		status = http.StatusBadRequest
		if nebulaerrors.GetCode(err) == nebulaerrors.CodeUnimplemented {
			status = http.StatusNotImplemented
		}
	case nebulaerrors.ErrCategoryRemote:
		status = http.StatusBadGateway
	}
	writeError(w, status, err.Error(), requestID)
}

func summaryOf(pkg *datapackage.Package, fields model.FieldSettings) (PackageSummary, error) {
	info, err := model.InfoFromPackage(pkg, fields)
	if err != nil {
		return PackageSummary{}, err
	}
	s := PackageSummary{
		Name:          info.Name,
		Version:       info.Version,
		Description:   info.Description,
		License:       info.License,
		PreviewImages: info.PreviewImages,
	}
	if info.DatapackageJson != nil {
		s.DataPackage = json.RawMessage(*info.DatapackageJson)
	}
	return s, nil
}

// settingsFromQuery reads the common query parameters.
func settingsFromQuery(r *http.Request) (model.SortSettings, model.FilterSettings, model.PaginationSettings, model.FieldSettings, error) {
	q := r.URL.Query()
	var (
		sort   model.SortSettings
		filter model.FilterSettings
		fields model.FieldSettings
		err    error
	)
	page := model.DefaultPagination()

	if v := q.Get("limit"); v != "" {
		n, perr := strconv.ParseUint(v, 10, 32)
		if perr != nil {
			return sort, filter, page, fields, fmt.Errorf("invalid limit %q", v)
		}
		page.Limit = uint32(n)
	}
	if v := q.Get("offset"); v != "" {
		n, perr := strconv.ParseUint(v, 10, 32)
		if perr != nil {
			return sort, filter, page, fields, fmt.Errorf("invalid offset %q", v)
		}
		page.Offset = uint32(n)
	}
	if sort.By, err = model.ParseSortField(q.Get("sort")); err != nil {
		return sort, filter, page, fields, err
	}
	sort.Descending, _ = strconv.ParseBool(q.Get("desc"))
	if filter.PackageType, err = model.ParsePackageType(q.Get("type")); err != nil {
		return sort, filter, page, fields, err
	}
	if ok, _ := strconv.ParseBool(q.Get("json")); ok {
		fields = fields.With(model.FieldDataPackage)
	}
	if ok, _ := strconv.ParseBool(q.Get("images")); ok {
		fields = fields.With(model.FieldPreviewImages)
	}
	return sort, filter, page, fields, nil
}
