package query

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/blackportal-ai/nebula/api/proto"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/internal/storage"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
	"github.com/blackportal-ai/nebula/pkg/types"
)

// fakeRegistry answers every call from a fixed list of summaries.
type fakeRegistry struct {
	infos    []*proto.PackageInfo
	lastList *proto.ListPackagesRequest
	lastGet  *proto.PackageRequest
}

func (f *fakeRegistry) GetPackageInfo(_ context.Context, req *proto.PackageRequest) (*proto.PackageInfo, error) {
	f.lastGet = req
	for _, info := range f.infos {
		if strings.Contains(info.Name, req.SearchQuery) {
			return info, nil
		}
	}
	return nil, nil
}

func (f *fakeRegistry) ListPackages(_ context.Context, req *proto.ListPackagesRequest) (*proto.PackageList, error) {
	f.lastList = req
	return &proto.PackageList{Packages: f.infos, TotalCount: int32(len(f.infos) + 10)}, nil
}

func (f *fakeRegistry) SearchPackages(_ context.Context, req *proto.SearchPackagesRequest) (*proto.PackageList, error) {
	var out []*proto.PackageInfo
	for _, info := range f.infos {
		if strings.Contains(info.Name, req.SearchQuery) {
			out = append(out, info)
		}
	}
	return &proto.PackageList{Packages: out, TotalCount: int32(len(out))}, nil
}

func descriptor(name, version string) datapackage.PackageNotValidated {
	return datapackage.PackageNotValidated{
		Name:      name,
		Version:   version,
		ID:        types.NewPackageID().String(),
		Resources: []datapackage.ResourceNotValidated{{Name: name, Path: datapackage.Paths{name + ".csv"}}},
	}
}

func info(t *testing.T, name, version string) *proto.PackageInfo {
	t.Helper()
	data, err := json.Marshal(descriptor(name, version))
	if err != nil {
		t.Fatalf("failed to marshal descriptor: %v", err)
	}
	return &proto.PackageInfo{Name: name, Version: version, DatapackageJson: proto.String(string(data))}
}

func newLocal(t *testing.T, pkgs ...datapackage.PackageNotValidated) *storage.RootFolderSource {
	t.Helper()
	source, err := storage.NewRootFolderSource(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create root folder source: %v", err)
	}
	for _, d := range pkgs {
		if err := source.Put(context.Background(), datapackage.UncheckedFrom(d)); err != nil {
			t.Fatalf("Put(%s) failed: %v", d.Name, err)
		}
	}
	return source
}

func names(r *Result) []string {
	out := make([]string, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Package.Name() + "@" + it.Package.Version()
	}
	return out
}

func TestService_LocalList(t *testing.T) {
	local := newLocal(t,
		descriptor("iris", "0.1.0"),
		descriptor("mnist", "1.0.0"),
		descriptor("cifar", "2.0.0"),
		descriptor("cifar", "10.0.0"),
	)
	svc := NewService(local, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	res, err := svc.List(ctx, model.SiteLocal, model.SortSettings{By: model.SortByName}, model.FilterSettings{}, model.PaginationSettings{Limit: 2}, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if res.Total != 4 {
		t.Errorf("Total = %d, want 4", res.Total)
	}
	if got := strings.Join(names(res), ","); got != "cifar@2.0.0,cifar@10.0.0" {
		t.Errorf("unexpected first page: %s", got)
	}
	for _, it := range res.Items {
		if it.Status != model.StatusInstalled {
			t.Errorf("local package %s should be installed, got %s", it.Package.Name(), it.Status)
		}
	}

	// Offset past the end yields an empty page
	res, err = svc.List(ctx, model.SiteLocal, model.SortSettings{}, model.FilterSettings{}, model.PaginationSettings{Offset: 10}, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(res.Items) != 0 || res.Total != 4 {
		t.Errorf("expected empty page of 4, got %d items total %d", len(res.Items), res.Total)
	}

	// Name filter ignores case
	res, err = svc.List(ctx, model.SiteLocal, model.SortSettings{}, model.FilterSettings{Query: "IRI"}, model.DefaultPagination(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got := strings.Join(names(res), ","); got != "iris@0.1.0" {
		t.Errorf("unexpected filtered result: %s", got)
	}
}

func TestService_LocalSearchAndGet(t *testing.T) {
	iris := descriptor("iris", "0.1.0")
	iris.Description = "Fisher's flowers"
	svc := NewService(newLocal(t, iris, descriptor("mnist", "1.0.0")), nil, nil)
	ctx := context.Background()

	res, err := svc.Search(ctx, model.SiteLocal, "flowers", model.SortSettings{}, model.FilterSettings{}, model.DefaultPagination(), 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got := strings.Join(names(res), ","); got != "iris@0.1.0" {
		t.Errorf("unexpected search result: %s", got)
	}

	item, err := svc.Get(ctx, model.SiteLocal, "mni", model.FilterSettings{})
	if err != nil || item == nil || item.Package.Name() != "mnist" {
		t.Fatalf("Get(mni) = %v, %v", item, err)
	}

	item, err = svc.Get(ctx, model.SiteLocal, "imagenet", model.FilterSettings{})
	if err != nil || item != nil {
		t.Fatalf("expected nil, nil for a missing package, got %v, %v", item, err)
	}
}

func TestService_RemoteList(t *testing.T) {
	local := newLocal(t, descriptor("iris", "0.1.0"), descriptor("mnist", "0.9.0"))
	registry := &fakeRegistry{infos: []*proto.PackageInfo{
		info(t, "iris", "0.1.0"),
		info(t, "mnist", "1.0.0"),
		info(t, "cifar", "2.0.0"),
		{Name: "broken", Version: "1.0.0"},
	}}
	svc := NewService(local, registry, zaptest.NewLogger(t))

	res, err := svc.List(context.Background(), model.SiteRemote, model.SortSettings{By: model.SortByName}, model.FilterSettings{}, model.PaginationSettings{Limit: 5, Offset: 0}, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	// Remote requests always ask for the raw descriptor
	if !registry.lastList.FieldOptions.GetIncludeDatapackageJson() {
		t.Error("remote list must request include_datapackage_json")
	}
	if *registry.lastList.Limit != 5 || len(registry.lastList.Sort) != 1 || registry.lastList.Sort[0].Field != "name" {
		t.Errorf("settings not forwarded: %+v", registry.lastList)
	}

	if len(res.Failures) != 1 || res.Failures[0].Name != "broken" || !errors.Is(res.Failures[0].Err, datapackage.ErrNoJSON) {
		t.Errorf("expected broken to be reported, got %+v", res.Failures)
	}
	if res.Total != 14 {
		t.Errorf("Total should come from the registry, got %d", res.Total)
	}

	want := map[string]model.PackageStatus{
		"iris":  model.StatusInstalled,
		"mnist": model.StatusUpdatable,
		"cifar": model.StatusNotInstalled,
	}
	if len(res.Items) != 3 {
		t.Fatalf("expected 3 items, got %v", names(res))
	}
	for _, it := range res.Items {
		if it.Status != want[it.Package.Name()] {
			t.Errorf("%s: status %s, want %s", it.Package.Name(), it.Status, want[it.Package.Name()])
		}
	}

	// Status filter
	res, err = svc.List(context.Background(), model.SiteRemote, model.SortSettings{}, model.FilterSettings{Status: model.StatusUpdatable}, model.DefaultPagination(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got := strings.Join(names(res), ","); got != "mnist@1.0.0" {
		t.Errorf("expected only mnist to be updatable, got %s", got)
	}
}

func TestService_RemoteListClampsPagination(t *testing.T) {
	registry := &fakeRegistry{infos: []*proto.PackageInfo{info(t, "iris", "0.1.0")}}
	svc := NewService(newLocal(t), registry, zaptest.NewLogger(t))

	page := model.PaginationSettings{Limit: math.MaxUint32, Offset: math.MaxInt32 + 5}
	if _, err := svc.List(context.Background(), model.SiteRemote, model.SortSettings{}, model.FilterSettings{}, page, 0); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if *registry.lastList.Limit != math.MaxInt32 || *registry.lastList.Offset != math.MaxInt32 {
		t.Errorf("limit and offset must clamp, got %d and %d", *registry.lastList.Limit, *registry.lastList.Offset)
	}
}

func TestService_RemoteSearchAndGet(t *testing.T) {
	registry := &fakeRegistry{infos: []*proto.PackageInfo{info(t, "iris", "0.1.0"), info(t, "mnist", "1.0.0")}}
	svc := NewService(newLocal(t), registry, nil)
	ctx := context.Background()

	res, err := svc.Search(ctx, model.SiteRemote, "mni", model.SortSettings{}, model.FilterSettings{}, model.DefaultPagination(), 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got := strings.Join(names(res), ","); got != "mnist@1.0.0" {
		t.Errorf("unexpected search result: %s", got)
	}

	item, err := svc.Get(ctx, model.SiteRemote, "iris", model.FilterSettings{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if item == nil || item.Package.Name() != "iris" || item.Status != model.StatusNotInstalled {
		t.Fatalf("unexpected item: %+v", item)
	}
	if !registry.lastGet.FieldOptions.GetIncludeDatapackageJson() {
		t.Error("remote get must request include_datapackage_json")
	}

	item, err = svc.Get(ctx, model.SiteRemote, "imagenet", model.FilterSettings{})
	if err != nil || item != nil {
		t.Fatalf("expected nil, nil, got %v, %v", item, err)
	}
}

func TestService_NoRemote(t *testing.T) {
	svc := NewService(newLocal(t), nil, nil)

	_, err := svc.List(context.Background(), model.SiteRemote, model.SortSettings{}, model.FilterSettings{}, model.DefaultPagination(), 0)
	if !errors.Is(err, ErrNoRemote) {
		t.Fatalf("expected ErrNoRemote, got %v", err)
	}
}

func TestInventoryStatus(t *testing.T) {
	inv := inventory{"iris": {"0.1.0", "0.2.0"}, "mnist": {"1.0.0"}}

	tests := []struct {
		name, version string
		want          model.PackageStatus
	}{
		{"iris", "0.2.0", model.StatusInstalled},
		{"iris", "0.1.5", model.StatusInstalled},
		{"iris", "1.0.0", model.StatusUpdatable},
		{"mnist", "1.0.0", model.StatusInstalled},
		{"cifar", "1.0.0", model.StatusNotInstalled},
	}
	for _, tt := range tests {
		pkg := datapackage.UncheckedFrom(descriptor(tt.name, tt.version))
		if got := inv.status(pkg); got != tt.want {
			t.Errorf("%s@%s: got %s, want %s", tt.name, tt.version, got, tt.want)
		}
	}
}
