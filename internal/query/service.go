// Package query routes package queries to the local cache or a remote
// registry and normalises the results into validated descriptors.
package query

import (
	"context"

	"go.uber.org/zap"

	"github.com/blackportal-ai/nebula/api/proto"
	nebulaerrors "github.com/blackportal-ai/nebula/internal/errors"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/internal/remote"
	"github.com/blackportal-ai/nebula/internal/storage"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// ErrNoRemote is returned when a remote query is made on a service built
// without a registry client.
var ErrNoRemote = nebulaerrors.NewQueryError(nebulaerrors.CodeInvalidArgument, "no remote registry configured")

// Item is one query result.
type Item struct {
	Package *datapackage.Package
	Status  model.PackageStatus
}

// Result is one page of query results.
type Result struct {
	Items []Item

	// Total is the number of matches before pagination, as reported by the
	// site that answered.
	Total int

	// Failures lists remote summaries whose descriptor could not be used.
	Failures []model.Conversion
}

// Packages returns the descriptors of the result items.
func (r *Result) Packages() []*datapackage.Package {
	out := make([]*datapackage.Package, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Package
	}
	return out
}

// Service answers list, search and get queries against the local cache
// and an optional remote registry.
type Service struct {
	local  storage.MetadataSource
	remote remote.Registry
	logger *zap.Logger
}

// NewService creates a query service. registry may be nil, in which case
// remote queries fail with ErrNoRemote.
func NewService(local storage.MetadataSource, registry remote.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		local:  local,
		remote: registry,
		logger: logger,
	}
}

// List returns one page of the catalog of site.
func (s *Service) List(ctx context.Context, site model.Site, sort model.SortSettings, filter model.FilterSettings, page model.PaginationSettings, fields model.FieldSettings) (*Result, error) {
	if site == model.SiteRemote {
		if s.remote == nil {
			return nil, ErrNoRemote
		}
		limit, offset := model.PaginationToRequest(page)
		list, err := s.remote.ListPackages(ctx, &proto.ListPackagesRequest{
			PackageType:  filter.PackageType,
			Sort:         model.SortOptionsFrom(sort),
			Limit:        limit,
			Offset:       offset,
			FieldOptions: remoteFields(fields),
		})
		if err != nil {
			return nil, err
		}
		return s.fromRemote(ctx, list, filter)
	}

	pkgs, err := s.local.List(ctx, sort, filter, page, fields)
	if err != nil {
		return nil, err
	}
	return s.fromLocal(ctx, pkgs, sort, filter, page)
}

// Search runs a free-text query against site.
func (s *Service) Search(ctx context.Context, site model.Site, query string, sort model.SortSettings, filter model.FilterSettings, page model.PaginationSettings, fields model.FieldSettings) (*Result, error) {
	if site == model.SiteRemote {
		if s.remote == nil {
			return nil, ErrNoRemote
		}
		limit, offset := model.PaginationToRequest(page)
		list, err := s.remote.SearchPackages(ctx, &proto.SearchPackagesRequest{
			SearchQuery:  query,
			PackageType:  filter.PackageType,
			Sort:         model.SortOptionsFrom(sort),
			Limit:        limit,
			Offset:       offset,
			FieldOptions: remoteFields(fields),
		})
		if err != nil {
			return nil, err
		}
		return s.fromRemote(ctx, list, filter)
	}

	pkgs, err := s.local.Search(ctx, query, sort, filter, page)
	if err != nil {
		return nil, err
	}
	return s.fromLocal(ctx, pkgs, sort, filter, page)
}

// Get returns the first package of site whose name contains query, or nil
// when there is none.
func (s *Service) Get(ctx context.Context, site model.Site, query string, filter model.FilterSettings) (*Item, error) {
	var pkg *datapackage.Package
	if site == model.SiteRemote {
		if s.remote == nil {
			return nil, ErrNoRemote
		}
		pt := filter.PackageType
		info, err := s.remote.GetPackageInfo(ctx, &proto.PackageRequest{
			SearchQuery:  query,
			PackageType:  &pt,
			FieldOptions: remoteFields(0),
		})
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, nil
		}
		pkg, err = datapackage.FromRawJSON(info.DatapackageJson)
		if err != nil {
			return nil, nebulaerrors.NewRemoteError(nebulaerrors.CodeBadResponse, "registry returned an unusable descriptor for "+info.Name, err)
		}
	} else {
		var err error
		pkg, err = s.local.Get(ctx, query, filter)
		if err != nil || pkg == nil {
			return nil, err
		}
	}

	installed, err := s.installed(ctx)
	if err != nil {
		return nil, err
	}
	return &Item{Package: pkg, Status: installed.status(pkg)}, nil
}

func (s *Service) fromLocal(ctx context.Context, pkgs []*datapackage.Package, sort model.SortSettings, filter model.FilterSettings, page model.PaginationSettings) (*Result, error) {
	installed, err := s.installed(ctx)
	if err != nil {
		return nil, err
	}

	matched := model.ApplyFilter(pkgs, filter)
	model.ApplySort(matched, sort)
	items := installed.annotate(matched, filter.Status)

	return &Result{
		Items: paginate(items, page),
		Total: len(items),
	}, nil
}

// fromRemote converts a remote page. The registry already paginated it, so
// only the name and status filters are applied here.
func (s *Service) fromRemote(ctx context.Context, list *proto.PackageList, filter model.FilterSettings) (*Result, error) {
	pkgs, failures := model.PackagesFromInfos(list.Packages)
	for _, f := range failures {
		s.logger.Warn("skipping remote package",
			zap.String("name", f.Name),
			zap.String("version", f.Version),
			zap.Error(f.Err),
		)
	}

	installed, err := s.installed(ctx)
	if err != nil {
		return nil, err
	}

	matched := model.ApplyFilter(pkgs, filter)
	return &Result{
		Items:    installed.annotate(matched, filter.Status),
		Total:    int(list.TotalCount),
		Failures: failures,
	}, nil
}

// installed indexes the local cache by name.
func (s *Service) installed(ctx context.Context) (inventory, error) {
	pkgs, err := s.local.List(ctx, model.SortSettings{}, model.FilterSettings{}, model.Unbounded(), 0)
	if err != nil {
		return nil, err
	}
	inv := make(inventory, len(pkgs))
	for _, p := range pkgs {
		inv[p.Name()] = append(inv[p.Name()], p.Version())
	}
	return inv, nil
}

// remoteFields always asks for the raw descriptor so remote results can be
// validated like local ones.
func remoteFields(fields model.FieldSettings) *proto.FieldOptions {
	return model.FieldOptionsFrom(fields.With(model.FieldDataPackage))
}

func paginate(items []Item, p model.PaginationSettings) []Item {
	offset := int(p.Offset)
	if offset >= len(items) {
		return []Item{}
	}
	end := len(items)
	if p.Limit > 0 && offset+int(p.Limit) < end {
		end = offset + int(p.Limit)
	}
	return items[offset:end]
}
