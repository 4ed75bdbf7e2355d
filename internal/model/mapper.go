package model

import (
	"math"
	"strings"

	"github.com/blackportal-ai/nebula/api/proto"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// Defaults used when a descriptor lacks the field a summary needs.
const (
	DefaultInfoName        = "No name"
	DefaultInfoVersion     = "0.1.0"
	DefaultInfoDescription = "No Description"
	DefaultInfoLicense     = "UNKNOWN"
)

// PaginationFromRequest maps limit and offset, keeping defaults for absent
// or negative values.
func PaginationFromRequest(limit, offset *int32) PaginationSettings {
	p := DefaultPagination()
	if limit != nil && *limit >= 0 {
		p.Limit = uint32(*limit)
	}
	if offset != nil && *offset >= 0 {
		p.Offset = uint32(*offset)
	}
	return p
}

// PaginationToRequest maps pagination to the wire limit and offset. Values
// above math.MaxInt32 are clamped instead of wrapping negative.
func PaginationToRequest(p PaginationSettings) (limit, offset *int32) {
	return proto.Int32(clampInt32(p.Limit)), proto.Int32(clampInt32(p.Offset))
}

func clampInt32(v uint32) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}

// FieldsFromOptions maps the wire field options.
func FieldsFromOptions(fo *proto.FieldOptions) FieldSettings {
	var fs FieldSettings
	if fo.GetIncludeDatapackageJson() {
		fs = fs.With(FieldDataPackage)
	}
	if fo.GetIncludePreviewImages() {
		fs = fs.With(FieldPreviewImages)
	}
	return fs
}

// FieldOptionsFrom maps a field set to the wire options.
func FieldOptionsFrom(fs FieldSettings) *proto.FieldOptions {
	return &proto.FieldOptions{
		IncludeDatapackageJson: fs.Has(FieldDataPackage),
		IncludePreviewImages:   fs.Has(FieldPreviewImages),
	}
}

// SortFromRequest uses the first sort option that names a known field.
func SortFromRequest(opts []*proto.SortOption) SortSettings {
	for _, o := range opts {
		if o == nil {
			continue
		}
		by, err := ParseSortField(o.Field)
		if err != nil || by == SortNone {
			continue
		}
		return SortSettings{By: by, Descending: o.Descending}
	}
	return SortSettings{}
}

// SortOptionsFrom maps sort settings to the wire form.
func SortOptionsFrom(s SortSettings) []*proto.SortOption {
	if s.By == SortNone {
		return nil
	}
	return []*proto.SortOption{{Field: s.By.String(), Descending: s.Descending}}
}

// FilterFromPackageRequest maps a single-package request.
func FilterFromPackageRequest(req *proto.PackageRequest) FilterSettings {
	return FilterSettings{PackageType: req.GetPackageType()}
}

// ListSettingsFromRequest maps a list request to settings.
func ListSettingsFromRequest(req *proto.ListPackagesRequest) (SortSettings, FilterSettings, PaginationSettings, FieldSettings) {
	return SortFromRequest(req.Sort),
		FilterSettings{PackageType: req.PackageType},
		PaginationFromRequest(req.Limit, req.Offset),
		FieldsFromOptions(req.FieldOptions)
}

// SearchSettingsFromRequest maps a search request to settings.
func SearchSettingsFromRequest(req *proto.SearchPackagesRequest) (SortSettings, FilterSettings, PaginationSettings, FieldSettings) {
	return SortFromRequest(req.Sort),
		FilterSettings{PackageType: req.PackageType},
		PaginationFromRequest(req.Limit, req.Offset),
		FieldsFromOptions(req.FieldOptions)
}

// InfoFromPackage builds the wire summary of a package. The raw descriptor
// and preview images are only included when fields asks for them.
func InfoFromPackage(pkg *datapackage.Package, fields FieldSettings) (*proto.PackageInfo, error) {
	info := &proto.PackageInfo{
		Name:        orDefault(pkg.Name(), DefaultInfoName),
		Version:     orDefault(pkg.Version(), DefaultInfoVersion),
		Description: orDefault(pkg.Description(), DefaultInfoDescription),
		License:     licenseSummary(pkg.Licenses()),
	}

	if fields.Has(FieldDataPackage) {
		raw, err := pkg.MarshalJSON()
		if err != nil {
			return nil, err
		}
		info.DatapackageJson = proto.String(string(raw))
	}
	if fields.Has(FieldPreviewImages) && pkg.Image() != "" {
		info.PreviewImages = []string{pkg.Image()}
	}
	return info, nil
}

// InfosFromPackages maps every package; the first marshal failure aborts.
func InfosFromPackages(pkgs []*datapackage.Package, fields FieldSettings) ([]*proto.PackageInfo, error) {
	out := make([]*proto.PackageInfo, 0, len(pkgs))
	for _, p := range pkgs {
		info, err := InfoFromPackage(p, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// Conversion records a wire summary that could not become a package.
type Conversion struct {
	Name    string
	Version string
	Err     error
}

// PackagesFromInfos converts every summary that carries a valid descriptor.
// Summaries that fail are returned separately so the caller can report them.
func PackagesFromInfos(infos []*proto.PackageInfo) ([]*datapackage.Package, []Conversion) {
	pkgs := make([]*datapackage.Package, 0, len(infos))
	var failed []Conversion
	for _, info := range infos {
		pkg, err := datapackage.FromRawJSON(info.DatapackageJson)
		if err != nil {
			failed = append(failed, Conversion{Name: info.Name, Version: info.Version, Err: err})
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, failed
}

func licenseSummary(licenses []datapackage.License) string {
	names := make([]string, 0, len(licenses))
	for _, l := range licenses {
		if l.Name != "" {
			names = append(names, l.Name)
		}
	}
	if len(names) == 0 {
		return DefaultInfoLicense
	}
	return strings.Join(names, ", ")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
