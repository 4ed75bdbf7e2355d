// Package model holds the query settings shared by the metadata sources, the
// query layer and the registry server, plus the mappers to and from the wire
// messages.
package model

import (
	"fmt"
	"strings"

	"github.com/blackportal-ai/nebula/api/proto"
)

// PackageType selects datasets, models, or both.
type PackageType = proto.PackageType

const (
	PackageTypeBoth    = proto.PackageTypeBoth
	PackageTypeDataset = proto.PackageTypeDataset
	PackageTypeModel   = proto.PackageTypeModel
)

// ParsePackageType accepts both, dataset and model in any case.
func ParsePackageType(s string) (PackageType, error) {
	switch strings.ToLower(s) {
	case "", "both", "all":
		return PackageTypeBoth, nil
	case "dataset", "datasets":
		return PackageTypeDataset, nil
	case "model", "models":
		return PackageTypeModel, nil
	default:
		return PackageTypeBoth, fmt.Errorf("unknown package type %q", s)
	}
}

// Site selects where a query runs.
type Site int

const (
	SiteLocal Site = iota
	SiteRemote
)

func (s Site) String() string {
	if s == SiteRemote {
		return "remote"
	}
	return "local"
}

// ParseSite accepts local and remote in any case.
func ParseSite(s string) (Site, error) {
	switch strings.ToLower(s) {
	case "", "local":
		return SiteLocal, nil
	case "remote":
		return SiteRemote, nil
	default:
		return SiteLocal, fmt.Errorf("unknown site %q (must be local or remote)", s)
	}
}

// PackageStatus relates a package to the local cache.
type PackageStatus int

const (
	// StatusAny disables status filtering.
	StatusAny PackageStatus = iota
	StatusNotInstalled
	StatusInstalled
	StatusUpdatable
)

func (s PackageStatus) String() string {
	switch s {
	case StatusNotInstalled:
		return "not-installed"
	case StatusInstalled:
		return "installed"
	case StatusUpdatable:
		return "updatable"
	default:
		return "any"
	}
}

// ParsePackageStatus accepts the String forms.
func ParsePackageStatus(s string) (PackageStatus, error) {
	switch strings.ToLower(s) {
	case "", "any", "all":
		return StatusAny, nil
	case "not-installed", "notinstalled":
		return StatusNotInstalled, nil
	case "installed":
		return StatusInstalled, nil
	case "updatable", "updateable":
		return StatusUpdatable, nil
	default:
		return StatusAny, fmt.Errorf("unknown package status %q", s)
	}
}

// MetaDataField names a heavy optional field of a package summary.
type MetaDataField uint8

const (
	FieldDataPackage MetaDataField = 1 << iota
	FieldPreviewImages
)

// FieldSettings is a set of MetaDataField values.
type FieldSettings uint8

// NewFieldSettings returns the set holding fields.
func NewFieldSettings(fields ...MetaDataField) FieldSettings {
	var fs FieldSettings
	for _, f := range fields {
		fs |= FieldSettings(f)
	}
	return fs
}

// Has reports whether f is in the set.
func (fs FieldSettings) Has(f MetaDataField) bool {
	return fs&FieldSettings(f) != 0
}

// With returns the set with f added.
func (fs FieldSettings) With(f MetaDataField) FieldSettings {
	return fs | FieldSettings(f)
}

// DefaultLimit is the page size used when a request does not name one.
const DefaultLimit = 30

// PaginationSettings selects a window of a result set.
type PaginationSettings struct {
	Limit  uint32
	Offset uint32
}

// DefaultPagination returns the first page of DefaultLimit entries.
func DefaultPagination() PaginationSettings {
	return PaginationSettings{Limit: DefaultLimit}
}

// Unbounded returns pagination that keeps every entry.
func Unbounded() PaginationSettings {
	return PaginationSettings{}
}

// SortField names the key a listing is ordered by.
type SortField int

const (
	// SortNone keeps the source order.
	SortNone SortField = iota
	SortByName
	SortByVersion
)

// ParseSortField accepts name and version.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return SortNone, nil
	case "name":
		return SortByName, nil
	case "version":
		return SortByVersion, nil
	default:
		return SortNone, fmt.Errorf("unknown sort field %q", s)
	}
}

func (f SortField) String() string {
	switch f {
	case SortByName:
		return "name"
	case SortByVersion:
		return "version"
	default:
		return ""
	}
}

// SortSettings orders a listing. The zero value keeps source order.
type SortSettings struct {
	By         SortField
	Descending bool
}

// FilterSettings narrows a listing.
type FilterSettings struct {
	PackageType PackageType

	// Query keeps packages whose name contains it; empty keeps all.
	Query string

	// Status is evaluated by the query layer against the local cache.
	Status PackageStatus
}
