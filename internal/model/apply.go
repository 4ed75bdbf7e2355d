package model

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// Apply filters, sorts and pages pkgs, in that order. The input slice is
// not modified.
func Apply(pkgs []*datapackage.Package, s SortSettings, f FilterSettings, p PaginationSettings) []*datapackage.Package {
	out := ApplyFilter(pkgs, f)
	ApplySort(out, s)
	return ApplyPagination(out, p)
}

// ApplyFilter keeps packages whose name contains f.Query, ignoring case.
// Descriptors carry no dataset/model marker, so f.PackageType does not
// narrow the result.
func ApplyFilter(pkgs []*datapackage.Package, f FilterSettings) []*datapackage.Package {
	out := make([]*datapackage.Package, 0, len(pkgs))
	query := strings.ToLower(f.Query)
	for _, p := range pkgs {
		if query != "" && !strings.Contains(strings.ToLower(p.Name()), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ApplySort orders pkgs in place. Ties keep their previous order.
func ApplySort(pkgs []*datapackage.Package, s SortSettings) {
	var less func(a, b *datapackage.Package) int
	switch s.By {
	case SortByName:
		less = func(a, b *datapackage.Package) int {
			if c := strings.Compare(a.Name(), b.Name()); c != 0 {
				return c
			}
			return CompareVersions(a.Version(), b.Version())
		}
	case SortByVersion:
		less = func(a, b *datapackage.Package) int {
			if c := CompareVersions(a.Version(), b.Version()); c != 0 {
				return c
			}
			return strings.Compare(a.Name(), b.Name())
		}
	default:
		return
	}

	sort.SliceStable(pkgs, func(i, j int) bool {
		c := less(pkgs[i], pkgs[j])
		if s.Descending {
			return c > 0
		}
		return c < 0
	})
}

// ApplyPagination returns the window selected by p. A zero limit keeps
// everything after the offset.
func ApplyPagination(pkgs []*datapackage.Package, p PaginationSettings) []*datapackage.Package {
	offset := int(p.Offset)
	if offset >= len(pkgs) {
		return []*datapackage.Package{}
	}
	end := len(pkgs)
	if p.Limit > 0 && offset+int(p.Limit) < end {
		end = offset + int(p.Limit)
	}
	return pkgs[offset:end]
}

// CompareVersions orders two version strings. Semantic versions compare by
// precedence and sort after anything that does not parse; unparsable
// versions compare as plain strings.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}
