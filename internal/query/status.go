package query

import (
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// inventory maps a package name to the versions held by the local cache.
type inventory map[string][]string

// status relates pkg to the local cache. A package is installed when the
// cache holds its version or a newer one, and updatable when the cache only
// holds older versions.
func (inv inventory) status(pkg *datapackage.Package) model.PackageStatus {
	versions, ok := inv[pkg.Name()]
	if !ok {
		return model.StatusNotInstalled
	}
	for _, v := range versions {
		if model.CompareVersions(v, pkg.Version()) >= 0 {
			return model.StatusInstalled
		}
	}
	return model.StatusUpdatable
}

// annotate pairs every package with its status and drops those not
// matching want. StatusAny keeps everything.
func (inv inventory) annotate(pkgs []*datapackage.Package, want model.PackageStatus) []Item {
	items := make([]Item, 0, len(pkgs))
	for _, p := range pkgs {
		st := inv.status(p)
		if want != model.StatusAny && st != want {
			continue
		}
		items = append(items, Item{Package: p, Status: st})
	}
	return items
}
