package syncer

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/blackportal-ai/nebula/api/proto"
	"github.com/blackportal-ai/nebula/internal/storage"
)

// TestProperty_PartialFailureIsolation checks that a failing remote item
// never prevents a valid item from being stored.
func TestProperty_PartialFailureIsolation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("synced equals the number of valid items", prop.ForAll(
		func(valid []bool, pageSize int) bool {
			target, err := storage.NewRootFolderSource(t.TempDir(), nil)
			if err != nil {
				return false
			}

			registry := &fakeRegistry{}
			want := 0
			for i, ok := range valid {
				name := fmt.Sprintf("pkg%d", i)
				info := &proto.PackageInfo{Name: name, Version: "1.0.0"}
				if ok {
					info.DatapackageJson = rawDescriptor(t, name, "1.0.0")
					want++
				} else if i%2 == 0 {
					info.DatapackageJson = proto.String(`{"resources":`)
				}
				registry.infos = append(registry.infos, info)
			}

			report, err := NewEngine(registry, target, Options{PageSize: pageSize}).Sync(context.Background(), Args{})
			if err != nil {
				return false
			}
			return report.Synced == want &&
				report.Skipped == len(valid)-want &&
				report.Fetched == len(valid) &&
				target.Len() == want
		},
		gen.SliceOfN(12, gen.Bool()),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
