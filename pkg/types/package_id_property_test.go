package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_PackageIDRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("String then Parse yields the same identity", prop.ForAll(
		func(n int) bool {
			id := NewPackageID()
			parsed, err := ParsePackageID(id.String())
			return err == nil && parsed == id
		},
		gen.IntRange(0, 1000),
	))

	properties.Property("freshly generated identities do not collide", prop.ForAll(
		func(count int) bool {
			seen := make(map[PackageID]struct{}, count)
			for i := 0; i < count; i++ {
				id := NewPackageID()
				if _, dup := seen[id]; dup {
					return false
				}
				seen[id] = struct{}{}
			}
			return true
		},
		gen.IntRange(2, 500),
	))

	properties.Property("arbitrary short strings are rejected", prop.ForAll(
		func(s string) bool {
			_, err := ParsePackageID(s)
			return err != nil
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) < 32 }),
	))

	properties.TestingRun(t)
}
