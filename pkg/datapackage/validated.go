package datapackage

import (
	"encoding/json"
	"reflect"
)

// ValidationError enumerates the ways a descriptor can fail validation.
type ValidationError int

const (
	ErrInvalidName ValidationError = iota + 1
	ErrInvalidID
	ErrInvalidURL
	ErrInvalidEmail
	ErrInvalidResources
)

// Error implements the error interface.
func (e ValidationError) Error() string {
	switch e {
	case ErrInvalidName:
		return "datapackage: invalid name"
	case ErrInvalidID:
		return "datapackage: invalid id"
	case ErrInvalidURL:
		return "datapackage: invalid url"
	case ErrInvalidEmail:
		return "datapackage: invalid email"
	case ErrInvalidResources:
		return "datapackage: package must contain at least one resource"
	default:
		return "datapackage: validation failed"
	}
}

// Package is a descriptor that passed validation. The zero value is not
// usable; obtain one from Validate, Parse, LoadFile or UncheckedFrom.
type Package struct {
	inner PackageNotValidated
}

// Validate checks an unvalidated descriptor. Only the resources rule is
// enforced today: a package must describe at least one resource.
func (u PackageNotValidated) Validate() (*Package, error) {
	if len(u.Resources) == 0 {
		return nil, ErrInvalidResources
	}
	return &Package{inner: u.Clone()}, nil
}

// Validate is the function form of PackageNotValidated.Validate.
func Validate(u PackageNotValidated) (*Package, error) {
	return u.Validate()
}

// UncheckedFrom wraps a descriptor without checking it. Callers take over
// responsibility for the invariants Validate would have enforced.
func UncheckedFrom(u PackageNotValidated) *Package {
	return &Package{inner: u.Clone()}
}

// Descriptor returns a copy of the underlying descriptor.
func (p *Package) Descriptor() PackageNotValidated { return p.inner.Clone() }

// Name, ID, Version, Title, Description, Homepage, Image and Created return
// the descriptor fields of the same name.
func (p *Package) Name() string        { return p.inner.Name }
func (p *Package) ID() string          { return p.inner.ID }
func (p *Package) Version() string     { return p.inner.Version }
func (p *Package) Title() string       { return p.inner.Title }
func (p *Package) Description() string { return p.inner.Description }
func (p *Package) Homepage() string    { return p.inner.Homepage }
func (p *Package) Image() string       { return p.inner.Image }
func (p *Package) Created() string     { return p.inner.Created }

// Keywords returns a copy of the package keywords.
func (p *Package) Keywords() []string {
	return append([]string(nil), p.inner.Keywords...)
}

// Licenses returns a copy of the package licenses.
func (p *Package) Licenses() []License {
	return append([]License(nil), p.inner.Licenses...)
}

// Resources returns a copy of the package resources. Never empty for a
// validated package.
func (p *Package) Resources() []ResourceNotValidated {
	return p.inner.Clone().Resources
}

// Delta returns a copy of the nebula extension block, or nil.
func (p *Package) Delta() *DeltaPackageNotValidated {
	if p.inner.Delta == nil {
		return nil
	}
	d := p.inner.Delta.clone()
	return &d
}

// LicenseName returns the name of the first license, or "" when none is set.
func (p *Package) LicenseName() string {
	if len(p.inner.Licenses) == 0 {
		return ""
	}
	return p.inner.Licenses[0].Name
}

// WithID returns a copy of the package carrying the given id.
func (p *Package) WithID(id string) *Package {
	c := p.inner.Clone()
	c.ID = id
	return &Package{inner: c}
}

// Clone returns a deep copy of the package.
func (p *Package) Clone() *Package {
	return &Package{inner: p.inner.Clone()}
}

// Equal reports whether both packages carry the same descriptor.
func (p *Package) Equal(other *Package) bool {
	if p == nil || other == nil {
		return p == other
	}
	return reflect.DeepEqual(p.inner, other.inner)
}

// MarshalJSON writes the descriptor in datapackage.json form.
func (p *Package) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.inner)
}

// MarshalIndent writes the descriptor the way it is stored on disk.
func (p *Package) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(p.inner, "", "  ")
}

// UnmarshalJSON parses and validates a descriptor.
func (p *Package) UnmarshalJSON(data []byte) error {
	v, err := Parse(data)
	if err != nil {
		return err
	}
	p.inner = v.inner
	return nil
}
