// Package datapackage implements the data package descriptor used by nebula.
//
// A descriptor is first parsed into the schema-agnostic PackageNotValidated
// form. Validate turns it into a Package, the only type the stores, the sync
// engine and the query layer accept. The delta extension to the data package
// standard lives in DeltaPackageNotValidated and DeltaResourceNotValidated.
package datapackage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FileName is the descriptor file name looked up inside package directories.
const FileName = "datapackage.json"

// PackageNotValidated is a structural parse of a datapackage.json document.
// Nothing about required fields is guaranteed.
type PackageNotValidated struct {
	Resources    []ResourceNotValidated    `json:"resources"`
	Schema       string                    `json:"$schema,omitempty"`
	Name         string                    `json:"name,omitempty"`
	ID           string                    `json:"id,omitempty"`
	Licenses     []License                 `json:"licenses,omitempty"`
	Title        string                    `json:"title,omitempty"`
	Description  string                    `json:"description,omitempty"`
	Homepage     string                    `json:"homepage,omitempty"`
	Image        string                    `json:"image,omitempty"`
	Version      string                    `json:"version,omitempty"`
	Created      string                    `json:"created,omitempty"`
	Keywords     []string                  `json:"keywords,omitempty"`
	Contributors []Contributor             `json:"contributors,omitempty"`
	Sources      []Source                  `json:"sources,omitempty"`
	Delta        *DeltaPackageNotValidated `json:"delta,omitempty"`
}

// ResourceNotValidated describes one file or inline payload of a package.
type ResourceNotValidated struct {
	Name string `json:"name"`

	// Path references one or many files.
	Path Paths `json:"path,omitempty"`

	// Data holds inline data: a string or any structured JSON value, kept
	// verbatim so numbers survive a round trip unchanged.
	Data json.RawMessage `json:"data,omitempty"`

	Type        string                     `json:"type,omitempty"`
	Description string                     `json:"description,omitempty"`
	Format      string                     `json:"format,omitempty"`
	MediaType   string                     `json:"mediatype,omitempty"`
	Encoding    string                     `json:"encoding,omitempty"`
	Bytes       uint64                     `json:"bytes,omitempty"`
	Hash        string                     `json:"hash,omitempty"`
	Sources     []Source                   `json:"sources,omitempty"`
	Delta       *DeltaResourceNotValidated `json:"delta,omitempty"`
}

// License names a license a package is distributed under.
type License struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
}

// Contributor is a person or organization credited by a package.
type Contributor struct {
	Title        string   `json:"title,omitempty"`
	GivenName    string   `json:"givenName,omitempty"`
	FamilyName   string   `json:"familyName,omitempty"`
	Path         string   `json:"path,omitempty"`
	Email        string   `json:"email,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	Organization string   `json:"organization,omitempty"`
}

// Source is a raw source a package or resource was derived from.
type Source struct {
	Title   string `json:"title,omitempty"`
	Path    string `json:"path,omitempty"`
	Email   string `json:"email,omitempty"`
	Version string `json:"version,omitempty"`
}

// DeltaPackageNotValidated is the nebula extension block of a package.
type DeltaPackageNotValidated struct {
	Category        string  `json:"category"`
	Classes         *uint32 `json:"classes,omitempty"`
	TrainingCount   *uint32 `json:"training_count,omitempty"`
	ValidationCount *uint32 `json:"validation_count,omitempty"`
	TestCount       *uint32 `json:"test_count,omitempty"`
	InputShape      string  `json:"input_shape"`
	Mirror          string  `json:"mirror,omitempty"`
}

// DeltaResourceNotValidated is the nebula extension block of a resource.
type DeltaResourceNotValidated struct {
	Origin       string `json:"origin"`
	Format       string `json:"format,omitempty"`
	LocalStorage string `json:"local_storage"`
}

// Paths is a resource path list. In JSON it is either a single string or
// an array of strings; a single path is written back as a string.
type Paths []string

// MarshalJSON implements json.Marshaler.
func (p Paths) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(p[0])
	}
	return json.Marshal([]string(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Paths) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*p = Paths{single}
	case '[':
		var many []string
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		if len(many) == 0 {
			*p = nil
			return nil
		}
		*p = many
	default:
		return fmt.Errorf("datapackage: path must be a string or an array of strings")
	}
	return nil
}

// normalize maps empty collections to nil so that a descriptor read back
// from disk compares equal to the one that was written.
func (u *PackageNotValidated) normalize() {
	if len(u.Resources) == 0 {
		u.Resources = nil
	}
	if len(u.Licenses) == 0 {
		u.Licenses = nil
	}
	if len(u.Keywords) == 0 {
		u.Keywords = nil
	}
	if len(u.Contributors) == 0 {
		u.Contributors = nil
	}
	if len(u.Sources) == 0 {
		u.Sources = nil
	}
	for i := range u.Resources {
		r := &u.Resources[i]
		if len(r.Sources) == 0 {
			r.Sources = nil
		}
		if len(r.Path) == 0 {
			r.Path = nil
		}
		r.Data = compactData(r.Data)
	}
	for i := range u.Contributors {
		if len(u.Contributors[i].Roles) == 0 {
			u.Contributors[i].Roles = nil
		}
	}
}

// Clone returns a deep copy of the descriptor.
func (u PackageNotValidated) Clone() PackageNotValidated {
	c := u
	if u.Resources != nil {
		c.Resources = make([]ResourceNotValidated, len(u.Resources))
		for i, r := range u.Resources {
			c.Resources[i] = r.clone()
		}
	}
	if u.Licenses != nil {
		c.Licenses = append([]License(nil), u.Licenses...)
	}
	if u.Keywords != nil {
		c.Keywords = append([]string(nil), u.Keywords...)
	}
	if u.Contributors != nil {
		c.Contributors = make([]Contributor, len(u.Contributors))
		for i, ct := range u.Contributors {
			ct.Roles = append([]string(nil), ct.Roles...)
			if len(ct.Roles) == 0 {
				ct.Roles = nil
			}
			c.Contributors[i] = ct
		}
	}
	if u.Sources != nil {
		c.Sources = append([]Source(nil), u.Sources...)
	}
	if u.Delta != nil {
		d := u.Delta.clone()
		c.Delta = &d
	}
	return c
}

func (r ResourceNotValidated) clone() ResourceNotValidated {
	c := r
	c.Data = compactData(r.Data)
	if r.Path != nil {
		c.Path = append(Paths(nil), r.Path...)
	}
	if r.Sources != nil {
		c.Sources = append([]Source(nil), r.Sources...)
	}
	if r.Delta != nil {
		d := *r.Delta
		c.Delta = &d
	}
	return c
}

// compactData copies inline data in compact form so descriptors compare equal
// regardless of the indentation they were read with. JSON null means absent.
func compactData(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return append(json.RawMessage(nil), data...)
	}
	if buf.String() == "null" {
		return nil
	}
	return buf.Bytes()
}

func (d DeltaPackageNotValidated) clone() DeltaPackageNotValidated {
	c := d
	c.Classes = copyUint32(d.Classes)
	c.TrainingCount = copyUint32(d.TrainingCount)
	c.ValidationCount = copyUint32(d.ValidationCount)
	c.TestCount = copyUint32(d.TestCount)
	return c
}

func copyUint32(v *uint32) *uint32 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
