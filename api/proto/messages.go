// Package proto holds the wire messages and the gRPC service description of
// the nebula package query protocol (see nebula.proto). Messages are encoded
// with protowire and travel under the "nebula" content subtype.
package proto

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// PackageType selects datasets, models, or both.
type PackageType int32

const (
	PackageTypeBoth    PackageType = 0
	PackageTypeDataset PackageType = 1
	PackageTypeModel   PackageType = 2
)

func (t PackageType) String() string {
	switch t {
	case PackageTypeBoth:
		return "BOTH"
	case PackageTypeDataset:
		return "DATASET"
	case PackageTypeModel:
		return "MODEL"
	default:
		return "UNKNOWN"
	}
}

// FieldOptions selects the heavy optional fields of PackageInfo.
type FieldOptions struct {
	IncludeDatapackageJson bool
	IncludePreviewImages   bool
}

func (m *FieldOptions) GetIncludeDatapackageJson() bool {
	return m != nil && m.IncludeDatapackageJson
}

func (m *FieldOptions) GetIncludePreviewImages() bool {
	return m != nil && m.IncludePreviewImages
}

func (m *FieldOptions) Marshal() ([]byte, error) {
	var b []byte
	b = appendBool(b, 1, m.IncludeDatapackageJson)
	b = appendBool(b, 2, m.IncludePreviewImages)
	return b, nil
}

func (m *FieldOptions) Unmarshal(b []byte) error {
	*m = FieldOptions{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBool(typ, b, &m.IncludeDatapackageJson), nil
		case 2:
			return consumeBool(typ, b, &m.IncludePreviewImages), nil
		}
		return skipField, nil
	})
}

// SortOption orders a listing by one field.
type SortOption struct {
	Field      string
	Descending bool
}

func (m *SortOption) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Field)
	b = appendBool(b, 2, m.Descending)
	return b, nil
}

func (m *SortOption) Unmarshal(b []byte) error {
	*m = SortOption{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Field), nil
		case 2:
			return consumeBool(typ, b, &m.Descending), nil
		}
		return skipField, nil
	})
}

// PackageRequest asks for the first package whose name contains SearchQuery.
type PackageRequest struct {
	SearchQuery  string
	PackageType  *PackageType
	FieldOptions *FieldOptions
}

func (m *PackageRequest) GetSearchQuery() string {
	if m == nil {
		return ""
	}
	return m.SearchQuery
}

func (m *PackageRequest) GetPackageType() PackageType {
	if m == nil || m.PackageType == nil {
		return PackageTypeBoth
	}
	return *m.PackageType
}

func (m *PackageRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.SearchQuery)
	if m.PackageType != nil {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(*m.PackageType)))
	}
	if m.FieldOptions != nil {
		fo, _ := m.FieldOptions.Marshal()
		b = appendMessage(b, 3, fo)
	}
	return b, nil
}

func (m *PackageRequest) Unmarshal(b []byte) error {
	*m = PackageRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.SearchQuery), nil
		case 2:
			var v int64
			n := consumeInt64(typ, b, &v)
			if n >= 0 {
				pt := PackageType(v)
				m.PackageType = &pt
			}
			return n, nil
		case 3:
			m.FieldOptions = &FieldOptions{}
			return consumeMessage(typ, b, m.FieldOptions)
		}
		return skipField, nil
	})
}

// ListPackagesRequest pages through the catalog.
type ListPackagesRequest struct {
	LastSync     *int64
	PackageType  PackageType
	Sort         []*SortOption
	Limit        *int32
	Offset       *int32
	FieldOptions *FieldOptions
}

func (m *ListPackagesRequest) GetLimit() (int32, bool) {
	if m == nil || m.Limit == nil {
		return 0, false
	}
	return *m.Limit, true
}

func (m *ListPackagesRequest) GetOffset() (int32, bool) {
	if m == nil || m.Offset == nil {
		return 0, false
	}
	return *m.Offset, true
}

func (m *ListPackagesRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendOptionalInt64(b, 1, m.LastSync)
	b = appendInt64(b, 2, int64(m.PackageType))
	for _, s := range m.Sort {
		enc, _ := s.Marshal()
		b = appendMessage(b, 3, enc)
	}
	b = appendOptionalInt32(b, 4, m.Limit)
	b = appendOptionalInt32(b, 5, m.Offset)
	if m.FieldOptions != nil {
		fo, _ := m.FieldOptions.Marshal()
		b = appendMessage(b, 6, fo)
	}
	return b, nil
}

func (m *ListPackagesRequest) Unmarshal(b []byte) error {
	*m = ListPackagesRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeOptionalInt64(typ, b, &m.LastSync), nil
		case 2:
			var v int64
			n := consumeInt64(typ, b, &v)
			m.PackageType = PackageType(v)
			return n, nil
		case 3:
			s := &SortOption{}
			n, err := consumeMessage(typ, b, s)
			if n >= 0 && err == nil {
				m.Sort = append(m.Sort, s)
			}
			return n, err
		case 4:
			return consumeOptionalInt32(typ, b, &m.Limit), nil
		case 5:
			return consumeOptionalInt32(typ, b, &m.Offset), nil
		case 6:
			m.FieldOptions = &FieldOptions{}
			return consumeMessage(typ, b, m.FieldOptions)
		}
		return skipField, nil
	})
}

// SearchPackagesRequest is a free-text query over the catalog.
type SearchPackagesRequest struct {
	SearchQuery  string
	PackageType  PackageType
	Sort         []*SortOption
	Limit        *int32
	Offset       *int32
	FieldOptions *FieldOptions
}

func (m *SearchPackagesRequest) GetLimit() (int32, bool) {
	if m == nil || m.Limit == nil {
		return 0, false
	}
	return *m.Limit, true
}

func (m *SearchPackagesRequest) GetOffset() (int32, bool) {
	if m == nil || m.Offset == nil {
		return 0, false
	}
	return *m.Offset, true
}

func (m *SearchPackagesRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.SearchQuery)
	b = appendInt64(b, 2, int64(m.PackageType))
	for _, s := range m.Sort {
		enc, _ := s.Marshal()
		b = appendMessage(b, 3, enc)
	}
	b = appendOptionalInt32(b, 4, m.Limit)
	b = appendOptionalInt32(b, 5, m.Offset)
	if m.FieldOptions != nil {
		fo, _ := m.FieldOptions.Marshal()
		b = appendMessage(b, 6, fo)
	}
	return b, nil
}

func (m *SearchPackagesRequest) Unmarshal(b []byte) error {
	*m = SearchPackagesRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.SearchQuery), nil
		case 2:
			var v int64
			n := consumeInt64(typ, b, &v)
			m.PackageType = PackageType(v)
			return n, nil
		case 3:
			s := &SortOption{}
			n, err := consumeMessage(typ, b, s)
			if n >= 0 && err == nil {
				m.Sort = append(m.Sort, s)
			}
			return n, err
		case 4:
			return consumeOptionalInt32(typ, b, &m.Limit), nil
		case 5:
			return consumeOptionalInt32(typ, b, &m.Offset), nil
		case 6:
			m.FieldOptions = &FieldOptions{}
			return consumeMessage(typ, b, m.FieldOptions)
		}
		return skipField, nil
	})
}

// PackageInfo is the wire summary of one package.
type PackageInfo struct {
	Name            string
	Version         string
	Description     string
	License         string
	DatapackageJson *string
	PreviewImages   []string
}

// GetDatapackageJson returns the raw descriptor, or "" when it was not sent.
func (m *PackageInfo) GetDatapackageJson() string {
	if m == nil || m.DatapackageJson == nil {
		return ""
	}
	return *m.DatapackageJson
}

func (m *PackageInfo) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.Version)
	b = appendString(b, 3, m.Description)
	b = appendString(b, 4, m.License)
	b = appendOptionalString(b, 5, m.DatapackageJson)
	for _, img := range m.PreviewImages {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendString(b, img)
	}
	return b, nil
}

func (m *PackageInfo) Unmarshal(b []byte) error {
	*m = PackageInfo{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Name), nil
		case 2:
			return consumeString(typ, b, &m.Version), nil
		case 3:
			return consumeString(typ, b, &m.Description), nil
		case 4:
			return consumeString(typ, b, &m.License), nil
		case 5:
			return consumeOptionalString(typ, b, &m.DatapackageJson), nil
		case 6:
			var img string
			n := consumeString(typ, b, &img)
			if n >= 0 {
				m.PreviewImages = append(m.PreviewImages, img)
			}
			return n, nil
		}
		return skipField, nil
	})
}

// PackageList is a page of package summaries.
type PackageList struct {
	Packages   []*PackageInfo
	TotalCount int32
	Limit      *int32
	Offset     *int32
}

func (m *PackageList) Marshal() ([]byte, error) {
	var b []byte
	for _, p := range m.Packages {
		enc, _ := p.Marshal()
		b = appendMessage(b, 1, enc)
	}
	b = appendInt64(b, 2, int64(m.TotalCount))
	b = appendOptionalInt32(b, 3, m.Limit)
	b = appendOptionalInt32(b, 4, m.Offset)
	return b, nil
}

func (m *PackageList) Unmarshal(b []byte) error {
	*m = PackageList{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			p := &PackageInfo{}
			n, err := consumeMessage(typ, b, p)
			if n >= 0 && err == nil {
				m.Packages = append(m.Packages, p)
			}
			return n, err
		case 2:
			var v int64
			n := consumeInt64(typ, b, &v)
			m.TotalCount = int32(v)
			return n, nil
		case 3:
			return consumeOptionalInt32(typ, b, &m.Limit), nil
		case 4:
			return consumeOptionalInt32(typ, b, &m.Offset), nil
		}
		return skipField, nil
	})
}

// Int32 returns a pointer to v, for optional fields.
func Int32(v int32) *int32 { return &v }

// Int64 returns a pointer to v, for optional fields.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v, for optional fields.
func String(v string) *string { return &v }
