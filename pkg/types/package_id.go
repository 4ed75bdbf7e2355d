package types

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// PackageID is the stable identity of a package descriptor.
// It is a random 128-bit UUID rendered in its canonical string form.
type PackageID uuid.UUID

// NilPackageID is the zero identity. It is never handed out by NewPackageID.
var NilPackageID = PackageID(uuid.Nil)

// NewPackageID generates a fresh random identity.
func NewPackageID() PackageID {
	return PackageID(uuid.New())
}

// ParsePackageID parses the canonical string form of a package identity.
// Any string that does not parse as a UUID, or parses to the nil UUID, is rejected.
func ParsePackageID(s string) (PackageID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilPackageID, fmt.Errorf("%w: %q: %v", ErrMalformedPackageID, s, err)
	}
	if u == uuid.Nil {
		return NilPackageID, fmt.Errorf("%w: nil identity", ErrMalformedPackageID)
	}
	return PackageID(u), nil
}

// MustParsePackageID is like ParsePackageID but panics on error.
// It is meant for tests and constants.
func MustParsePackageID(s string) PackageID {
	id, err := ParsePackageID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical lowercase form, e.g. 6ba7b810-9dad-11d1-80b4-00c04fd430c8.
func (id PackageID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero identity.
func (id PackageID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText implements encoding.TextMarshaler.
func (id PackageID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *PackageID) UnmarshalText(data []byte) error {
	parsed, err := ParsePackageID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements driver.Valuer so ids can be stored in TEXT columns.
func (id PackageID) Value() (driver.Value, error) {
	return id.String(), nil
}

// Scan implements sql.Scanner.
func (id *PackageID) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return id.UnmarshalText([]byte(v))
	case []byte:
		return id.UnmarshalText(v)
	case nil:
		*id = NilPackageID
		return nil
	default:
		return fmt.Errorf("types: cannot scan %T into PackageID", src)
	}
}
