package datapackage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Errors returned when converting a raw JSON field into a Package.
var (
	ErrNoJSON             = errors.New("datapackage: no datapackage json present")
	ErrInvalidJSON        = errors.New("datapackage: invalid json")
	ErrInvalidDataPackage = errors.New("datapackage: invalid data package")
)

// ParseNotValidated decodes a descriptor without validating it.
func ParseNotValidated(data []byte) (PackageNotValidated, error) {
	var u PackageNotValidated
	if err := json.Unmarshal(data, &u); err != nil {
		return PackageNotValidated{}, err
	}
	u.normalize()
	return u, nil
}

// Parse decodes and validates a descriptor. Decode failures wrap
// ErrInvalidJSON, validation failures wrap ErrInvalidDataPackage and the
// ValidationError.
func Parse(data []byte) (*Package, error) {
	u, err := ParseNotValidated(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	p, err := u.Validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataPackage, err)
	}
	return p, nil
}

// FromRawJSON converts an optional JSON string, as carried by the wire
// protocol, into a Package.
func FromRawJSON(raw *string) (*Package, error) {
	if raw == nil {
		return nil, ErrNoJSON
	}
	return Parse([]byte(*raw))
}

// LoadFileNotValidated reads a descriptor file without validating it.
func LoadFileNotValidated(path string) (PackageNotValidated, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PackageNotValidated{}, err
	}
	u, err := ParseNotValidated(data)
	if err != nil {
		return PackageNotValidated{}, fmt.Errorf("%s: %w: %w", path, ErrInvalidJSON, err)
	}
	return u, nil
}

// LoadFile reads and validates a descriptor file.
func LoadFile(path string) (*Package, error) {
	u, err := LoadFileNotValidated(path)
	if err != nil {
		return nil, err
	}
	p, err := u.Validate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrInvalidDataPackage, err)
	}
	return p, nil
}
