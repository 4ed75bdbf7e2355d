package types

import "errors"

// PackageID-related errors
var (
	// ErrMalformedPackageID is returned when a string is not a canonical package identity
	ErrMalformedPackageID = errors.New("malformed package id")
)
