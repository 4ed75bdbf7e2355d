// Package storage holds the metadata sources that back nebula: the
// filesystem cache the client and registry read from, and the object storage
// abstraction used by the object-backed source.
package storage

import (
	"context"

	nebulaerrors "github.com/blackportal-ai/nebula/internal/errors"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// Errors shared by metadata sources.
var (
	ErrUnimplemented = nebulaerrors.NewQueryError(nebulaerrors.CodeUnimplemented, "operation not supported by this source")
	ErrReadOnly      = nebulaerrors.New(nebulaerrors.ErrCategoryStorage, nebulaerrors.CodeReadOnly, "source is read-only")

	ErrMissingName          = nebulaerrors.New(nebulaerrors.ErrCategoryValidation, nebulaerrors.CodeMissingName, "descriptor has no name")
	ErrMissingVersion       = nebulaerrors.New(nebulaerrors.ErrCategoryValidation, nebulaerrors.CodeMissingVersion, "descriptor has no version")
	ErrMissingID            = nebulaerrors.New(nebulaerrors.ErrCategoryValidation, nebulaerrors.CodeMissingID, "descriptor has no id")
	ErrMalformedID          = nebulaerrors.New(nebulaerrors.ErrCategoryValidation, nebulaerrors.CodeMalformedID, "descriptor id is not a UUID")
	ErrInvalidPathComponent = nebulaerrors.New(nebulaerrors.ErrCategoryValidation, nebulaerrors.CodeInvalidPathComponent, "name or version is not a safe path component")
)

// Errors for object storage operations.
var (
	ErrObjectNotFound     = nebulaerrors.New(nebulaerrors.ErrCategoryStorage, nebulaerrors.CodeObjectNotFound, "object not found")
	ErrPreconditionFailed = nebulaerrors.New(nebulaerrors.ErrCategoryStorage, nebulaerrors.CodePreconditionFailed, "precondition failed")
	ErrUploadFailed       = nebulaerrors.New(nebulaerrors.ErrCategoryStorage, nebulaerrors.CodeWriteFailed, "upload failed")
	ErrDownloadFailed     = nebulaerrors.New(nebulaerrors.ErrCategoryStorage, nebulaerrors.CodeReadFailed, "download failed")
	ErrDeleteFailed       = nebulaerrors.New(nebulaerrors.ErrCategoryStorage, nebulaerrors.CodeDeleteFailed, "delete failed")
)

// MetadataSource is a store of validated package descriptors.
//
// Implementations may narrow List and Search results by the filter and order
// them by the sort settings, but never paginate: callers apply pagination so
// that results stay consistent across backends.
type MetadataSource interface {
	// List returns the descriptors held by the source.
	List(ctx context.Context, sort model.SortSettings, filter model.FilterSettings, page model.PaginationSettings, fields model.FieldSettings) ([]*datapackage.Package, error)

	// Get returns the first descriptor whose name contains query.
	// It returns nil, nil when nothing matches.
	Get(ctx context.Context, query string, filter model.FilterSettings) (*datapackage.Package, error)

	// Search returns descriptors matching query. Sources without a search
	// index return ErrUnimplemented.
	Search(ctx context.Context, query string, sort model.SortSettings, filter model.FilterSettings, page model.PaginationSettings) ([]*datapackage.Package, error)

	// Put stores a descriptor. Read-only sources return ErrReadOnly.
	Put(ctx context.Context, pkg *datapackage.Package) error
}

// ObjectStorage abstracts blob storage for descriptor objects.
// Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// PutObject writes data to objectPath and returns the new ETag.
	PutObject(ctx context.Context, objectPath string, data []byte) (string, error)

	// GetObject reads an object and its ETag.
	// Returns ErrObjectNotFound when the object does not exist.
	GetObject(ctx context.Context, objectPath string) ([]byte, string, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ConditionalPut writes only if the current ETag matches etag.
	// An empty etag requires that the object does not exist yet.
	ConditionalPut(ctx context.Context, objectPath string, data []byte, etag string) error

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
