package storage

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/golang/snappy"
	"go.uber.org/zap"

	nebulaerrors "github.com/blackportal-ai/nebula/internal/errors"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// ObjectFileName is the name of a snappy-compressed descriptor object.
const ObjectFileName = datapackage.FileName + ".sz"

// ObjectSourceConfig configures an ObjectSource.
type ObjectSourceConfig struct {
	// Concurrency bounds parallel object fetches during List (default: 8).
	Concurrency int
	// ReadOnly makes Put return ErrReadOnly.
	ReadOnly bool
}

// ObjectSource is a MetadataSource over object storage. Descriptors live at
// <name>/<version>/datapackage.json.sz as snappy-compressed JSON. Every List
// reads the store; there is no local index, and Search is not supported.
type ObjectSource struct {
	store      ObjectStorage
	downloader *BatchDownloader
	cfg        ObjectSourceConfig
	logger     *zap.Logger
}

// NewObjectSource creates a source backed by store.
func NewObjectSource(store ObjectStorage, cfg ObjectSourceConfig, logger *zap.Logger) *ObjectSource {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectSource{
		store:      store,
		downloader: NewBatchDownloader(store, cfg.Concurrency),
		cfg:        cfg,
		logger:     logger,
	}
}

// ObjectPath returns the object key of the descriptor of name at version.
func ObjectPath(name, version string) string {
	return path.Join(name, version, ObjectFileName)
}

// List fetches and decodes every descriptor object, ordered by object path.
// Objects that cannot be fetched or decoded are logged and skipped.
func (o *ObjectSource) List(ctx context.Context, _ model.SortSettings, _ model.FilterSettings, _ model.PaginationSettings, _ model.FieldSettings) ([]*datapackage.Package, error) {
	keys, err := o.store.ListObjects(ctx, "")
	if err != nil {
		return nil, nebulaerrors.NewStorageError(nebulaerrors.CodeReadFailed, "failed to list descriptor objects", err)
	}

	var descriptors []string
	for _, k := range keys {
		if k == ObjectFileName || strings.HasSuffix(k, "/"+ObjectFileName) {
			descriptors = append(descriptors, k)
		}
	}
	sort.Strings(descriptors)

	result, err := o.downloader.Download(ctx, descriptors)
	if err != nil {
		return nil, err
	}

	out := make([]*datapackage.Package, 0, len(descriptors))
	for _, k := range descriptors {
		if fetchErr, failed := result.Errors[k]; failed {
			o.logger.Warn("skipping unreadable descriptor object", zap.String("key", k), zap.Error(fetchErr))
			continue
		}
		pkg, err := decodeObject(result.Objects[k])
		if err != nil {
			o.logger.Warn("skipping invalid descriptor object", zap.String("key", k), zap.Error(err))
			continue
		}
		out = append(out, pkg)
	}
	return out, nil
}

// Get returns the first descriptor, in object path order, whose name contains query.
func (o *ObjectSource) Get(ctx context.Context, query string, filter model.FilterSettings) (*datapackage.Package, error) {
	pkgs, err := o.List(ctx, model.SortSettings{}, filter, model.Unbounded(), model.FieldSettings(0))
	if err != nil {
		return nil, err
	}
	for _, p := range pkgs {
		if strings.Contains(p.Name(), query) {
			return p, nil
		}
	}
	return nil, nil
}

// Search is not supported by object storage.
func (o *ObjectSource) Search(context.Context, string, model.SortSettings, model.FilterSettings, model.PaginationSettings) ([]*datapackage.Package, error) {
	return nil, ErrUnimplemented
}

// Put compresses the descriptor and writes it to its object path.
func (o *ObjectSource) Put(ctx context.Context, pkg *datapackage.Package) error {
	if o.cfg.ReadOnly {
		return ErrReadOnly
	}
	if _, err := CheckStorable(pkg); err != nil {
		return err
	}

	data, err := pkg.MarshalJSON()
	if err != nil {
		return nebulaerrors.NewStorageError(nebulaerrors.CodeWriteFailed, "failed to encode descriptor", err)
	}

	key := ObjectPath(pkg.Name(), pkg.Version())
	etag, err := o.store.PutObject(ctx, key, snappy.Encode(nil, data))
	if err != nil {
		return err
	}

	o.logger.Debug("stored descriptor object", zap.String("key", key), zap.String("etag", etag))
	return nil
}

func decodeObject(data []byte) (*datapackage.Package, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, nebulaerrors.NewStorageError(nebulaerrors.CodeReadFailed, "failed to decompress descriptor", err)
	}
	return datapackage.Parse(raw)
}

var _ MetadataSource = (*ObjectSource)(nil)
