package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/natefinch/atomic"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"

	nebulaerrors "github.com/blackportal-ai/nebula/internal/errors"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
	"github.com/blackportal-ai/nebula/pkg/types"
)

// RootFolderSource is a MetadataSource over a directory of descriptor files.
//
// Descriptors are discovered at <root>/<pkg>/datapackage.json and at
// <root>/<name>/<version>/datapackage.json, the layout Put writes. Every
// descriptor file path is bound to a stable PackageID for the lifetime of the
// source; the binding survives rescans and transient parse failures.
//
// The index is guarded by an RWMutex, file I/O happens outside of it, and
// writers of the same path are serialized by a per-path lock. A Put is only
// visible once its file write has completed.
type RootFolderSource struct {
	root   string
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*entry          // descriptor path -> entry
	ids     map[string]types.PackageID // descriptor path -> stable id
	owners  map[types.PackageID]string // stable id -> descriptor path
	seq     uint64                     // bumped by every published Put

	// Writers of one path share a mutex; unrelated paths may share one too.
	pathLocks [pathLockShards]sync.Mutex
}

const pathLockShards = 64

type entry struct {
	id          types.PackageID
	pkg         *datapackage.Package // carries id when the descriptor has none
	fingerprint uint64
	seq         uint64
}

// Entry is a snapshot of one cached descriptor.
type Entry struct {
	Path    string
	ID      types.PackageID
	Package *datapackage.Package
}

// NewRootFolderSource creates the root directory if needed and performs the
// initial scan before returning.
func NewRootFolderSource(root string, logger *zap.Logger) (*RootFolderSource, error) {
	if root == "" {
		return nil, nebulaerrors.NewConfigError("root folder path is empty", nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, nebulaerrors.NewStorageError(nebulaerrors.CodeWriteFailed, "failed to create root folder", err)
	}

	s := &RootFolderSource{
		root:    filepath.Clean(root),
		logger:  logger.With(zap.String("root", root)),
		entries: make(map[string]*entry),
		ids:     make(map[string]types.PackageID),
		owners:  make(map[types.PackageID]string),
	}
	if err := s.Rescan(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the directory the source scans.
func (s *RootFolderSource) Root() string {
	return s.root
}

// DescriptorPath returns where Put stores the descriptor of name at version.
func (s *RootFolderSource) DescriptorPath(name, version string) string {
	return filepath.Join(s.root, name, version, datapackage.FileName)
}

// Len returns the number of indexed descriptors.
func (s *RootFolderSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a snapshot of the index ordered by descriptor path.
func (s *RootFolderSource) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for path, e := range s.entries {
		out = append(out, Entry{Path: path, ID: e.id, Package: e.pkg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// List returns every indexed descriptor ordered by path. Sorting, filtering
// and pagination are left to the caller.
func (s *RootFolderSource) List(ctx context.Context, _ model.SortSettings, _ model.FilterSettings, _ model.PaginationSettings, _ model.FieldSettings) ([]*datapackage.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries := s.Entries()
	out := make([]*datapackage.Package, len(entries))
	for i, e := range entries {
		out[i] = e.Package
	}
	return out, nil
}

// Get returns the first descriptor, in path order, whose name contains query.
func (s *RootFolderSource) Get(ctx context.Context, query string, _ model.FilterSettings) (*datapackage.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, e := range s.Entries() {
		if strings.Contains(e.Package.Name(), query) {
			return e.Package, nil
		}
	}
	return nil, nil
}

// Search returns descriptors whose name, title, description or one of the
// keywords contains query, ignoring case.
func (s *RootFolderSource) Search(ctx context.Context, query string, _ model.SortSettings, _ model.FilterSettings, _ model.PaginationSettings) ([]*datapackage.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []*datapackage.Package
	for _, e := range s.Entries() {
		if matchesSearch(e.Package, q) {
			out = append(out, e.Package)
		}
	}
	return out, nil
}

func matchesSearch(pkg *datapackage.Package, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(pkg.Name()), lowerQuery) ||
		strings.Contains(strings.ToLower(pkg.Title()), lowerQuery) ||
		strings.Contains(strings.ToLower(pkg.Description()), lowerQuery) {
		return true
	}
	for _, k := range pkg.Keywords() {
		if strings.Contains(strings.ToLower(k), lowerQuery) {
			return true
		}
	}
	return false
}

// Put writes pkg to <root>/<name>/<version>/datapackage.json and indexes it.
// The descriptor must carry a name, a version and a UUID id; nothing is
// written when it does not.
func (s *RootFolderSource) Put(ctx context.Context, pkg *datapackage.Package) error {
	id, err := CheckStorable(pkg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := pkg.MarshalIndent()
	if err != nil {
		return nebulaerrors.NewStorageError(nebulaerrors.CodeWriteFailed, "failed to encode descriptor", err)
	}
	fingerprint := murmur3.Sum64(data)
	path := s.DescriptorPath(pkg.Name(), pkg.Version())

	lock := s.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	if s.unchanged(path, id, fingerprint) {
		s.logger.Debug("descriptor unchanged", zap.String("path", path))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nebulaerrors.NewStorageError(nebulaerrors.CodeWriteFailed, "failed to create package directory", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return nebulaerrors.NewStorageError(nebulaerrors.CodeWriteFailed, "failed to write descriptor", err)
	}

	s.mu.Lock()
	s.seq++
	s.bindLocked(path, id)
	s.entries[path] = &entry{
		id:          id,
		pkg:         pkg,
		fingerprint: fingerprint,
		seq:         s.seq,
	}
	s.mu.Unlock()

	s.logger.Debug("stored descriptor",
		zap.String("path", path),
		zap.String("id", id.String()),
	)
	return nil
}

// Rescan re-runs discovery. Descriptors whose file vanished or no longer
// parses drop out of the index; their ids stay bound to the path. Entries
// published by a Put that completed after the scan started are kept as is.
func (s *RootFolderSource) Rescan(ctx context.Context) error {
	s.mu.RLock()
	start := s.seq
	s.mu.RUnlock()

	candidates, err := s.discover(ctx)
	if err != nil {
		return nebulaerrors.NewStorageError(nebulaerrors.CodeReadFailed, "failed to scan root folder", err)
	}

	type scanned struct {
		pkg         *datapackage.Package
		fingerprint uint64
	}
	found := make(map[string]scanned, len(candidates))
	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable descriptor", zap.String("path", path), zap.Error(err))
			continue
		}
		pkg, err := datapackage.Parse(data)
		if err != nil {
			s.logger.Warn("skipping invalid descriptor", zap.String("path", path), zap.Error(err))
			continue
		}
		found[path] = scanned{pkg: pkg, fingerprint: murmur3.Sum64(data)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*entry, len(found))
	for path, e := range s.entries {
		if e.seq > start {
			next[path] = e
		}
	}
	// candidates is sorted, so id assignment does not depend on map order
	for _, path := range candidates {
		sc, ok := found[path]
		if !ok {
			continue
		}
		if _, newer := next[path]; newer {
			continue
		}
		id := s.identityLocked(path, sc.pkg)
		pkg := sc.pkg
		if pkg.ID() == "" {
			pkg = pkg.WithID(id.String())
		}
		next[path] = &entry{id: id, pkg: pkg, fingerprint: sc.fingerprint, seq: start}
	}
	s.entries = next

	s.logger.Debug("rescan complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("indexed", len(next)),
	)
	return nil
}

// discover walks the root to a depth of two directories and returns the
// sorted descriptor paths it finds.
func (s *RootFolderSource) discover(ctx context.Context) ([]string, error) {
	var (
		mu    sync.Mutex
		found []string
	)
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, s.root, func(p string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == s.root {
				return err
			}
			s.logger.Warn("skipping unreadable path", zap.String("path", p), zap.Error(err))
			return nil
		}

		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil || rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1

		if d.IsDir() {
			if depth > 2 {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == datapackage.FileName && (depth == 2 || depth == 3) {
			mu.Lock()
			found = append(found, p)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}

// identityLocked returns the id bound to path, binding one first when the
// path is new. A new path adopts the descriptor's own id unless another path
// already holds it. Callers hold s.mu.
func (s *RootFolderSource) identityLocked(path string, pkg *datapackage.Package) types.PackageID {
	if id, ok := s.ids[path]; ok {
		return id
	}
	id := types.NewPackageID()
	if own, err := types.ParsePackageID(pkg.ID()); err == nil {
		if _, taken := s.owners[own]; !taken {
			id = own
		}
	}
	s.bindLocked(path, id)
	return id
}

func (s *RootFolderSource) bindLocked(path string, id types.PackageID) {
	if prev, ok := s.ids[path]; ok && s.owners[prev] == path {
		delete(s.owners, prev)
	}
	s.ids[path] = id
	s.owners[id] = path
}

func (s *RootFolderSource) unchanged(path string, id types.PackageID, fingerprint uint64) bool {
	s.mu.RLock()
	e, ok := s.entries[path]
	s.mu.RUnlock()
	if !ok || e.id != id || e.fingerprint != fingerprint {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (s *RootFolderSource) pathLock(path string) *sync.Mutex {
	return &s.pathLocks[pathLockShard(path)]
}

func pathLockShard(path string) uint32 {
	return murmur3.Sum32([]byte(path)) % pathLockShards
}

// CheckStorable validates the fields a descriptor needs before it can be
// written under <name>/<version>, and returns its parsed id.
func CheckStorable(pkg *datapackage.Package) (types.PackageID, error) {
	if pkg == nil {
		return types.NilPackageID, nebulaerrors.NewValidationError(nebulaerrors.CodeInvalidDescriptor, "nil package", nil)
	}
	name, version := pkg.Name(), pkg.Version()
	if name == "" {
		return types.NilPackageID, ErrMissingName
	}
	if version == "" {
		return types.NilPackageID, ErrMissingVersion
	}
	if pkg.ID() == "" {
		return types.NilPackageID, ErrMissingID
	}
	id, err := types.ParsePackageID(pkg.ID())
	if err != nil {
		return types.NilPackageID, fmt.Errorf("%w: %v", ErrMalformedID, err)
	}
	if !isPathComponent(name) {
		return types.NilPackageID, fmt.Errorf("%w: name %q", ErrInvalidPathComponent, name)
	}
	if !isPathComponent(version) {
		return types.NilPackageID, fmt.Errorf("%w: version %q", ErrInvalidPathComponent, version)
	}
	return id, nil
}

// isPathComponent reports whether v can be used as a single directory name
// below the root.
func isPathComponent(v string) bool {
	if v == "" || v == "." || v == ".." {
		return false
	}
	if strings.ContainsAny(v, `/\`+"\x00") {
		return false
	}
	return filepath.VolumeName(v) == "" && filepath.Base(v) == v
}

var _ MetadataSource = (*RootFolderSource)(nil)
