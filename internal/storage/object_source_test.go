package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/snappy"
	"go.uber.org/zap/zaptest"

	"github.com/blackportal-ai/nebula/internal/model"
)

func newTestObjectSource(t *testing.T, cfg ObjectSourceConfig) (*ObjectSource, *LocalStorage) {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	return NewObjectSource(store, cfg, zaptest.NewLogger(t)), store
}

func TestObjectSource_PutListGet(t *testing.T) {
	ctx := context.Background()
	src, store := newTestObjectSource(t, ObjectSourceConfig{Concurrency: 2})

	for _, name := range []string{"mnist", "iris", "cifar"} {
		if err := src.Put(ctx, testPackage(name, "1.0.0")); err != nil {
			t.Fatalf("Put(%s) failed: %v", name, err)
		}
	}

	// Objects are snappy-compressed JSON
	raw, _, err := store.GetObject(ctx, ObjectPath("iris", "1.0.0"))
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if _, err := snappy.Decode(nil, raw); err != nil {
		t.Fatalf("object is not snappy encoded: %v", err)
	}

	got := listAll(t, src)
	if len(got) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(got))
	}
	if got[0].Name() != "cifar" || got[1].Name() != "iris" || got[2].Name() != "mnist" {
		t.Errorf("List should be ordered by object path, got %s %s %s", got[0].Name(), got[1].Name(), got[2].Name())
	}

	pkg, err := src.Get(ctx, "ris", model.FilterSettings{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if pkg == nil || pkg.Name() != "iris" {
		t.Fatalf("Get returned %v", pkg)
	}
	if none, err := src.Get(ctx, "absent", model.FilterSettings{}); none != nil || err != nil {
		t.Errorf("Get of an absent package should return nil, nil; got %v, %v", none, err)
	}
}

func TestObjectSource_SkipsBadObjects(t *testing.T) {
	ctx := context.Background()
	src, store := newTestObjectSource(t, ObjectSourceConfig{})

	if err := src.Put(ctx, testPackage("good", "1.0.0")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	// Not snappy
	if _, err := store.PutObject(ctx, ObjectPath("raw", "1.0.0"), []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	// Snappy, but no resources
	if _, err := store.PutObject(ctx, ObjectPath("empty", "1.0.0"), snappy.Encode(nil, []byte(`{"name":"empty","resources":[]}`))); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	// Unrelated object
	if _, err := store.PutObject(ctx, "good/1.0.0/preview.png", []byte("png")); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}

	got := listAll(t, src)
	if len(got) != 1 || got[0].Name() != "good" {
		t.Fatalf("expected only the good descriptor, got %v", got)
	}
}

func TestObjectSource_SearchUnimplemented(t *testing.T) {
	src, _ := newTestObjectSource(t, ObjectSourceConfig{})
	_, err := src.Search(context.Background(), "iris", model.SortSettings{}, model.FilterSettings{}, model.DefaultPagination())
	if !errors.Is(err, ErrUnimplemented) {
		t.Fatalf("expected ErrUnimplemented, got %v", err)
	}
}

func TestObjectSource_ReadOnly(t *testing.T) {
	src, store := newTestObjectSource(t, ObjectSourceConfig{ReadOnly: true})
	err := src.Put(context.Background(), testPackage("iris", "1.0.0"))
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	keys, err := store.ListObjects(context.Background(), "")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("read-only Put wrote %v", keys)
	}
}

func TestObjectSource_PutRequiresFields(t *testing.T) {
	src, _ := newTestObjectSource(t, ObjectSourceConfig{})
	pkg := testPackage("", "1.0.0")
	if err := src.Put(context.Background(), pkg); !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
}
