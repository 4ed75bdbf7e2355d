package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestBatchDownloader_BasicDownload(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	downloader := NewBatchDownloader(storage, 3)
	ctx := context.Background()

	// Create test objects in storage
	var paths []string
	for i := 1; i <= 10; i++ {
		p := fmt.Sprintf("obj%d.txt", i)
		paths = append(paths, p)
		if _, err := storage.PutObject(ctx, p, []byte("content "+p)); err != nil {
			t.Fatalf("PutObject failed for %s: %v", p, err)
		}
	}

	result, err := downloader.Download(ctx, paths)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if len(result.Objects) != len(paths) {
		t.Errorf("expected %d objects, got %d", len(paths), len(result.Objects))
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}

	for p, data := range result.Objects {
		if string(data) != "content "+p {
			t.Errorf("content mismatch for %s: %q", p, data)
		}
	}
}

func TestBatchDownloader_PartialFailure(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	downloader := NewBatchDownloader(storage, 2)
	ctx := context.Background()

	paths := []string{"exists1.txt", "exists2.txt", "exists3.txt", "nonexistent1.txt", "nonexistent2.txt"}
	for _, p := range paths[:3] {
		if _, err := storage.PutObject(ctx, p, []byte("partial failure test")); err != nil {
			t.Fatalf("PutObject failed for %s: %v", p, err)
		}
	}

	result, err := downloader.Download(ctx, paths)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if len(result.Objects) != 3 {
		t.Errorf("expected 3 successful downloads, got %d", len(result.Objects))
	}
	if len(result.Errors) != 2 {
		t.Errorf("expected 2 errors, got %d", len(result.Errors))
	}

	// Verify errors are for the right paths
	for _, p := range paths[3:] {
		if !errors.Is(result.Errors[p], ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound for %s, got %v", p, result.Errors[p])
		}
	}
}

func TestBatchDownloader_EmptyRequest(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	result, err := NewBatchDownloader(storage, 0).Download(context.Background(), nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(result.Objects) != 0 || len(result.Errors) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestBatchDownloader_CancelledContext(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewBatchDownloader(storage, 1).Download(ctx, []string{"a", "b"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(result.Objects) != 0 {
		t.Errorf("expected no objects, got %d", len(result.Objects))
	}
	if len(result.Errors) != 2 {
		t.Errorf("expected every path to carry an error, got %v", result.Errors)
	}
}
