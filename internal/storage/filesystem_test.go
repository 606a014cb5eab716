package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystemStorage_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileSystemStorage("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStorage() error = %v", err)
	}

	content := "fake media bytes"
	if err := fs.Put(ctx, "channels/trailers/movie.mp4", strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	rc, err := fs.Open(ctx, "channels/trailers/movie.mp4")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != content {
		t.Errorf("content = %q, want %q", got, content)
	}

	if err := fs.Delete(ctx, "channels/trailers/movie.mp4"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := fs.Open(ctx, "channels/trailers/movie.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open() after delete error = %v, want ErrNotFound", err)
	}
}

func TestFileSystemStorage_Put_SizeMismatch(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFileSystemStorage("local", root)
	if err != nil {
		t.Fatalf("NewFileSystemStorage() error = %v", err)
	}

	err = fs.Put(ctx, "clip.mp4", strings.NewReader("short"), 999)
	if err == nil {
		t.Fatal("Put() expected size mismatch error")
	}

	// No partial file and no stray temp file may remain.
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("storage root not clean after failed put: %v", entries)
	}
}

func TestFileSystemStorage_Put_UnknownSize(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileSystemStorage("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStorage() error = %v", err)
	}

	if err := fs.Put(ctx, "clip.mp4", strings.NewReader("streamed"), -1); err != nil {
		t.Fatalf("Put() with unknown size error = %v", err)
	}
}

func TestFileSystemStorage_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileSystemStorage("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStorage() error = %v", err)
	}

	for _, key := range []string{"../outside", "/etc/passwd", "a/../../b"} {
		if err := fs.Put(ctx, key, strings.NewReader("x"), 1); err == nil {
			t.Errorf("Put(%q) expected error for escaping key", key)
		}
	}
}

func TestFileSystemStorage_DeleteMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileSystemStorage("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStorage() error = %v", err)
	}
	if err := fs.Delete(ctx, "never/existed.mp4"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}

func TestFileSystemStorage_ValidateSetup(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFileSystemStorage("local", root)
	if err != nil {
		t.Fatalf("NewFileSystemStorage() error = %v", err)
	}
	if err := fs.ValidateSetup(ctx); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	if err := fs.ValidateSetup(ctx); err == nil {
		t.Error("ValidateSetup() expected error for missing root")
	}
}

func TestFileSystemStorage_KeyPath(t *testing.T) {
	root := t.TempDir()
	fs, err := NewFileSystemStorage("local", root)
	if err != nil {
		t.Fatalf("NewFileSystemStorage() error = %v", err)
	}

	ctx := context.Background()
	if err := fs.Put(ctx, "a/b/c.mp4", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b", "c.mp4")); err != nil {
		t.Errorf("expected file at nested path: %v", err)
	}
}
