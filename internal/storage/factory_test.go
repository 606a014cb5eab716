package storage

import (
	"context"
	"strings"
	"testing"

	"mediad/internal/config"
)

func TestNewStorageFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := NewStorageFromConfig(ctx, config.StorageConfig{Type: "memory", Name: "test"})
		if err != nil {
			t.Fatalf("NewStorageFromConfig() error = %v", err)
		}
		if _, ok := s.(*MemoryStorage); !ok {
			t.Errorf("storage type = %T, want *MemoryStorage", s)
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		s, err := NewStorageFromConfig(ctx, config.StorageConfig{Type: "filesystem", Name: "local", FSRoot: t.TempDir()})
		if err != nil {
			t.Fatalf("NewStorageFromConfig() error = %v", err)
		}
		if _, ok := s.(*FileSystemStorage); !ok {
			t.Errorf("storage type = %T, want *FileSystemStorage", s)
		}
	})

	t.Run("filesystem requires root", func(t *testing.T) {
		_, err := NewStorageFromConfig(ctx, config.StorageConfig{Type: "filesystem"})
		if err == nil {
			t.Fatal("expected error for missing fs_root")
		}
	})

	t.Run("s3 requires bucket", func(t *testing.T) {
		_, err := NewStorageFromConfig(ctx, config.StorageConfig{Type: "s3"})
		if err == nil {
			t.Fatal("expected error for missing s3_bucket")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewStorageFromConfig(ctx, config.StorageConfig{Type: "tape"})
		if err == nil {
			t.Fatal("expected error for unknown type")
		}
	})
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage("test")

	if err := m.Put(ctx, "k", strings.NewReader("v"), 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}

	if err := m.Put(ctx, "k2", strings.NewReader("vv"), 5); err == nil {
		t.Error("Put() expected size mismatch error")
	}

	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Open(ctx, "k"); err == nil {
		t.Error("Open() after delete expected error")
	}
}
