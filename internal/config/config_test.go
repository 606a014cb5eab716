package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir:  "/home/user/.local/share/mediad",
		DataDir:  "/home/user/.local/share/mediad/data",
		CacheDir: "/home/user/.local/share/mediad/cache",
		LogDir:   "/home/user/.local/share/mediad/log",
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/mediad/data/db"},
		Storage: StorageConfig{
			Type:   "filesystem",
			Name:   "local",
			FSRoot: "/srv/media",
		},
		Server: ServerConfig{Address: "0.0.0.0:8096", Mode: "release"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.CacheDir != original.CacheDir {
		t.Errorf("CacheDir = %q, want %q", got.CacheDir, original.CacheDir)
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Storage.Type != "filesystem" {
		t.Errorf("Storage.Type = %q, want %q", got.Storage.Type, "filesystem")
	}
	if got.Storage.FSRoot != "/srv/media" {
		t.Errorf("Storage.FSRoot = %q, want %q", got.Storage.FSRoot, "/srv/media")
	}
	if got.Server.Address != "0.0.0.0:8096" {
		t.Errorf("Server.Address = %q, want %q", got.Server.Address, "0.0.0.0:8096")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/mediad")

	if cfg.BaseDir != "/data/mediad" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/mediad")
	}
	if cfg.DataDir != "/data/mediad/data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "/data/mediad/data")
	}
	if cfg.CacheDir != "/data/mediad/cache" {
		t.Errorf("CacheDir = %q, want %q", cfg.CacheDir, "/data/mediad/cache")
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", cfg.Database.Type, "sqlite")
	}
	if cfg.Storage.FSRoot != filepath.Join("/data/mediad", "media") {
		t.Errorf("Storage.FSRoot = %q", cfg.Storage.FSRoot)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "mediad.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "mediad.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "mediad.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/mediad.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
