package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mediad/internal/catalog"
	"mediad/internal/config"
)

// Stores bundles the three initialized store repositories.
type Stores struct {
	Items    *ItemRepository
	Chapters *ChapterRepository
	Streams  *MediaStreamRepository
}

// NewStoresFromConfig creates and initializes the catalog, chapter and
// media-stream repositories per the database config type. Callers own Close
// on each repository (items first, then satellites).
func NewStoresFromConfig(ctx context.Context, cfg config.DatabaseConfig, registry *catalog.TypeRegistry, logger catalog.Logger) (*Stores, error) {
	var itemPath, chapterPath, streamPath string

	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		itemPath = filepath.Join(cfg.DataDir, "catalog.db")
		chapterPath = filepath.Join(cfg.DataDir, "chapters.db")
		streamPath = filepath.Join(cfg.DataDir, "mediastreams.db")
	case "memory":
		itemPath, chapterPath, streamPath = ":memory:", ":memory:", ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	chapters := NewChapterRepository(chapterPath, logger)
	if err := chapters.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing chapters store: %w", err)
	}

	streams := NewMediaStreamRepository(streamPath, logger)
	if err := streams.Initialize(ctx); err != nil {
		chapters.Close()
		return nil, fmt.Errorf("initializing media-streams store: %w", err)
	}

	items := NewItemRepository(itemPath, registry, chapters, streams, logger)
	if err := items.Initialize(ctx); err != nil {
		chapters.Close()
		streams.Close()
		return nil, fmt.Errorf("initializing catalog store: %w", err)
	}

	return &Stores{Items: items, Chapters: chapters, Streams: streams}, nil
}

// Close tears down all repositories, item store first.
func (s *Stores) Close() error {
	err := s.Items.Close()
	if cerr := s.Chapters.Close(); err == nil {
		err = cerr
	}
	if serr := s.Streams.Close(); err == nil {
		err = serr
	}
	return err
}
