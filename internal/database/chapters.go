package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"mediad/internal/catalog"
	"mediad/internal/database/migrations"
)

// ChapterRepository stores chapter markers in its own SQLite file, with the
// same write-permit and transaction discipline as the item repository.
type ChapterRepository struct {
	path   string
	logger catalog.Logger

	db          *sql.DB
	writePermit *semaphore.Weighted
	closed      atomic.Bool
}

func NewChapterRepository(path string, logger catalog.Logger) *ChapterRepository {
	if logger == nil {
		logger = catalog.NewNopLogger()
	}
	return &ChapterRepository{
		path:        path,
		logger:      logger,
		writePermit: semaphore.NewWeighted(1),
	}
}

// Initialize opens the chapters store and applies migrations.
func (r *ChapterRepository) Initialize(ctx context.Context) error {
	db, err := OpenConnection(r.path)
	if err != nil {
		return err
	}
	if err := migrations.MigrateUp(db, migrations.SchemaChapters); err != nil {
		db.Close()
		return fmt.Errorf("migrating chapters store: %w", err)
	}
	r.db = db
	return nil
}

// SaveChapters transactionally replaces all chapters for an item.
func (r *ChapterRepository) SaveChapters(ctx context.Context, itemID uuid.UUID, chapters []catalog.Chapter) error {
	if r.closed.Load() {
		return catalog.ErrDisposed
	}
	if itemID == uuid.Nil {
		return catalog.ErrNilID
	}

	if err := r.writePermit.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquiring write permit: %w", err)
	}
	defer r.writePermit.Release(1)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chapters WHERE item_id = ?", itemID.String()); err != nil {
		return fmt.Errorf("clearing chapters of %s: %w", itemID, err)
	}
	for _, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO chapters (item_id, chapter_index, name, start_ticks, image_path) VALUES (?, ?, ?, ?, ?)",
			itemID.String(), ch.Index, ch.Name, ch.StartTicks, ch.ImagePath)
		if err != nil {
			return fmt.Errorf("saving chapter %d of %s: %w", ch.Index, itemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChapters returns the chapters of an item ordered by index.
func (r *ChapterRepository) GetChapters(ctx context.Context, itemID uuid.UUID) ([]catalog.Chapter, error) {
	if r.closed.Load() {
		return nil, catalog.ErrDisposed
	}
	if itemID == uuid.Nil {
		return nil, catalog.ErrNilID
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT chapter_index, name, start_ticks, image_path FROM chapters WHERE item_id = ? ORDER BY chapter_index",
		itemID.String())
	if err != nil {
		return nil, fmt.Errorf("querying chapters of %s: %w", itemID, err)
	}
	defer rows.Close()

	var result []catalog.Chapter
	for rows.Next() {
		ch := catalog.Chapter{ItemID: itemID}
		if err := rows.Scan(&ch.Index, &ch.Name, &ch.StartTicks, &ch.ImagePath); err != nil {
			return nil, fmt.Errorf("scanning chapter: %w", err)
		}
		result = append(result, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chapters of %s: %w", itemID, err)
	}
	return result, nil
}

// Close closes the chapters store; operations fail with ErrDisposed after.
func (r *ChapterRepository) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
