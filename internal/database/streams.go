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

// MediaStreamRepository stores per-item stream metadata in its own SQLite
// file, with the same write-permit and transaction discipline as the item
// repository.
type MediaStreamRepository struct {
	path   string
	logger catalog.Logger

	db          *sql.DB
	writePermit *semaphore.Weighted
	closed      atomic.Bool
}

func NewMediaStreamRepository(path string, logger catalog.Logger) *MediaStreamRepository {
	if logger == nil {
		logger = catalog.NewNopLogger()
	}
	return &MediaStreamRepository{
		path:        path,
		logger:      logger,
		writePermit: semaphore.NewWeighted(1),
	}
}

// Initialize opens the media-streams store and applies migrations.
func (r *MediaStreamRepository) Initialize(ctx context.Context) error {
	db, err := OpenConnection(r.path)
	if err != nil {
		return err
	}
	if err := migrations.MigrateUp(db, migrations.SchemaStreams); err != nil {
		db.Close()
		return fmt.Errorf("migrating media-streams store: %w", err)
	}
	r.db = db
	return nil
}

// SaveStreams transactionally replaces all media streams for an item.
func (r *MediaStreamRepository) SaveStreams(ctx context.Context, itemID uuid.UUID, streams []catalog.MediaStream) error {
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM media_streams WHERE item_id = ?", itemID.String()); err != nil {
		return fmt.Errorf("clearing streams of %s: %w", itemID, err)
	}
	for _, s := range streams {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO media_streams
			 (item_id, stream_index, stream_type, codec, language, channels, width, height, bitrate, is_default, is_forced)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			itemID.String(), s.Index, s.Type, s.Codec, s.Language, s.Channels, s.Width, s.Height, s.Bitrate, s.Default, s.Forced)
		if err != nil {
			return fmt.Errorf("saving stream %d of %s: %w", s.Index, itemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetStreams returns the media streams of an item ordered by index.
func (r *MediaStreamRepository) GetStreams(ctx context.Context, itemID uuid.UUID) ([]catalog.MediaStream, error) {
	if r.closed.Load() {
		return nil, catalog.ErrDisposed
	}
	if itemID == uuid.Nil {
		return nil, catalog.ErrNilID
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT stream_index, stream_type, codec, language, channels, width, height, bitrate, is_default, is_forced
		 FROM media_streams WHERE item_id = ? ORDER BY stream_index`,
		itemID.String())
	if err != nil {
		return nil, fmt.Errorf("querying streams of %s: %w", itemID, err)
	}
	defer rows.Close()

	var result []catalog.MediaStream
	for rows.Next() {
		s := catalog.MediaStream{ItemID: itemID}
		if err := rows.Scan(&s.Index, &s.Type, &s.Codec, &s.Language, &s.Channels, &s.Width, &s.Height, &s.Bitrate, &s.Default, &s.Forced); err != nil {
			return nil, fmt.Errorf("scanning stream: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating streams of %s: %w", itemID, err)
	}
	return result, nil
}

// Close closes the media-streams store; operations fail with ErrDisposed after.
func (r *MediaStreamRepository) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
