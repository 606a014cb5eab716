package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"mediad/internal/catalog"
	"mediad/internal/database/migrations"
	"mediad/internal/schedule"
)

// maintenanceInterval is how often idle memory is returned to the OS.
const maintenanceInterval = 30 * time.Minute

// ItemRepository maps typed catalog entities to (id, type, payload) rows and
// manages the parent/child adjacency table. All writes are serialized by a
// capacity-1 permit; SQLite does not support concurrent writers safely.
//
// Chapter and media-stream data live in satellite repositories with the same
// transactional discipline; the corresponding methods here are pure
// delegation.
type ItemRepository struct {
	path     string
	registry *catalog.TypeRegistry
	logger   catalog.Logger

	chapters *ChapterRepository
	streams  *MediaStreamRepository

	db          *sql.DB
	writePermit *semaphore.Weighted
	maintenance *schedule.Repeater
	closed      atomic.Bool

	stmtSave           *sql.Stmt
	stmtRetrieve       *sql.Stmt
	stmtDelete         *sql.Stmt
	stmtDeleteChildren *sql.Stmt
	stmtInsertChild    *sql.Stmt
	stmtSelectChildren *sql.Stmt
}

// NewItemRepository creates a repository for the catalog store at path.
// Call Initialize before use and Close when done. chapters and streams may
// be nil if chapter/media-stream delegation is not needed.
func NewItemRepository(path string, registry *catalog.TypeRegistry, chapters *ChapterRepository, streams *MediaStreamRepository, logger catalog.Logger) *ItemRepository {
	if logger == nil {
		logger = catalog.NewNopLogger()
	}
	return &ItemRepository{
		path:        path,
		registry:    registry,
		chapters:    chapters,
		streams:     streams,
		logger:      logger,
		writePermit: semaphore.NewWeighted(1),
	}
}

// Initialize opens (creating if absent) the backing store, applies schema
// migrations and pragmas, prepares reusable statements, and starts the
// background maintenance timer.
func (r *ItemRepository) Initialize(ctx context.Context) error {
	db, err := OpenConnection(r.path)
	if err != nil {
		return err
	}

	if err := migrations.MigrateUp(db, migrations.SchemaCatalog); err != nil {
		db.Close()
		return fmt.Errorf("migrating catalog store: %w", err)
	}

	prepared := []struct {
		stmt **sql.Stmt
		sql  string
	}{
		{&r.stmtSave, "REPLACE INTO items (id, type, data) VALUES (?, ?, ?)"},
		{&r.stmtRetrieve, "SELECT type, data FROM items WHERE id = ?"},
		{&r.stmtDelete, "DELETE FROM items WHERE id = ?"},
		{&r.stmtDeleteChildren, "DELETE FROM children WHERE parent_id = ?"},
		{&r.stmtInsertChild, "INSERT OR REPLACE INTO children (parent_id, child_id) VALUES (?, ?)"},
		{&r.stmtSelectChildren, "SELECT child_id FROM children WHERE parent_id = ?"},
	}
	for _, p := range prepared {
		stmt, err := db.PrepareContext(ctx, p.sql)
		if err != nil {
			db.Close()
			return fmt.Errorf("preparing %q: %w", p.sql, err)
		}
		*p.stmt = stmt
	}

	r.db = db
	r.maintenance = schedule.NewRepeater(maintenanceInterval, func() {
		if _, err := r.db.Exec("PRAGMA shrink_memory"); err != nil {
			r.logger.Warn("store maintenance failed", "path", r.path, "error", err)
		}
	})

	r.logger.Info("catalog store initialized", "path", r.path)
	return nil
}

// SaveItem upserts a single entity.
func (r *ItemRepository) SaveItem(ctx context.Context, item catalog.Entity) error {
	return r.SaveItems(ctx, []catalog.Entity{item})
}

// SaveItems upserts a batch of entities atomically: either every item in the
// call is persisted, or none is. The write permit is held for the whole
// transaction and released even on failure.
func (r *ItemRepository) SaveItems(ctx context.Context, items []catalog.Entity) error {
	if r.closed.Load() {
		return catalog.ErrDisposed
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

	save := tx.StmtContext(ctx, r.stmtSave)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := item.EntityID()
		if id == uuid.Nil {
			return fmt.Errorf("saving %s: %w", item.TypeTag(), catalog.ErrNilID)
		}

		payload, err := json.Marshal(item)
		if err != nil {
			r.logger.Error("serializing item failed", "id", id, "type", item.TypeTag(), "error", err)
			return fmt.Errorf("serializing item %s: %w", id, err)
		}

		if _, err := save.ExecContext(ctx, id.String(), item.TypeTag(), payload); err != nil {
			r.logger.Error("saving item failed", "id", id, "type", item.TypeTag(), "error", err)
			return fmt.Errorf("saving item %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// RetrieveItem loads an entity by id. An unknown type tag is tolerated:
// rows written by a newer build read back as (nil, nil), never as an error.
func (r *ItemRepository) RetrieveItem(ctx context.Context, id uuid.UUID) (catalog.Entity, error) {
	if r.closed.Load() {
		return nil, catalog.ErrDisposed
	}
	if id == uuid.Nil {
		return nil, catalog.ErrNilID
	}

	var typeTag string
	var payload []byte
	err := r.stmtRetrieve.QueryRowContext(ctx, id.String()).Scan(&typeTag, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("retrieving item %s: %w", id, err)
	}

	return r.decode(id, typeTag, payload)
}

func (r *ItemRepository) decode(id uuid.UUID, typeTag string, payload []byte) (catalog.Entity, error) {
	entity := r.registry.Resolve(typeTag)
	if entity == nil {
		r.logger.Warn("unknown item type", "id", id, "type", typeTag)
		return nil, nil
	}
	if err := json.Unmarshal(payload, entity); err != nil {
		return nil, fmt.Errorf("deserializing item %s: %w", id, err)
	}
	entity.SetEntityID(id)
	return entity, nil
}

// GetChildren yields the child identifiers of a parent. The query runs when
// the sequence is iterated.
func (r *ItemRepository) GetChildren(ctx context.Context, parentID uuid.UUID) iter.Seq2[uuid.UUID, error] {
	return func(yield func(uuid.UUID, error) bool) {
		if r.closed.Load() {
			yield(uuid.Nil, catalog.ErrDisposed)
			return
		}
		if parentID == uuid.Nil {
			yield(uuid.Nil, catalog.ErrNilID)
			return
		}

		rows, err := r.stmtSelectChildren.QueryContext(ctx, parentID.String())
		if err != nil {
			yield(uuid.Nil, fmt.Errorf("querying children of %s: %w", parentID, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				yield(uuid.Nil, fmt.Errorf("scanning child id: %w", err))
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				yield(uuid.Nil, fmt.Errorf("parsing child id %q: %w", raw, err))
				return
			}
			if !yield(id, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(uuid.Nil, fmt.Errorf("iterating children of %s: %w", parentID, err))
		}
	}
}

// GetChildrenItems loads the fully materialized children of a parent.
// Children whose type tag is unknown are skipped with a warning.
func (r *ItemRepository) GetChildrenItems(ctx context.Context, parentID uuid.UUID) ([]catalog.Entity, error) {
	if r.closed.Load() {
		return nil, catalog.ErrDisposed
	}
	if parentID == uuid.Nil {
		return nil, catalog.ErrNilID
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT i.id, i.type, i.data FROM items i JOIN children c ON i.id = c.child_id WHERE c.parent_id = ?",
		parentID.String())
	if err != nil {
		return nil, fmt.Errorf("querying child items of %s: %w", parentID, err)
	}
	defer rows.Close()

	var result []catalog.Entity
	for rows.Next() {
		var raw, typeTag string
		var payload []byte
		if err := rows.Scan(&raw, &typeTag, &payload); err != nil {
			return nil, fmt.Errorf("scanning child item: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing child item id %q: %w", raw, err)
		}
		entity, err := r.decode(id, typeTag, payload)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			continue
		}
		result = append(result, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating child items of %s: %w", parentID, err)
	}
	return result, nil
}

// GetItemsOfType yields all entities with the given type tag, in storage
// order. Storage order is unspecified and not stable across compactions.
func (r *ItemRepository) GetItemsOfType(ctx context.Context, tag string) iter.Seq2[catalog.Entity, error] {
	return func(yield func(catalog.Entity, error) bool) {
		if r.closed.Load() {
			yield(nil, catalog.ErrDisposed)
			return
		}

		rows, err := r.db.QueryContext(ctx, "SELECT id, data FROM items WHERE type = ?", tag)
		if err != nil {
			yield(nil, fmt.Errorf("querying items of type %s: %w", tag, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var raw string
			var payload []byte
			if err := rows.Scan(&raw, &payload); err != nil {
				yield(nil, fmt.Errorf("scanning item: %w", err))
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				yield(nil, fmt.Errorf("parsing item id %q: %w", raw, err))
				return
			}
			entity, err := r.decode(id, tag, payload)
			if err != nil {
				yield(nil, err)
				return
			}
			if entity == nil {
				continue
			}
			if !yield(entity, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterating items of type %s: %w", tag, err))
		}
	}
}

// GetItemIDsOfType yields the identifiers of all entities with the given
// type tag, in storage order.
func (r *ItemRepository) GetItemIDsOfType(ctx context.Context, tag string) iter.Seq2[uuid.UUID, error] {
	return func(yield func(uuid.UUID, error) bool) {
		if r.closed.Load() {
			yield(uuid.Nil, catalog.ErrDisposed)
			return
		}

		rows, err := r.db.QueryContext(ctx, "SELECT id FROM items WHERE type = ?", tag)
		if err != nil {
			yield(uuid.Nil, fmt.Errorf("querying item ids of type %s: %w", tag, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				yield(uuid.Nil, fmt.Errorf("scanning item id: %w", err))
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				yield(uuid.Nil, fmt.Errorf("parsing item id %q: %w", raw, err))
				return
			}
			if !yield(id, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(uuid.Nil, fmt.Errorf("iterating item ids of type %s: %w", tag, err))
		}
	}
}

// DeleteItem transactionally removes the entity's own row and its outgoing
// child-adjacency rows. Children's own rows and adjacency from other parents
// are untouched.
func (r *ItemRepository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if r.closed.Load() {
		return catalog.ErrDisposed
	}
	if id == uuid.Nil {
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

	if _, err := tx.StmtContext(ctx, r.stmtDelete).ExecContext(ctx, id.String()); err != nil {
		r.logger.Error("deleting item failed", "id", id, "error", err)
		return fmt.Errorf("deleting item %s: %w", id, err)
	}
	if _, err := tx.StmtContext(ctx, r.stmtDeleteChildren).ExecContext(ctx, id.String()); err != nil {
		r.logger.Error("deleting item adjacency failed", "id", id, "error", err)
		return fmt.Errorf("deleting children of %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveChildren transactionally replaces the full adjacency set for a parent.
func (r *ItemRepository) SaveChildren(ctx context.Context, parentID uuid.UUID, childIDs []uuid.UUID) error {
	if r.closed.Load() {
		return catalog.ErrDisposed
	}
	if parentID == uuid.Nil {
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

	if _, err := tx.StmtContext(ctx, r.stmtDeleteChildren).ExecContext(ctx, parentID.String()); err != nil {
		return fmt.Errorf("clearing children of %s: %w", parentID, err)
	}
	insert := tx.StmtContext(ctx, r.stmtInsertChild)
	for _, childID := range childIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := insert.ExecContext(ctx, parentID.String(), childID.String()); err != nil {
			return fmt.Errorf("inserting child %s of %s: %w", childID, parentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveChapters delegates to the chapter satellite repository.
func (r *ItemRepository) SaveChapters(ctx context.Context, itemID uuid.UUID, chapters []catalog.Chapter) error {
	if r.closed.Load() {
		return catalog.ErrDisposed
	}
	return r.chapters.SaveChapters(ctx, itemID, chapters)
}

// GetChapters delegates to the chapter satellite repository.
func (r *ItemRepository) GetChapters(ctx context.Context, itemID uuid.UUID) ([]catalog.Chapter, error) {
	if r.closed.Load() {
		return nil, catalog.ErrDisposed
	}
	return r.chapters.GetChapters(ctx, itemID)
}

// SaveMediaStreams delegates to the media-stream satellite repository.
func (r *ItemRepository) SaveMediaStreams(ctx context.Context, itemID uuid.UUID, streams []catalog.MediaStream) error {
	if r.closed.Load() {
		return catalog.ErrDisposed
	}
	return r.streams.SaveStreams(ctx, itemID, streams)
}

// GetMediaStreams delegates to the media-stream satellite repository.
func (r *ItemRepository) GetMediaStreams(ctx context.Context, itemID uuid.UUID) ([]catalog.MediaStream, error) {
	if r.closed.Load() {
		return nil, catalog.ErrDisposed
	}
	return r.streams.GetStreams(ctx, itemID)
}

// BackupTo creates a complete copy of the catalog store at destPath using
// VACUUM INTO.
func (r *ItemRepository) BackupTo(destPath string) error {
	if r.closed.Load() {
		return catalog.ErrDisposed
	}
	if _, err := r.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up catalog store: %w", err)
	}
	return nil
}

// Close stops the maintenance timer and closes the store. Every public
// operation fails with ErrDisposed afterwards. Satellite repositories are
// owned and closed by the caller.
func (r *ItemRepository) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.maintenance != nil {
		r.maintenance.Stop()
	}
	for _, stmt := range []*sql.Stmt{r.stmtSave, r.stmtRetrieve, r.stmtDelete, r.stmtDeleteChildren, r.stmtInsertChild, r.stmtSelectChildren} {
		if stmt != nil {
			stmt.Close()
		}
	}
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Compile-time check that ItemRepository implements the catalog store port.
var _ catalog.ItemStore = (*ItemRepository)(nil)
