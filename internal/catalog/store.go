package catalog

import (
	"context"
	"iter"

	"github.com/google/uuid"
)

// ItemStore is the persistence port for catalog entities. Implemented by the
// SQLite item repository; the channel and download layers depend only on
// this interface.
//
// Sequence-returning methods are lazy: the underlying query runs when the
// sequence is iterated, and iteration yields (zero, err) once on failure.
type ItemStore interface {
	// SaveItem upserts one entity.
	SaveItem(ctx context.Context, item Entity) error

	// SaveItems upserts a batch atomically: all items succeed or none do.
	SaveItems(ctx context.Context, items []Entity) error

	// RetrieveItem loads an entity by id. Returns (nil, nil) when the row is
	// absent or its type tag is unknown to this build.
	RetrieveItem(ctx context.Context, id uuid.UUID) (Entity, error)

	// DeleteItem removes the entity's own row and its outgoing child
	// adjacency. Children's own rows are untouched.
	DeleteItem(ctx context.Context, id uuid.UUID) error

	// GetChildren yields the child identifiers of a parent.
	GetChildren(ctx context.Context, parentID uuid.UUID) iter.Seq2[uuid.UUID, error]

	// GetChildrenItems loads the fully materialized children of a parent.
	GetChildrenItems(ctx context.Context, parentID uuid.UUID) ([]Entity, error)

	// GetItemsOfType yields all entities with the given type tag, in storage
	// order.
	GetItemsOfType(ctx context.Context, tag string) iter.Seq2[Entity, error]

	// GetItemIDsOfType yields the identifiers of all entities with the given
	// type tag, in storage order.
	GetItemIDsOfType(ctx context.Context, tag string) iter.Seq2[uuid.UUID, error]

	// SaveChildren replaces the full adjacency set for a parent.
	SaveChildren(ctx context.Context, parentID uuid.UUID, childIDs []uuid.UUID) error
}
