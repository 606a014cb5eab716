// Package testutil provides in-memory doubles shared by tests across
// packages.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediad/internal/catalog"
)

// FixedClock is a Clock pinned to an instant, adjustable per test.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MemoryItemStore is an in-memory ItemStore. Like the SQLite repository it
// stores encoded payloads and decodes a fresh instance on every retrieval,
// so callers never share mutable state through it.
type MemoryItemStore struct {
	registry *catalog.TypeRegistry

	mu       sync.Mutex
	rows     map[uuid.UUID]storedRow
	order    []uuid.UUID
	children map[uuid.UUID][]uuid.UUID

	SaveCount int
}

type storedRow struct {
	tag  string
	data []byte
}

func NewMemoryItemStore(registry *catalog.TypeRegistry) *MemoryItemStore {
	return &MemoryItemStore{
		registry: registry,
		rows:     make(map[uuid.UUID]storedRow),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *MemoryItemStore) SaveItem(ctx context.Context, item catalog.Entity) error {
	return s.SaveItems(ctx, []catalog.Entity{item})
}

func (s *MemoryItemStore) SaveItems(_ context.Context, items []catalog.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if item.EntityID() == uuid.Nil {
			return catalog.ErrNilID
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("could not serialize item %s: %w", item.EntityID(), err)
		}
		id := item.EntityID()
		if _, known := s.rows[id]; !known {
			s.order = append(s.order, id)
		}
		s.rows[id] = storedRow{tag: item.TypeTag(), data: data}
		s.SaveCount++
	}
	return nil
}

func (s *MemoryItemStore) RetrieveItem(_ context.Context, id uuid.UUID) (catalog.Entity, error) {
	if id == uuid.Nil {
		return nil, catalog.ErrNilID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return s.decode(id, row)
}

func (s *MemoryItemStore) decode(id uuid.UUID, row storedRow) (catalog.Entity, error) {
	item := s.registry.Resolve(row.tag)
	if item == nil {
		return nil, nil
	}
	if err := json.Unmarshal(row.data, item); err != nil {
		return nil, fmt.Errorf("could not deserialize item %s: %w", id, err)
	}
	item.SetEntityID(id)
	return item, nil
}

func (s *MemoryItemStore) DeleteItem(_ context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return catalog.ErrNilID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	delete(s.children, id)
	for i, candidate := range s.order {
		if candidate == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryItemStore) GetChildren(_ context.Context, parentID uuid.UUID) iter.Seq2[uuid.UUID, error] {
	return func(yield func(uuid.UUID, error) bool) {
		if parentID == uuid.Nil {
			yield(uuid.Nil, catalog.ErrNilID)
			return
		}
		s.mu.Lock()
		ids := append([]uuid.UUID(nil), s.children[parentID]...)
		s.mu.Unlock()
		for _, id := range ids {
			if !yield(id, nil) {
				return
			}
		}
	}
}

func (s *MemoryItemStore) GetChildrenItems(ctx context.Context, parentID uuid.UUID) ([]catalog.Entity, error) {
	var items []catalog.Entity
	for id, err := range s.GetChildren(ctx, parentID) {
		if err != nil {
			return nil, err
		}
		item, err := s.RetrieveItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *MemoryItemStore) GetItemsOfType(_ context.Context, tag string) iter.Seq2[catalog.Entity, error] {
	return func(yield func(catalog.Entity, error) bool) {
		s.mu.Lock()
		ids := append([]uuid.UUID(nil), s.order...)
		s.mu.Unlock()
		for _, id := range ids {
			s.mu.Lock()
			row, ok := s.rows[id]
			s.mu.Unlock()
			if !ok || row.tag != tag {
				continue
			}
			item, err := s.decode(id, row)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (s *MemoryItemStore) GetItemIDsOfType(ctx context.Context, tag string) iter.Seq2[uuid.UUID, error] {
	return func(yield func(uuid.UUID, error) bool) {
		for item, err := range s.GetItemsOfType(ctx, tag) {
			if err != nil {
				yield(uuid.Nil, err)
				return
			}
			if !yield(item.EntityID(), nil) {
				return
			}
		}
	}
}

func (s *MemoryItemStore) SaveChildren(_ context.Context, parentID uuid.UUID, childIDs []uuid.UUID) error {
	if parentID == uuid.Nil {
		return catalog.ErrNilID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[parentID] = append([]uuid.UUID(nil), childIDs...)
	return nil
}

// Len reports how many items the store holds.
func (s *MemoryItemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

var _ catalog.ItemStore = (*MemoryItemStore)(nil)
