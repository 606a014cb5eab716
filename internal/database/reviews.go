package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"mediad/internal/catalog"
)

// ReviewStore keeps critic reviews as one JSON document per item id in a
// dedicated directory. This is simple scoped file I/O, not part of the
// transactional store.
type ReviewStore struct {
	dir string
}

// NewReviewStore creates a review store rooted at dataDir/critic-reviews.
func NewReviewStore(dataDir string) (*ReviewStore, error) {
	dir := filepath.Join(dataDir, "critic-reviews")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating review directory: %w", err)
	}
	return &ReviewStore{dir: dir}, nil
}

// Save writes the full review set for an item, replacing any existing one.
func (s *ReviewStore) Save(itemID uuid.UUID, reviews []catalog.CriticReview) error {
	if itemID == uuid.Nil {
		return catalog.ErrNilID
	}
	data, err := json.Marshal(reviews)
	if err != nil {
		return fmt.Errorf("serializing reviews for %s: %w", itemID, err)
	}
	if err := os.WriteFile(s.path(itemID), data, 0644); err != nil {
		return fmt.Errorf("writing reviews for %s: %w", itemID, err)
	}
	return nil
}

// Get returns the reviews for an item. A missing file is absence, not an
// error.
func (s *ReviewStore) Get(itemID uuid.UUID) ([]catalog.CriticReview, error) {
	if itemID == uuid.Nil {
		return nil, catalog.ErrNilID
	}
	data, err := os.ReadFile(s.path(itemID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading reviews for %s: %w", itemID, err)
	}
	var reviews []catalog.CriticReview
	if err := json.Unmarshal(data, &reviews); err != nil {
		return nil, fmt.Errorf("deserializing reviews for %s: %w", itemID, err)
	}
	return reviews, nil
}

func (s *ReviewStore) path(itemID uuid.UUID) string {
	return filepath.Join(s.dir, itemID.String()+".json")
}
